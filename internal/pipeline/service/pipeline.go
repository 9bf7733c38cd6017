package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	signalentity "sighunt/internal/signal/entity"
	"sighunt/internal/telegram/entity"
)

// Classifier превращает текст сообщения в каноническую метку
type Classifier interface {
	Classify(ctx context.Context, message string) (string, error)
}

// SignalParser разбирает метку в типизированный сигнал
type SignalParser interface {
	Parse(label string) signalentity.Signal
}

// SignalProcessor исполняет типизированный сигнал
type SignalProcessor interface {
	ProcessSignal(sig signalentity.Signal)
}

// Pipeline связывает классификацию, разбор и исполнение для одного сообщения
type Pipeline struct {
	classifier Classifier
	parser     SignalParser
	strategy   SignalProcessor
	log        zerolog.Logger
}

// NewPipeline создает новый Pipeline
func NewPipeline(classifier Classifier, parser SignalParser, strategy SignalProcessor, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		parser:     parser,
		strategy:   strategy,
		log:        log,
	}
}

// Process прогоняет одно сообщение через классификацию, разбор и исполнение.
// Ошибка классификации прерывает обработку только этого сообщения.
func (p *Pipeline) Process(ctx context.Context, msg entity.ChannelMessage) error {
	label, err := p.classifier.Classify(ctx, msg.Text)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	sig := p.parser.Parse(label)
	p.strategy.ProcessSignal(sig)
	return nil
}
