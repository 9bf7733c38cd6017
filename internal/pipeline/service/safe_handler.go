package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"sighunt/internal/metrics"
	"sighunt/internal/telegram/entity"
)

const previewLimit = 100

// Stats считает исходы обработки сообщений. Снимок отдается ops-эндпоинту.
type Stats struct {
	mu                  sync.Mutex
	totalProcessed      uint64
	successful          uint64
	failed              uint64
	consecutiveFailures uint64
}

// StatsSnapshot — моментальный снимок счетчиков
type StatsSnapshot struct {
	TotalProcessed      uint64  `json:"total_processed"`
	Successful          uint64  `json:"successful"`
	Failed              uint64  `json:"failed"`
	ConsecutiveFailures uint64  `json:"consecutive_failures"`
	SuccessRate         float64 `json:"success_rate"`
}

// NewStats создает новый Stats
func NewStats() *Stats {
	return &Stats{}
}

// Snapshot возвращает текущие значения счетчиков
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		TotalProcessed:      s.totalProcessed,
		Successful:          s.successful,
		Failed:              s.failed,
		ConsecutiveFailures: s.consecutiveFailures,
	}
	if s.totalProcessed > 0 {
		snap.SuccessRate = float64(s.successful) / float64(s.totalProcessed) * 100
	}
	return snap
}

func (s *Stats) recordSuccess() StatsSnapshot {
	s.mu.Lock()
	s.totalProcessed++
	s.successful++
	s.consecutiveFailures = 0
	s.mu.Unlock()

	metrics.MessagesProcessedTotal.WithLabelValues("ok").Inc()
	metrics.ConsecutiveFailures.Set(0)
	return s.Snapshot()
}

func (s *Stats) recordFailure() StatsSnapshot {
	s.mu.Lock()
	s.totalProcessed++
	s.failed++
	s.consecutiveFailures++
	consecutive := s.consecutiveFailures
	s.mu.Unlock()

	metrics.MessagesProcessedTotal.WithLabelValues("error").Inc()
	metrics.ConsecutiveFailures.Set(float64(consecutive))
	return s.Snapshot()
}

// Wrap оборачивает обработчик сообщений изоляцией отказов: паники и ошибки
// одного сообщения фиксируются и не роняют цикл приема. Отмена контекста —
// единственная ошибка, которую обертка пробрасывает наружу.
func Wrap(next func(ctx context.Context, msg entity.ChannelMessage) error, stats *Stats, log zerolog.Logger) func(ctx context.Context, msg entity.ChannelMessage) error {
	return func(ctx context.Context, msg entity.ChannelMessage) (err error) {
		preview := previewText(msg.Text)
		log.Info().Int("id", msg.ID).Str("text", preview).Msg("message received")

		defer func() {
			if r := recover(); r != nil {
				err = nil
				snap := stats.recordFailure()
				log.Error().
					Int("id", msg.ID).
					Str("text", preview).
					Str("panic", fmt.Sprintf("%v", r)).
					Uint64("consecutive_failures", snap.ConsecutiveFailures).
					Msg("message handler panicked")
			}
		}()

		if err := next(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			snap := stats.recordFailure()
			log.Error().
				Err(err).
				Int("id", msg.ID).
				Str("text", preview).
				Uint64("consecutive_failures", snap.ConsecutiveFailures).
				Msg("message processing failed")
			return nil
		}

		snap := stats.recordSuccess()
		log.Info().
			Int("id", msg.ID).
			Uint64("total", snap.TotalProcessed).
			Float64("success_rate", snap.SuccessRate).
			Msg("message processed")
		return nil
	}
}

// previewText сводит текст к одной строке не длиннее previewLimit символов
func previewText(text string) string {
	flat := strings.ReplaceAll(text, "\n", "\\n")
	runes := []rune(flat)
	if len(runes) <= previewLimit {
		return flat
	}
	return string(runes[:previewLimit]) + "..."
}
