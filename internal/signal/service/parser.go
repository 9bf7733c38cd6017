package service

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"sighunt/internal/signal/entity"
)

// Грамматика ответа классификатора. Вход проверяется сначала по entry-правилу,
// затем по exit-правилу; оба правила заякорены на начало строки.
var (
	entryPattern      = regexp.MustCompile(`^(\w+)\s+(Long|Short)\s+Leverage:(\S+)\s+TP:(\S+)\s+SL:(\S+)`)
	exitPattern       = regexp.MustCompile(`^(\w+)\s+close\s+(.+?)$`)
	percentagePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)%`)
)

// Parser разбирает ответ классификатора в типизированный сигнал
type Parser struct {
	log zerolog.Logger
}

// NewParser создает новый Parser
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log}
}

// Parse возвращает Entry, Exit или Noise. Неразобранный ответ приравнивается
// к Noise после предупреждения; ошибки наружу не выходят.
func (p *Parser) Parse(label string) entity.Signal {
	response := strings.TrimSpace(label)

	if response == "NOISE" {
		return entity.Noise{}
	}

	if sig, ok := p.parseEntry(response); ok {
		return sig
	}

	if sig, ok := p.parseExit(response); ok {
		return sig
	}

	p.log.Warn().Str("label", response).Msg("failed to parse classifier label")
	return entity.Noise{}
}

// parseEntry разбирает сигнал входа: ASSET Long/Short Leverage:5x TP:0.32 SL:0.11
func (p *Parser) parseEntry(response string) (entity.Signal, bool) {
	m := entryPattern.FindStringSubmatch(response)
	if m == nil {
		return nil, false
	}

	leverage, ok := p.parseNumber(m[3], "Leverage")
	if !ok {
		return nil, false
	}
	tp, ok := p.parseNumber(m[4], "TP")
	if !ok {
		return nil, false
	}
	sl, ok := p.parseNumber(m[5], "SL")
	if !ok {
		return nil, false
	}

	return entity.Entry{
		Asset:     m[1],
		Direction: m[2],
		Leverage:  leverage,
		TP:        tp,
		SL:        sl,
	}, true
}

// parseExit разбирает сигнал выхода: ASSET close {N%|all}
func (p *Parser) parseExit(response string) (entity.Signal, bool) {
	m := exitPattern.FindStringSubmatch(response)
	if m == nil {
		return nil, false
	}

	asset := m[1]
	exitValue := strings.TrimSpace(m[2])

	if exitValue == "all" {
		return entity.Exit{Asset: asset, ExitType: entity.ExitAll}, true
	}

	pm := percentagePattern.FindStringSubmatch(exitValue)
	if pm == nil {
		p.log.Warn().Str("value", exitValue).Msg("invalid exit signal format")
		return nil, false
	}

	percentage, err := strconv.ParseFloat(pm[1], 64)
	if err != nil {
		p.log.Error().Str("value", exitValue).Msg("exit percentage is not a number")
		return nil, false
	}

	// Процент вне (0, 100] отвергается, не ограничивается
	if percentage <= 0 || percentage > 100 {
		p.log.Warn().Float64("percentage", percentage).Msg("exit percentage out of (0, 100] range")
		return nil, false
	}

	return entity.Exit{Asset: asset, ExitType: entity.ExitPercentage, Percentage: percentage}, true
}

// parseNumber разбирает число, отбрасывая хвостовой 'x' (например '5x')
func (p *Parser) parseNumber(value, name string) (float64, bool) {
	cleaned := strings.TrimRight(value, "x")
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		p.log.Error().Str("param", name).Str("value", value).Msg("numeric field is not a number")
		return 0, false
	}
	if math.IsInf(n, 0) || math.IsNaN(n) || n <= 0 {
		p.log.Error().Str("param", name).Str("value", value).Msg("numeric field out of range")
		return 0, false
	}
	return n, true
}
