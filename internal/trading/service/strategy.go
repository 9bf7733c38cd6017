package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	bybitentity "sighunt/internal/bybit/entity"
	"sighunt/internal/signal/entity"
)

// Суффикс котировочной валюты: сигналы несут только базовый актив
const symbolSuffix = "USDT"

// Strategy превращает типизированный сигнал в вызовы биржевого шлюза.
//
// Кеш минимальных объемов заполняется один раз на старте и после этого
// только читается. Взаимного исключения по активу нет: два сигнала по одному
// символу могут обрабатываться одновременно, как и в режиме push-доставки.
type Strategy struct {
	exchange    Exchange
	balance     float64
	riskPercent float64
	minOrderQty map[string]float64
	log         zerolog.Logger
}

// NewStrategy создает новую Strategy
func NewStrategy(exchange Exchange, balance, riskPercent float64, log zerolog.Logger) *Strategy {
	return &Strategy{
		exchange:    exchange,
		balance:     balance,
		riskPercent: riskPercent,
		log:         log,
	}
}

// InitCache загружает кеш минимальных объемов. Вызывается один раз на старте;
// ошибка фатальна — без точностей инструментов торговать нельзя.
func (s *Strategy) InitCache() error {
	cache, err := s.exchange.AllMinOrderQty()
	if err != nil {
		return fmt.Errorf("failed to init instrument cache: %w", err)
	}
	s.minOrderQty = cache
	s.log.Info().Int("instruments", len(cache)).Msg("instrument cache initialized")
	return nil
}

// ProcessSignal обрабатывает разобранный сигнал. Любая ошибка прерывает
// обработку только этого сигнала и никогда не поднимается выше.
func (s *Strategy) ProcessSignal(sig entity.Signal) {
	switch v := sig.(type) {
	case nil:
		return
	case entity.Noise:
		return
	case entity.Entry:
		s.processEntry(v)
	case entity.Exit:
		s.processExit(v)
	}
}

// processEntry открывает позицию по сигналу входа
func (s *Strategy) processEntry(sig entity.Entry) {
	symbol := sig.Asset + symbolSuffix

	minQty, ok := s.minOrderQty[symbol]
	if !ok {
		s.log.Warn().Str("symbol", symbol).Msg("asset not found on exchange, signal skipped")
		return
	}

	s.log.Info().
		Str("asset", sig.Asset).
		Str("direction", sig.Direction).
		Float64("leverage", sig.Leverage).
		Msg("processing entry signal")

	if err := s.exchange.SetLeverage(symbol, sig.Leverage); err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("failed to set leverage")
		return
	}

	prices, err := s.exchange.SymbolPrices(symbol)
	if err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("failed to get prices")
		return
	}

	qty := s.calculateQty(prices.Last, sig.Leverage)
	qtyRounded := RoundQty(qty, DecimalPlaces(minQty))
	s.log.Info().Float64("qty", qty).Float64("rounded", qtyRounded).Msg("position size calculated")

	side := bybitentity.SideBuy
	if sig.Direction == entity.DirectionShort {
		side = bybitentity.SideSell
	}

	orderID, err := s.exchange.PlaceMarketOrder(symbol, side, qtyRounded, sig.TP, sig.SL)
	if err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("failed to open position")
		return
	}

	s.log.Info().
		Str("symbol", symbol).
		Str("side", side).
		Float64("qty", qtyRounded).
		Float64("tp", sig.TP).
		Float64("sl", sig.SL).
		Str("orderId", orderID).
		Msg("position opened")
}

// processExit закрывает позицию целиком или частично
func (s *Strategy) processExit(sig entity.Exit) {
	symbol := sig.Asset + symbolSuffix

	minQty, ok := s.minOrderQty[symbol]
	if !ok {
		s.log.Warn().Str("symbol", symbol).Msg("asset not found on exchange, signal skipped")
		return
	}

	positions, err := s.exchange.OpenPositions(symbol)
	if err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("failed to get positions")
		return
	}
	if len(positions) == 0 {
		s.log.Info().Str("symbol", symbol).Msg("no open position, signal skipped")
		return
	}

	// One-way режим: по символу не больше одной позиции
	pos := positions[0]
	s.log.Info().Str("asset", sig.Asset).Str("exitType", sig.ExitType).Msg("processing exit signal")

	var qtyToClose, percent float64
	switch sig.ExitType {
	case entity.ExitAll:
		qtyToClose = pos.Size
		percent = 100.0
	case entity.ExitPercentage:
		qtyToClose = pos.Size * (sig.Percentage / 100.0)
		percent = sig.Percentage
	default:
		s.log.Warn().Str("exitType", sig.ExitType).Msg("unknown exit type")
		return
	}

	qtyRounded := RoundQty(qtyToClose, DecimalPlaces(minQty))

	if err := s.exchange.ClosePosition(symbol, pos.Side, qtyRounded); err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("failed to close position")
		return
	}

	s.log.Info().
		Str("symbol", symbol).
		Float64("percent", percent).
		Float64("positionSize", pos.Size).
		Float64("qty", qtyRounded).
		Msg("position closed")
}

// calculateQty рассчитывает объем позиции:
// margin = balance * riskPercent / 100; notional = margin * leverage; qty = notional / price
func (s *Strategy) calculateQty(price, leverage float64) float64 {
	margin := s.balance * s.riskPercent / 100
	return margin * leverage / price
}

// DecimalPlaces выводит точность округления из строкового представления
// минимального объема ордера: количество цифр после точки, иначе ноль.
func DecimalPlaces(minOrderQty float64) int {
	str := strconv.FormatFloat(minOrderQty, 'f', -1, 64)
	if i := strings.IndexByte(str, '.'); i >= 0 {
		return len(str) - i - 1
	}
	return 0
}

// RoundQty округляет объем до заданного числа знаков после точки
func RoundQty(qty float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(qty*pow) / pow
}
