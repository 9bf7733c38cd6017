package service

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"

	bybitentity "sighunt/internal/bybit/entity"
	"sighunt/internal/signal/entity"
)

// fakeExchange записывает вызовы шлюза и отдает заранее заданные ответы
type fakeExchange struct {
	minQty    map[string]float64
	prices    bybitentity.SymbolPrices
	positions []bybitentity.Position

	leverageErr  error
	pricesErr    error
	positionsErr error
	placeErr     error

	calls []string

	placedSymbol string
	placedSide   string
	placedQty    float64
	placedTP     float64
	placedSL     float64

	closedSymbol string
	closedSide   string
	closedQty    float64
}

func (f *fakeExchange) AllMinOrderQty() (map[string]float64, error) {
	f.calls = append(f.calls, "minQty")
	return f.minQty, nil
}

func (f *fakeExchange) SymbolPrices(symbol string) (bybitentity.SymbolPrices, error) {
	f.calls = append(f.calls, "prices")
	return f.prices, f.pricesErr
}

func (f *fakeExchange) OpenPositions(symbol string) ([]bybitentity.Position, error) {
	f.calls = append(f.calls, "positions")
	return f.positions, f.positionsErr
}

func (f *fakeExchange) SetLeverage(symbol string, leverage float64) error {
	f.calls = append(f.calls, "leverage")
	return f.leverageErr
}

func (f *fakeExchange) PlaceMarketOrder(symbol, side string, qty, tp, sl float64) (string, error) {
	f.calls = append(f.calls, "place")
	f.placedSymbol, f.placedSide = symbol, side
	f.placedQty, f.placedTP, f.placedSL = qty, tp, sl
	return "order-1", f.placeErr
}

func (f *fakeExchange) ClosePosition(symbol, posSide string, qty float64) error {
	f.calls = append(f.calls, "close")
	f.closedSymbol, f.closedSide, f.closedQty = symbol, posSide, qty
	return nil
}

func newTestStrategy(t *testing.T, ex *fakeExchange, balance, riskPercent float64) *Strategy {
	t.Helper()
	s := NewStrategy(ex, balance, riskPercent, zerolog.Nop())
	if err := s.InitCache(); err != nil {
		t.Fatalf("InitCache failed: %v", err)
	}
	ex.calls = nil
	return s
}

func TestProcessEntry(t *testing.T) {
	ex := &fakeExchange{
		minQty: map[string]float64{"BTCUSDT": 0.001},
		prices: bybitentity.SymbolPrices{Last: 50000, Mark: 50001, Index: 49999},
	}
	s := newTestStrategy(t, ex, 1000, 5)

	s.ProcessSignal(entity.Entry{Asset: "BTC", Direction: "Long", Leverage: 5, TP: 70000, SL: 40000})

	// margin = 1000*5/100 = 50; notional = 250; qty = 250/50000 = 0.005
	if ex.placedSymbol != "BTCUSDT" || ex.placedSide != "Buy" {
		t.Errorf("unexpected order: %s %s", ex.placedSymbol, ex.placedSide)
	}
	if math.Abs(ex.placedQty-0.005) > 1e-9 {
		t.Errorf("expected qty 0.005, got %f", ex.placedQty)
	}
	if ex.placedTP != 70000 || ex.placedSL != 40000 {
		t.Errorf("unexpected tp/sl: %f/%f", ex.placedTP, ex.placedSL)
	}
}

func TestProcessEntryShortMapsToSell(t *testing.T) {
	ex := &fakeExchange{
		minQty: map[string]float64{"ETHUSDT": 0.01},
		prices: bybitentity.SymbolPrices{Last: 2500},
	}
	s := newTestStrategy(t, ex, 1000, 10)

	s.ProcessSignal(entity.Entry{Asset: "ETH", Direction: "Short", Leverage: 2, TP: 2000, SL: 3000})

	if ex.placedSide != "Sell" {
		t.Errorf("expected side Sell, got %s", ex.placedSide)
	}
	// margin = 100; notional = 200; qty = 0.08
	if math.Abs(ex.placedQty-0.08) > 1e-9 {
		t.Errorf("expected qty 0.08, got %f", ex.placedQty)
	}
}

func TestProcessEntryUnknownAssetNoCalls(t *testing.T) {
	ex := &fakeExchange{minQty: map[string]float64{"BTCUSDT": 0.001}}
	s := newTestStrategy(t, ex, 1000, 5)

	s.ProcessSignal(entity.Entry{Asset: "NOPE", Direction: "Long", Leverage: 5, TP: 1, SL: 1})

	if len(ex.calls) != 0 {
		t.Errorf("expected zero exchange calls, got %v", ex.calls)
	}
}

func TestProcessEntryLeverageErrorAborts(t *testing.T) {
	ex := &fakeExchange{
		minQty:      map[string]float64{"BTCUSDT": 0.001},
		leverageErr: errors.New("leverage rejected"),
	}
	s := newTestStrategy(t, ex, 1000, 5)

	s.ProcessSignal(entity.Entry{Asset: "BTC", Direction: "Long", Leverage: 5, TP: 1, SL: 1})

	for _, call := range ex.calls {
		if call == "prices" || call == "place" {
			t.Errorf("expected no calls after leverage failure, got %v", ex.calls)
		}
	}
}

func TestProcessEntryPriceErrorAborts(t *testing.T) {
	ex := &fakeExchange{
		minQty:    map[string]float64{"BTCUSDT": 0.001},
		pricesErr: errors.New("tickers unavailable"),
	}
	s := newTestStrategy(t, ex, 1000, 5)

	s.ProcessSignal(entity.Entry{Asset: "BTC", Direction: "Long", Leverage: 5, TP: 1, SL: 1})

	for _, call := range ex.calls {
		if call == "place" {
			t.Errorf("expected no order after price failure, got %v", ex.calls)
		}
	}
}

func TestProcessExitAll(t *testing.T) {
	ex := &fakeExchange{
		minQty:    map[string]float64{"ETHUSDT": 0.01},
		positions: []bybitentity.Position{{Symbol: "ETHUSDT", Side: "Buy", Size: 1.5}},
	}
	s := newTestStrategy(t, ex, 1000, 5)

	s.ProcessSignal(entity.Exit{Asset: "ETH", ExitType: entity.ExitAll})

	if ex.closedSymbol != "ETHUSDT" || ex.closedSide != "Buy" {
		t.Errorf("unexpected close: %s %s", ex.closedSymbol, ex.closedSide)
	}
	if math.Abs(ex.closedQty-1.5) > 1e-9 {
		t.Errorf("expected close qty 1.5, got %f", ex.closedQty)
	}
}

func TestProcessExitPercentage(t *testing.T) {
	ex := &fakeExchange{
		minQty:    map[string]float64{"ETHUSDT": 0.01},
		positions: []bybitentity.Position{{Symbol: "ETHUSDT", Side: "Sell", Size: 1.337}},
	}
	s := newTestStrategy(t, ex, 1000, 5)

	s.ProcessSignal(entity.Exit{Asset: "ETH", ExitType: entity.ExitPercentage, Percentage: 50})

	// 1.337 * 0.5 = 0.6685 -> округление до 2 знаков = 0.67
	if math.Abs(ex.closedQty-0.67) > 1e-9 {
		t.Errorf("expected close qty 0.67, got %f", ex.closedQty)
	}
}

func TestProcessExitNoPositionNoCalls(t *testing.T) {
	ex := &fakeExchange{
		minQty:    map[string]float64{"ETHUSDT": 0.01},
		positions: nil,
	}
	s := newTestStrategy(t, ex, 1000, 5)

	s.ProcessSignal(entity.Exit{Asset: "ETH", ExitType: entity.ExitAll})

	for _, call := range ex.calls {
		if call == "close" {
			t.Errorf("expected no close order without open position, got %v", ex.calls)
		}
	}
}

func TestProcessExitUnknownAssetNoCalls(t *testing.T) {
	ex := &fakeExchange{minQty: map[string]float64{"ETHUSDT": 0.01}}
	s := newTestStrategy(t, ex, 1000, 5)

	s.ProcessSignal(entity.Exit{Asset: "NOPE", ExitType: entity.ExitAll})

	if len(ex.calls) != 0 {
		t.Errorf("expected zero exchange calls, got %v", ex.calls)
	}
}

func TestProcessNoiseNoCalls(t *testing.T) {
	ex := &fakeExchange{minQty: map[string]float64{}}
	s := newTestStrategy(t, ex, 1000, 5)

	s.ProcessSignal(entity.Noise{})
	s.ProcessSignal(nil)

	if len(ex.calls) != 0 {
		t.Errorf("expected zero exchange calls, got %v", ex.calls)
	}
}

func TestDecimalPlaces(t *testing.T) {
	tests := []struct {
		minQty float64
		want   int
	}{
		{0.001, 3},
		{1, 0},
		{0.01, 2},
		{0.1, 1},
		{10, 0},
		{0.00001, 5},
	}

	for _, tt := range tests {
		if got := DecimalPlaces(tt.minQty); got != tt.want {
			t.Errorf("DecimalPlaces(%v) = %d, want %d", tt.minQty, got, tt.want)
		}
	}
}

func TestRoundQty(t *testing.T) {
	tests := []struct {
		qty      float64
		decimals int
		want     float64
	}{
		{0.0054, 3, 0.005},
		{0.0055, 3, 0.006},
		{123.456, 0, 123},
		{0.6685, 2, 0.67},
	}

	for _, tt := range tests {
		if got := RoundQty(tt.qty, tt.decimals); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("RoundQty(%v, %d) = %v, want %v", tt.qty, tt.decimals, got, tt.want)
		}
	}
}

func TestRoundQtyIdempotent(t *testing.T) {
	qty := RoundQty(0.123456789, 3)
	if again := RoundQty(qty, 3); again != qty {
		t.Errorf("rounding is not idempotent: %v != %v", again, qty)
	}
}
