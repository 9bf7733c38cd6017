package service

import "sighunt/internal/bybit/entity"

// Exchange — операции биржевого шлюза, нужные стратегии.
// Интерфейс позволяет подменять шлюз тестовым двойником.
type Exchange interface {
	AllMinOrderQty() (map[string]float64, error)
	SymbolPrices(symbol string) (entity.SymbolPrices, error)
	OpenPositions(symbol string) ([]entity.Position, error)
	SetLeverage(symbol string, leverage float64) error
	PlaceMarketOrder(symbol, side string, qty, tp, sl float64) (string, error)
	ClosePosition(symbol, posSide string, qty float64) error
}
