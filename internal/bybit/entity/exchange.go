package entity

import "fmt"

// Категория и валюта котировки, с которыми работает бот
const (
	CategoryLinear        = "linear"
	QuoteCoinUSDT         = "USDT"
	ContractTypePerpetual = "LinearPerpetual"
)

// Сторона ордера
const (
	SideBuy  = "Buy"
	SideSell = "Sell"
)

// CodeLeverageNotModified — ответ биржи, когда плечо уже установлено в это значение.
// Трактуется как успех.
const CodeLeverageNotModified = 110043

// InstrumentInfo — биржевые сведения об инструменте
type InstrumentInfo struct {
	Symbol      string
	MinOrderQty float64
}

// SymbolPrices — текущие цены символа
type SymbolPrices struct {
	Last  float64
	Mark  float64
	Index float64
}

// Position — открытая позиция по символу
type Position struct {
	Symbol string
	Side   string // Buy, Sell
	Size   float64
}

// APIError — неуспешный ответ Bybit API (retCode != 0) или транспортная ошибка
type APIError struct {
	Op   string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] Bybit API error: %d - %s", e.Op, e.Code, e.Msg)
}

// IsLeverageNotModified сообщает, что ошибка — «плечо уже установлено»
func IsLeverageNotModified(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.Code == CodeLeverageNotModified
}
