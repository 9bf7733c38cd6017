package service

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sighunt/internal/bybit/entity"
	"sighunt/internal/metrics"
)

// Exchange — шлюз к торговому счету Bybit (линейные USDT фьючерсы, one-way режим)
type Exchange struct {
	client *BybitHTTPClient
	log    zerolog.Logger
}

// NewExchange создает новый Exchange поверх HTTP клиента
func NewExchange(client *BybitHTTPClient, log zerolog.Logger) *Exchange {
	return &Exchange{client: client, log: log}
}

// envelope — общий конверт ответа Bybit v5
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// checkResponse проверяет конверт ответа и возвращает полезную нагрузку
func checkResponse(op string, body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("[%s] failed to parse response: %v", op, err)
	}
	if env.RetCode != 0 {
		return nil, &entity.APIError{Op: op, Code: env.RetCode, Msg: env.RetMsg}
	}
	return env.Result, nil
}

type instrumentsResult struct {
	List []struct {
		Symbol        string `json:"symbol"`
		ContractType  string `json:"contractType"`
		QuoteCoin     string `json:"quoteCoin"`
		LotSizeFilter struct {
			MinOrderQty string `json:"minOrderQty"`
		} `json:"lotSizeFilter"`
	} `json:"list"`
	NextPageCursor string `json:"nextPageCursor"`
}

// AllMinOrderQty постранично собирает минимальные объемы ордеров для всех
// бессрочных USDT инструментов. Вызывается один раз на старте.
func (e *Exchange) AllMinOrderQty() (map[string]float64, error) {
	results := make(map[string]float64)
	cursor := ""

	for {
		params := map[string]string{"category": entity.CategoryLinear}
		if cursor != "" {
			params["cursor"] = cursor
		}

		body, err := e.client.Get("instruments-info", BybitAPIVersion+"/market/instruments-info", params, false)
		if err != nil {
			return nil, err
		}

		raw, err := checkResponse("instruments-info", body)
		if err != nil {
			return nil, err
		}

		var result instrumentsResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, fmt.Errorf("failed to parse instruments result: %v", err)
		}

		for _, inst := range result.List {
			if inst.QuoteCoin != entity.QuoteCoinUSDT {
				continue
			}
			if inst.ContractType != entity.ContractTypePerpetual {
				continue
			}
			minQty, err := strconv.ParseFloat(inst.LotSizeFilter.MinOrderQty, 64)
			if err != nil || inst.Symbol == "" {
				continue
			}
			results[inst.Symbol] = minQty
		}

		cursor = result.NextPageCursor
		if cursor == "" {
			break
		}
	}

	e.log.Debug().Int("instruments", len(results)).Msg("loaded USDT perpetual instruments")
	return results, nil
}

type tickersResult struct {
	List []struct {
		LastPrice  string `json:"lastPrice"`
		MarkPrice  string `json:"markPrice"`
		IndexPrice string `json:"indexPrice"`
	} `json:"list"`
}

// SymbolPrices возвращает текущие цены символа (last, mark, index)
func (e *Exchange) SymbolPrices(symbol string) (entity.SymbolPrices, error) {
	params := map[string]string{
		"category": entity.CategoryLinear,
		"symbol":   symbol,
	}

	body, err := e.client.Get("tickers", BybitAPIVersion+"/market/tickers", params, false)
	if err != nil {
		return entity.SymbolPrices{}, err
	}

	raw, err := checkResponse("tickers", body)
	if err != nil {
		return entity.SymbolPrices{}, err
	}

	var result tickersResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return entity.SymbolPrices{}, fmt.Errorf("failed to parse tickers result: %v", err)
	}
	if len(result.List) == 0 {
		return entity.SymbolPrices{}, fmt.Errorf("symbol %s not found", symbol)
	}

	t := result.List[0]
	last, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil {
		return entity.SymbolPrices{}, fmt.Errorf("failed to parse last price: %v", err)
	}
	mark, err := strconv.ParseFloat(t.MarkPrice, 64)
	if err != nil {
		return entity.SymbolPrices{}, fmt.Errorf("failed to parse mark price: %v", err)
	}
	index, err := strconv.ParseFloat(t.IndexPrice, 64)
	if err != nil {
		return entity.SymbolPrices{}, fmt.Errorf("failed to parse index price: %v", err)
	}

	return entity.SymbolPrices{Last: last, Mark: mark, Index: index}, nil
}

type positionsResult struct {
	List []struct {
		Symbol string `json:"symbol"`
		Side   string `json:"side"`
		Size   string `json:"size"`
	} `json:"list"`
}

// OpenPositions возвращает открытые позиции по символу (size > 0).
// Позиции никогда не кешируются: каждый выход запрашивает их заново.
func (e *Exchange) OpenPositions(symbol string) ([]entity.Position, error) {
	params := map[string]string{
		"category": entity.CategoryLinear,
		"symbol":   symbol,
	}

	body, err := e.client.Get("position-list", BybitAPIVersion+"/position/list", params, true)
	if err != nil {
		return nil, err
	}

	raw, err := checkResponse("position-list", body)
	if err != nil {
		return nil, err
	}

	var result positionsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse positions result: %v", err)
	}

	open := make([]entity.Position, 0, len(result.List))
	for _, p := range result.List {
		size, err := strconv.ParseFloat(p.Size, 64)
		if err != nil || size <= 0 {
			continue
		}
		open = append(open, entity.Position{Symbol: p.Symbol, Side: p.Side, Size: size})
	}

	e.log.Debug().Str("symbol", symbol).Int("open", len(open)).Msg("fetched open positions")
	return open, nil
}

// SetLeverage устанавливает плечо для символа (one-way режим).
// Ответ «плечо уже установлено» считается успехом.
func (e *Exchange) SetLeverage(symbol string, leverage float64) error {
	lev := strconv.FormatFloat(leverage, 'f', -1, 64)
	payload, err := json.Marshal(map[string]string{
		"category":     entity.CategoryLinear,
		"symbol":       symbol,
		"buyLeverage":  lev,
		"sellLeverage": lev,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal leverage request: %v", err)
	}

	body, err := e.client.Post("set-leverage", BybitAPIVersion+"/position/set-leverage", payload)
	if err != nil {
		return err
	}

	if _, err := checkResponse("set-leverage", body); err != nil {
		if entity.IsLeverageNotModified(err) {
			e.log.Info().Str("symbol", symbol).Str("leverage", lev).Msg("leverage already set")
			return nil
		}
		return err
	}

	e.log.Info().Str("symbol", symbol).Str("leverage", lev).Msg("leverage set")
	return nil
}

type orderResult struct {
	OrderID     string `json:"orderId"`
	OrderLinkID string `json:"orderLinkId"`
}

// PlaceMarketOrder открывает рыночный ордер с Take Profit и Stop Loss.
// TP/SL срабатывают по марк-цене в режиме полной позиции.
func (e *Exchange) PlaceMarketOrder(symbol, side string, qty, tp, sl float64) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"category":    entity.CategoryLinear,
		"symbol":      symbol,
		"side":        side,
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(qty, 'f', -1, 64),
		"orderLinkId": uuid.NewString(),
		"takeProfit":  strconv.FormatFloat(tp, 'f', -1, 64),
		"tpTriggerBy": "MarkPrice",
		"tpOrderType": "Market",
		"stopLoss":    strconv.FormatFloat(sl, 'f', -1, 64),
		"slTriggerBy": "MarkPrice",
		"slOrderType": "Market",
		"tpslMode":    "Full",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal order request: %v", err)
	}

	body, err := e.client.Post("order-create", BybitAPIVersion+"/order/create", payload)
	if err != nil {
		return "", err
	}

	raw, err := checkResponse("order-create", body)
	if err != nil {
		return "", err
	}

	var result orderResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("failed to parse order result: %v", err)
	}

	metrics.OrdersPlacedTotal.WithLabelValues(symbol, side, "entry").Inc()
	return result.OrderID, nil
}

// ClosePosition закрывает позицию reduce-only рыночным ордером
// на стороне, противоположной открытой позиции
func (e *Exchange) ClosePosition(symbol, posSide string, qty float64) error {
	closeSide := entity.SideSell
	if posSide == entity.SideSell {
		closeSide = entity.SideBuy
	}

	payload, err := json.Marshal(map[string]interface{}{
		"category":    entity.CategoryLinear,
		"symbol":      symbol,
		"side":        closeSide,
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(qty, 'f', -1, 64),
		"orderLinkId": uuid.NewString(),
		"reduceOnly":  true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal close request: %v", err)
	}

	body, err := e.client.Post("order-create", BybitAPIVersion+"/order/create", payload)
	if err != nil {
		return err
	}

	if _, err := checkResponse("order-create", body); err != nil {
		return err
	}

	metrics.OrdersPlacedTotal.WithLabelValues(symbol, closeSide, "exit").Inc()
	return nil
}
