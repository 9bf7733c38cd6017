package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"sighunt/internal/metrics"
)

const (
	BybitBaseURL    = "https://api.bybit.com"
	BybitAPIVersion = "/v5"

	recvWindow = "5000"
)

// BybitHTTPClient клиент для работы с Bybit REST API v5
type BybitHTTPClient struct {
	APIKey     string
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
	cb         *gobreaker.CircuitBreaker
	log        zerolog.Logger
}

// NewBybitHTTPClient создает новый HTTP клиент Bybit
func NewBybitHTTPClient(apiKey, secretKey string, log zerolog.Logger) *BybitHTTPClient {
	client := &BybitHTTPClient{
		APIKey:     apiKey,
		SecretKey:  secretKey,
		BaseURL:    BybitBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}

	// Настройка circuit breaker
	client.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bybit-api",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
		},
	})

	return client
}

// sign создает HMAC SHA256 подпись для Bybit API
func (c *BybitHTTPClient) sign(timestamp, payload string) string {
	message := timestamp + c.APIKey + recvWindow + payload
	h := hmac.New(sha256.New, []byte(c.SecretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// getTimestamp возвращает текущее время в миллисекундах
func (c *BybitHTTPClient) getTimestamp() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Get выполняет GET запрос; для signed подписывается query string
func (c *BybitHTTPClient) Get(endpoint, path string, params map[string]string, signed bool) ([]byte, error) {
	queryString := ""
	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Add(k, v)
		}
		queryString = values.Encode()
	}

	reqURL := c.BaseURL + path
	if queryString != "" {
		reqURL += "?" + queryString
	}

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	c.setHeaders(req, queryString, signed)

	return c.execute(endpoint, req)
}

// Post выполняет POST запрос с подписью тела
func (c *BybitHTTPClient) Post(endpoint, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	c.setHeaders(req, string(body), true)

	return c.execute(endpoint, req)
}

// setHeaders добавляет заголовки аутентификации Bybit
func (c *BybitHTTPClient) setHeaders(req *http.Request, payload string, signed bool) {
	if signed && c.APIKey != "" {
		timestamp := c.getTimestamp()
		req.Header.Set("X-BAPI-API-KEY", c.APIKey)
		req.Header.Set("X-BAPI-SIGN", c.sign(timestamp, payload))
		req.Header.Set("X-BAPI-SIGN-TYPE", "2")
		req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
		req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	}
	req.Header.Set("Content-Type", "application/json")
}

// execute выполняет запрос через circuit breaker и снимает метрики
func (c *BybitHTTPClient) execute(endpoint string, req *http.Request) ([]byte, error) {
	start := time.Now()

	result, err := c.cb.Execute(func() (interface{}, error) {
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %v", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	})

	metrics.BybitAPIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.BybitAPIRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	metrics.BybitAPIRequestsTotal.WithLabelValues(endpoint, "ok").Inc()

	return result.([]byte), nil
}

// GetCircuitBreaker возвращает circuit breaker для использования в других компонентах
func (c *BybitHTTPClient) GetCircuitBreaker() *gobreaker.CircuitBreaker {
	return c.cb
}
