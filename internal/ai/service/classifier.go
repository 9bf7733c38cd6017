package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"sighunt/internal/metrics"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	requestTimeout = 30 * time.Second
)

// systemPrompt заставляет модель отвечать ровно одной строкой канонического сигнала
const systemPrompt = `You are a trading alert classifier. Given a message from a trading channel, answer with exactly one line and nothing else:
- "NOISE" if the message contains no actionable trading instruction;
- "<ASSET> <Long|Short> Leverage:<N>x TP:<price> SL:<price>" for an entry instruction;
- "<ASSET> close <all|N%>" for an exit instruction.`

// Classifier — клиент OpenRouter, превращающий текст сообщения в каноническую метку
type Classifier struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	log        zerolog.Logger
}

// chatRequest структура запроса chat/completions
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse структура ответа chat/completions
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClassifier создает новый Classifier
func NewClassifier(apiKey, model string, log zerolog.Logger) *Classifier {
	c := &Classifier{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
	}

	// Настройка circuit breaker
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openrouter-api",
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

	return c
}

// SetBaseURL переопределяет адрес API (для тестов)
func (c *Classifier) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// Classify отправляет текст сообщения на классификацию и возвращает метку.
// Ошибка прерывает обработку только текущего сообщения.
func (c *Classifier) Classify(ctx context.Context, message string) (string, error) {
	start := time.Now()

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.doClassify(ctx, message)
	})

	metrics.ClassifierRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ClassifierRequestsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.ClassifierRequestsTotal.WithLabelValues("ok").Inc()

	label := result.(string)
	c.log.Info().Str("label", label).Msg("classifier answered")
	return label, nil
}

func (c *Classifier) doClassify(ctx context.Context, message string) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: message},
		},
		Temperature: 0,
		MaxTokens:   100,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal classify request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create classify request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("classify request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read classify response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse classify response: %v", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("classifier API error: %d - %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("classifier response has no choices")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
