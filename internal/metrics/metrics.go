package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Метрики пайплайна обработки сообщений
	MessagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_messages_processed_total",
			Help: "Total number of channel messages routed through the pipeline",
		},
		[]string{"result"},
	)
	ConsecutiveFailures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_consecutive_failures",
			Help: "Current streak of failed message handlings",
		},
	)

	// Метрики классификатора
	ClassifierRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifier_requests_total",
			Help: "Total number of classifier API requests",
		},
		[]string{"status"},
	)
	ClassifierRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "classifier_request_duration_seconds",
			Help: "Duration of classifier API requests in seconds",
		},
	)

	// Bybit API метрики
	BybitAPIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bybit_api_requests_total",
			Help: "Total number of Bybit API requests",
		},
		[]string{"endpoint", "status"},
	)
	BybitAPIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "bybit_api_request_duration_seconds",
			Help: "Duration of Bybit API requests in seconds",
		},
		[]string{"endpoint"},
	)
	OrdersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Total number of orders sent to the exchange",
		},
		[]string{"symbol", "side", "kind"},
	)

	// Telegram метрики
	TelegramConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "telegram_connected",
			Help: "Whether the Telegram transport currently reports connectivity (1/0)",
		},
	)
)

func InitMetrics() {
	// Регистрация метрик пайплайна
	prometheus.MustRegister(MessagesProcessedTotal)
	prometheus.MustRegister(ConsecutiveFailures)

	// Регистрация метрик классификатора
	prometheus.MustRegister(ClassifierRequestsTotal)
	prometheus.MustRegister(ClassifierRequestDuration)

	// Регистрация Bybit метрик
	prometheus.MustRegister(BybitAPIRequestsTotal)
	prometheus.MustRegister(BybitAPIRequestDuration)
	prometheus.MustRegister(OrdersPlacedTotal)

	// Регистрация Telegram метрик
	prometheus.MustRegister(TelegramConnected)

	// Метрики Go и процесса регистрирует сам client_golang в реестре
	// по умолчанию; повторная регистрация здесь вызвала бы панику.
}
