package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"sighunt/internal/pipeline/service"
)

// StatsSource отдает снимок счетчиков пайплайна
type StatsSource interface {
	Snapshot() service.StatsSnapshot
}

// ConnectivitySource сообщает состояние соединения с каналом
type ConnectivitySource interface {
	Connected() bool
}

// BreakerSource отдает состояние circuit breaker биржевого клиента
type BreakerSource interface {
	State() gobreaker.State
}

type Handler struct {
	Stats        StatsSource
	Connectivity ConnectivitySource
	Breaker      BreakerSource
}

func NewHandler(stats StatsSource, connectivity ConnectivitySource, breaker BreakerSource) *Handler {
	return &Handler{
		Stats:        stats,
		Connectivity: connectivity,
		Breaker:      breaker,
	}
}

// Routes собирает роутер служебных эндпоинтов
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Get("/stats", h.GetStats)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	snap := h.Stats.Snapshot()

	resp := map[string]interface{}{
		"total_processed":      snap.TotalProcessed,
		"successful":           snap.Successful,
		"failed":               snap.Failed,
		"consecutive_failures": snap.ConsecutiveFailures,
		"success_rate":         snap.SuccessRate,
		"telegram_connected":   h.Connectivity.Connected(),
		"bybit_breaker_state":  h.Breaker.State().String(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
