package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestInitMetricsRegistersInDefaultRegistry(t *testing.T) {
	// Должна отработать без паники: реестр по умолчанию уже содержит
	// коллекторы Go и процесса, наши метрики регистрируются рядом с ними
	InitMetrics()

	MessagesProcessedTotal.WithLabelValues("ok").Inc()
	TelegramConnected.Set(1)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather default registry: %v", err)
	}

	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}

	for _, name := range []string{
		"pipeline_messages_processed_total",
		"telegram_connected",
		"go_goroutines",
		"process_cpu_seconds_total",
	} {
		if !found[name] {
			t.Fatalf("metric family %s not found in default registry", name)
		}
	}
}
