package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"sighunt/internal/metrics"
	"sighunt/internal/telegram/entity"
)

// Режимы доставки сообщений. В одном процессе активен ровно один режим,
// поэтому у множества обработанных ID единственный писатель.
const (
	ModePush = "push"
	ModePoll = "poll"
)

// Handler обрабатывает одно сообщение канала. Возврат ошибки ожидается
// только при отмене контекста: остальные сбои гасятся оберткой безопасности.
type Handler func(ctx context.Context, msg entity.ChannelMessage) error

// Ingestor получает сообщения канала, дедуплицирует их по ID и передает
// обработчику. Отдельная задача следит за состоянием соединения.
type Ingestor struct {
	client  ChannelClient
	handler Handler

	mode            string
	pollInterval    time.Duration
	pollLimit       int
	monitorInterval time.Duration

	processed map[int]struct{}
	connected atomic.Bool

	log zerolog.Logger
}

// NewIngestor создает новый Ingestor
func NewIngestor(client ChannelClient, handler Handler, mode string, pollInterval time.Duration, pollLimit int, monitorInterval time.Duration, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		client:          client,
		handler:         handler,
		mode:            mode,
		pollInterval:    pollInterval,
		pollLimit:       pollLimit,
		monitorInterval: monitorInterval,
		processed:       make(map[int]struct{}),
		log:             log,
	}
}

// Connected возвращает последнее наблюдаемое состояние соединения
func (in *Ingestor) Connected() bool {
	return in.connected.Load()
}

// Run засеивает дедупликацию, запускает монитор соединения и крутит цикл
// доставки до отмены контекста. Отмена завершает циклы без побочных эффектов.
func (in *Ingestor) Run(ctx context.Context) error {
	if err := in.seed(); err != nil {
		return fmt.Errorf("failed to seed processed ids: %w", err)
	}

	go in.monitorConnectivity(ctx)

	if in.mode == ModePoll {
		return in.pollLoop(ctx)
	}
	return in.pushLoop(ctx)
}

// seed помечает уже существующие сообщения обработанными, чтобы сообщения,
// появившиеся до старта процесса, никогда не попали в пайплайн
func (in *Ingestor) seed() error {
	msgs, err := in.client.RecentMessages(in.pollLimit)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		in.processed[m.ID] = struct{}{}
	}
	in.log.Info().Int("seeded", len(msgs)).Msg("processed ids seeded")
	return nil
}

// pollLoop периодически забирает свежие сообщения и отдает их по возрастанию ID
func (in *Ingestor) pollLoop(ctx context.Context) error {
	in.log.Info().Dur("interval", in.pollInterval).Msg("poll loop started")

	ticker := time.NewTicker(in.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			in.log.Info().Msg("poll loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := in.pollOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					in.log.Info().Msg("poll loop stopped")
					return err
				}
				in.log.Error().Err(err).Msg("poll cycle failed")
			}
		}
	}
}

// pollOnce обрабатывает один цикл опроса
func (in *Ingestor) pollOnce(ctx context.Context) error {
	msgs, err := in.client.RecentMessages(in.pollLimit)
	if err != nil {
		return err
	}

	fresh := make([]entity.ChannelMessage, 0, len(msgs))
	for _, m := range msgs {
		if _, seen := in.processed[m.ID]; !seen {
			fresh = append(fresh, m)
		}
	}

	// Старые раньше новых, чтобы сохранить порядок появления
	sort.Slice(fresh, func(i, j int) bool { return fresh[i].ID < fresh[j].ID })

	for _, m := range fresh {
		if err := in.dispatch(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// pushLoop читает подписку на новые сообщения
func (in *Ingestor) pushLoop(ctx context.Context) error {
	updates, err := in.client.Updates(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to channel updates: %w", err)
	}
	in.log.Info().Msg("subscribed to channel updates")

	for {
		select {
		case <-ctx.Done():
			in.log.Info().Msg("push loop stopped")
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			if err := in.dispatch(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// dispatch помечает сообщение обработанным строго до передачи в пайплайн,
// чтобы перекрывающиеся циклы опроса не отдали его повторно
func (in *Ingestor) dispatch(ctx context.Context, msg entity.ChannelMessage) error {
	if _, seen := in.processed[msg.ID]; seen {
		return nil
	}
	in.processed[msg.ID] = struct{}{}

	// Сообщения без текста пайплайн не вызывают
	if msg.Text == "" {
		in.log.Debug().Int("id", msg.ID).Bool("media", msg.HasMedia).Msg("message without text skipped")
		return nil
	}

	return in.handler(ctx, msg)
}

// monitorConnectivity периодически опрашивает транспорт и логирует только
// переходы состояния. Сам прием сообщений монитор не останавливает и не
// возобновляет: реконнекты — забота транспорта.
func (in *Ingestor) monitorConnectivity(ctx context.Context) {
	state := in.client.IsConnected()
	in.connected.Store(state)
	setConnectedGauge(state)

	ticker := time.NewTicker(in.monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := in.client.IsConnected()
			if current != state {
				if current {
					in.log.Info().Msg("channel transport connected")
				} else {
					in.log.Warn().Msg("channel transport disconnected")
				}
				state = current
				in.connected.Store(state)
				setConnectedGauge(state)
			}
		}
	}
}

func setConnectedGauge(connected bool) {
	if connected {
		metrics.TelegramConnected.Set(1)
	} else {
		metrics.TelegramConnected.Set(0)
	}
}
