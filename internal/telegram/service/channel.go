package service

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"sighunt/internal/telegram/entity"
)

// ChannelClient — транспорт отслеживаемого канала. Авторизация, реконнекты
// и сессии остаются за транспортом; ядру важны только эти три операции.
type ChannelClient interface {
	// RecentMessages возвращает накопившиеся сообщения канала, не больше limit
	RecentMessages(limit int) ([]entity.ChannelMessage, error)
	// Updates отдает новые сообщения канала до отмены контекста
	Updates(ctx context.Context) (<-chan entity.ChannelMessage, error)
	// IsConnected сообщает наблюдаемое состояние соединения
	IsConnected() bool
}

// BotChannel — ChannelClient поверх Telegram Bot API.
// Bot API не отдает историю канала, поэтому RecentMessages возвращает
// неподтвержденный хвост getUpdates и сдвигает offset.
type BotChannel struct {
	bot       *tgbotapi.BotAPI
	channelID int64
	offset    int
	log       zerolog.Logger
}

// NewBotChannel создает клиента и проверяет токен запросом getMe
func NewBotChannel(token string, channelID int64, log zerolog.Logger) (*BotChannel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	log.Info().Str("bot", bot.Self.UserName).Int64("channel", channelID).Msg("telegram bot authorized")
	return &BotChannel{bot: bot, channelID: channelID, log: log}, nil
}

// RecentMessages забирает ожидающие обновления и фильтрует посты канала
func (b *BotChannel) RecentMessages(limit int) ([]entity.ChannelMessage, error) {
	updates, err := b.bot.GetUpdates(tgbotapi.UpdateConfig{
		Offset: b.offset,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get updates: %w", err)
	}

	messages := make([]entity.ChannelMessage, 0, len(updates))
	for _, upd := range updates {
		if upd.UpdateID >= b.offset {
			b.offset = upd.UpdateID + 1
		}
		if msg, ok := b.fromUpdate(upd); ok {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// Updates подписывается на новые сообщения канала
func (b *BotChannel) Updates(ctx context.Context) (<-chan entity.ChannelMessage, error) {
	cfg := tgbotapi.NewUpdate(b.offset)
	cfg.Timeout = 30
	raw := b.bot.GetUpdatesChan(cfg)

	out := make(chan entity.ChannelMessage)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				b.bot.StopReceivingUpdates()
				return
			case upd, ok := <-raw:
				if !ok {
					return
				}
				if msg, ok := b.fromUpdate(upd); ok {
					select {
					case out <- msg:
					case <-ctx.Done():
						b.bot.StopReceivingUpdates()
						return
					}
				}
			}
		}
	}()

	return out, nil
}

// IsConnected проверяет доступность Bot API запросом getMe
func (b *BotChannel) IsConnected() bool {
	_, err := b.bot.GetMe()
	return err == nil
}

// fromUpdate извлекает сообщение отслеживаемого канала из обновления
func (b *BotChannel) fromUpdate(upd tgbotapi.Update) (entity.ChannelMessage, bool) {
	post := upd.ChannelPost
	if post == nil || post.Chat == nil || post.Chat.ID != b.channelID {
		return entity.ChannelMessage{}, false
	}

	text := post.Text
	if text == "" {
		text = post.Caption
	}

	hasMedia := len(post.Photo) > 0 || post.Document != nil || post.Video != nil

	return entity.ChannelMessage{
		ID:       post.MessageID,
		Text:     text,
		HasMedia: hasMedia,
	}, true
}
