package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/shopclaw/internal/bus"
	"github.com/nextlevelbuilder/shopclaw/internal/retry"
)

// telegramMessageLimit is the Bot API's maximum text message length.
const telegramMessageLimit = 4096

// defaultSendRate is messages per second per chat; Telegram throttles
// around one message per second in a single chat.
const defaultSendRate = 1.0

// Sender delivers outbound messages under Telegram's per-chat rate
// limit, retrying transient API failures.
type Sender struct {
	bot         *telego.Bot
	retryConfig retry.Config

	mu       sync.Mutex
	rateConf rate.Limit
	limiters map[int64]*rate.Limiter
}

// NewSender creates a rate-limited sender. messagesPerSec <= 0 uses the
// default.
func NewSender(bot *telego.Bot, messagesPerSec float64, rc retry.Config) *Sender {
	if messagesPerSec <= 0 {
		messagesPerSec = defaultSendRate
	}
	return &Sender{
		bot:         bot,
		retryConfig: rc,
		rateConf:    rate.Limit(messagesPerSec),
		limiters:    make(map[int64]*rate.Limiter),
	}
}

func (s *Sender) limiter(chatID int64) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(s.rateConf, 1)
		s.limiters[chatID] = l
	}
	return l
}

// Send delivers one outbound message: photos first (as a media group
// when there are several), then the text, chunked to the API limit.
func (s *Sender) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := parseChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.ChatID, err)
	}

	if raw := msg.Metadata["delete_message_id"]; raw != "" {
		// Deleting a superseded message is best-effort.
		if id, convErr := strconv.Atoi(raw); convErr == nil {
			if err := s.DeleteMessage(ctx, chatID, id); err != nil {
				slog.Warn("telegram message delete failed", "chat_id", chatID, "message_id", id, "error", err)
			}
		}
	}
	if raw := msg.Metadata["edit_message_id"]; raw != "" && msg.Content != "" {
		if id, convErr := strconv.Atoi(raw); convErr == nil {
			return s.EditText(ctx, chatID, id, msg.Content)
		}
	}

	if len(msg.Images) > 0 {
		if err := s.sendPhotos(ctx, chatID, msg.Images); err != nil {
			// Photos are best-effort; the text reply still goes out.
			slog.Warn("telegram photo delivery failed", "chat_id", chatID, "error", err)
		}
	}
	if msg.Content == "" {
		return nil
	}
	return s.sendChunkedText(ctx, chatID, msg.Content)
}

// EditText replaces the text of an already-sent message. Text beyond the
// API limit is truncated; editing cannot split into multiple messages.
func (s *Sender) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	if runes := []rune(text); len(runes) > telegramMessageLimit {
		text = string(runes[:telegramMessageLimit])
	}
	if err := s.limiter(chatID).Wait(ctx); err != nil {
		return err
	}
	_, err := retry.Do(ctx, s.retryConfig, func(ctx context.Context) (*telego.Message, error) {
		m, err := s.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
			ChatID:    tu.ID(chatID),
			MessageID: messageID,
			Text:      text,
		})
		return m, classify(err)
	})
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// DeleteMessage removes a previously sent message.
func (s *Sender) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := s.limiter(chatID).Wait(ctx); err != nil {
		return err
	}
	_, err := retry.Do(ctx, s.retryConfig, func(ctx context.Context) (struct{}, error) {
		err := s.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
			ChatID:    tu.ID(chatID),
			MessageID: messageID,
		})
		return struct{}{}, classify(err)
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *Sender) sendChunkedText(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, telegramMessageLimit) {
		if err := s.limiter(chatID).Wait(ctx); err != nil {
			return err
		}
		chunk := chunk
		_, err := retry.Do(ctx, s.retryConfig, func(ctx context.Context) (*telego.Message, error) {
			m, err := s.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk))
			return m, classify(err)
		})
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (s *Sender) sendPhotos(ctx context.Context, chatID int64, urls []string) error {
	if err := s.limiter(chatID).Wait(ctx); err != nil {
		return err
	}

	if len(urls) == 1 {
		_, err := retry.Do(ctx, s.retryConfig, func(ctx context.Context) (*telego.Message, error) {
			m, err := s.bot.SendPhoto(ctx, &telego.SendPhotoParams{
				ChatID: tu.ID(chatID),
				Photo:  telego.InputFile{URL: urls[0]},
			})
			return m, classify(err)
		})
		return err
	}

	// Telegram caps media groups at 10 entries.
	if len(urls) > 10 {
		urls = urls[:10]
	}
	media := make([]telego.InputMedia, 0, len(urls))
	for _, u := range urls {
		media = append(media, &telego.InputMediaPhoto{
			Type:  telego.MediaTypePhoto,
			Media: telego.InputFile{URL: u},
		})
	}
	_, err := retry.Do(ctx, s.retryConfig, func(ctx context.Context) ([]telego.Message, error) {
		msgs, err := s.bot.SendMediaGroup(ctx, &telego.SendMediaGroupParams{
			ChatID: tu.ID(chatID),
			Media:  media,
		})
		return msgs, classify(err)
	})
	return err
}

// classify maps Telegram API errors onto the retry package's HTTP error
// so 429/5xx get retried and 4xx fail fast.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) {
		return &retry.HTTPError{Status: apiErr.ErrorCode, Description: apiErr.Description}
	}
	return err
}

// splitMessage cuts text into API-sized chunks, preferring newline
// boundaries. The Bot API limit counts characters, not bytes, and a cut
// inside a multibyte rune would produce invalid UTF-8 the API rejects,
// so splitting works on runes.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
