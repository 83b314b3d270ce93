package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/shopclaw/internal/bus"
	"github.com/nextlevelbuilder/shopclaw/internal/channels"
)

// handleUpdate converts one Telegram update into a bus message.
// Admission (dedup, staleness) happens downstream in the gateway; the
// channel's only job is faithful translation.
func (c *Channel) handleUpdate(ctx context.Context, update telego.Update) {
	switch {
	case update.Message != nil:
		c.handleMessage(update)
	case update.CallbackQuery != nil:
		c.handleCallbackQuery(ctx, update.CallbackQuery, update.UpdateID)
	default:
		slog.Debug("telegram update skipped (no message)", "update_id", update.UpdateID)
	}
}

func (c *Channel) handleMessage(update telego.Update) {
	message := update.Message
	user := message.From
	if user == nil {
		return
	}

	// Skip service messages (member added/removed, title changed, etc.).
	if isServiceMessage(message) {
		slog.Debug("telegram service message skipped", "chat_id", message.Chat.ID)
		return
	}

	content := message.Text
	if message.Caption != "" {
		if content != "" {
			content += "\n"
		}
		content += message.Caption
	}

	slog.Debug("telegram message received",
		"chat_id", message.Chat.ID,
		"user_id", user.ID,
		"text_preview", channels.Truncate(content, 60),
	)

	c.Bus().PublishInbound(bus.InboundMessage{
		Channel:   c.Name(),
		UpdateID:  int64(update.UpdateID),
		SenderID:  fmt.Sprintf("%d", user.ID),
		ChatID:    fmt.Sprintf("%d", message.Chat.ID),
		Content:   content,
		Timestamp: message.Date,
		Metadata: map[string]string{
			"message_id": fmt.Sprintf("%d", message.MessageID),
		},
	})
}

func (c *Channel) handleCallbackQuery(ctx context.Context, query *telego.CallbackQuery, updateID int) {
	// Acknowledge right away so the client stops its spinner; the actual
	// reply arrives through the normal outbound path.
	if err := c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	}); err != nil {
		slog.Warn("telegram answer callback failed", "error", err)
	}

	if query.Message == nil {
		slog.Debug("telegram callback without message", "query_id", query.ID)
		return
	}
	chat := query.Message.GetChat()

	c.Bus().PublishInbound(bus.InboundMessage{
		Channel:      c.Name(),
		UpdateID:     int64(updateID),
		SenderID:     fmt.Sprintf("%d", query.From.ID),
		ChatID:       fmt.Sprintf("%d", chat.ID),
		CallbackData: query.Data,
		Timestamp:    time.Now().Unix(),
	})
}

func isServiceMessage(m *telego.Message) bool {
	if m.Text != "" || m.Caption != "" {
		return false
	}
	return len(m.NewChatMembers) > 0 ||
		m.LeftChatMember != nil ||
		m.NewChatTitle != "" ||
		m.NewChatPhoto != nil ||
		m.DeleteChatPhoto ||
		m.GroupChatCreated ||
		m.SupergroupChatCreated ||
		m.ChannelChatCreated ||
		m.PinnedMessage != nil
}
