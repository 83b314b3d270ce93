package bus

import "context"

// InboundMessage represents one webhook/polling event received from the
// messaging platform, before admission and buffering.
type InboundMessage struct {
	Channel      string            `json:"channel"`
	UpdateID     int64             `json:"update_id"`
	SenderID     string            `json:"sender_id"`
	ChatID       string            `json:"chat_id"`
	Content      string            `json:"content"`
	Timestamp    int64             `json:"timestamp"` // unix seconds from the platform
	CallbackData string            `json:"callback_data,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// HasPayload reports whether the event carries anything actionable:
// either message text or a callback action.
func (m InboundMessage) HasPayload() bool {
	return m.Content != "" || m.CallbackData != ""
}

// OutboundMessage represents a reply to be delivered to the platform.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Images   []string          `json:"images,omitempty"` // photo URLs, sent as a media group when >1
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MessageRouter abstracts inbound/outbound message routing between the
// platform channel and the consultant pipeline.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	ConsumeOutbound(ctx context.Context) (OutboundMessage, bool)
}
