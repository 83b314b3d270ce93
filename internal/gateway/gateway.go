// Package gateway admits inbound platform updates into the pipeline.
// Every webhook/polling event passes through exactly one Receive call and
// gets one of four decisions; only accepted updates reach the buffer.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/shopclaw/internal/bus"
)

// Decision is the admission outcome for one inbound update.
type Decision string

const (
	Accept    Decision = "accept"
	Duplicate Decision = "duplicate"
	Stale     Decision = "stale"
	Ignored   Decision = "ignored"
)

// DefaultMaxMessageAge is the staleness cutoff for inbound updates.
const DefaultMaxMessageAge = 5 * time.Minute

// ActivationSource reports when a conversation's owner last activated (or
// re-enabled) the integration. Messages older than that are history replays
// from the platform and must not be answered.
type ActivationSource interface {
	LastActivation(ctx context.Context, conversationID string) (time.Time, bool)
}

// InboundRecord is the persisted trace of an admitted update.
type InboundRecord struct {
	UpdateID       int64
	ConversationID string
	SenderID       string
	Text           string
	Timestamp      time.Time
}

// InboundRecorder persists admitted updates. Implementations must be
// idempotent on UpdateID so webhook replays never duplicate rows.
type InboundRecorder interface {
	RecordInbound(ctx context.Context, rec InboundRecord) error
}

// Gateway deduplicates and filters inbound updates.
type Gateway struct {
	recent     *RecentUpdates
	maxAge     time.Duration
	activation ActivationSource
	recorder   InboundRecorder
	now        func() time.Time
}

// New creates a Gateway. activation and recorder may be nil, disabling the
// pre-activation check and persistence respectively.
func New(recent *RecentUpdates, maxAge time.Duration, activation ActivationSource, recorder InboundRecorder) *Gateway {
	if recent == nil {
		recent = NewRecentUpdates(DefaultRecentCapacity)
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxMessageAge
	}
	return &Gateway{
		recent:     recent,
		maxAge:     maxAge,
		activation: activation,
		recorder:   recorder,
		now:        time.Now,
	}
}

// Receive decides whether one inbound update enters the pipeline.
// On Accept the update id is recorded in the dedup set and the message is
// persisted; forwarding to the buffer is the caller's job, admission has
// no other side effects.
func (g *Gateway) Receive(ctx context.Context, msg bus.InboundMessage) Decision {
	if !msg.HasPayload() {
		slog.Debug("update ignored: no actionable payload",
			"update_id", msg.UpdateID, "chat_id", msg.ChatID)
		return Ignored
	}

	if g.recent.Seen(msg.UpdateID) {
		slog.Debug("update rejected: duplicate", "update_id", msg.UpdateID)
		return Duplicate
	}

	messageTime := time.Unix(msg.Timestamp, 0)
	if g.now().Sub(messageTime) > g.maxAge {
		slog.Debug("update rejected: stale",
			"update_id", msg.UpdateID, "age", g.now().Sub(messageTime).String())
		return Stale
	}
	if g.activation != nil {
		if activated, ok := g.activation.LastActivation(ctx, msg.ChatID); ok && messageTime.Before(activated) {
			slog.Debug("update rejected: precedes owner activation",
				"update_id", msg.UpdateID, "chat_id", msg.ChatID)
			return Stale
		}
	}

	g.recent.Add(msg.UpdateID)

	if g.recorder != nil {
		rec := InboundRecord{
			UpdateID:       msg.UpdateID,
			ConversationID: msg.ChatID,
			SenderID:       msg.SenderID,
			Text:           msg.Content,
			Timestamp:      messageTime,
		}
		if err := g.recorder.RecordInbound(ctx, rec); err != nil {
			slog.Error("failed to persist inbound message",
				"update_id", msg.UpdateID, "error", err)
		}
	}

	return Accept
}
