package channels

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/shopclaw/internal/bus"
	"github.com/nextlevelbuilder/shopclaw/internal/retry"
)

// Manager owns the registered channels and routes outbound replies back
// to the platform they came from.
type Manager struct {
	bus      *bus.MessageBus
	channels map[string]Channel
}

// NewManager creates an empty channel manager.
func NewManager(msgBus *bus.MessageBus) *Manager {
	return &Manager{
		bus:      msgBus,
		channels: make(map[string]Channel),
	}
}

// Register adds a channel under its name.
func (m *Manager) Register(ch Channel) {
	m.channels[ch.Name()] = ch
}

// Get returns a registered channel by name.
func (m *Manager) Get(name string) (Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

// StartAll starts every registered channel, failing on the first error.
func (m *Manager) StartAll(ctx context.Context) error {
	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", name, err)
		}
		slog.Info("channel started", "channel", name)
	}
	return nil
}

// StopAll stops every running channel. Errors are logged, not returned:
// shutdown keeps going.
func (m *Manager) StopAll(ctx context.Context) {
	for name, ch := range m.channels {
		if !ch.IsRunning() {
			continue
		}
		if err := ch.Stop(ctx); err != nil {
			slog.Error("channel stop failed", "channel", name, "error", err)
		}
	}
}

// DispatchOutbound consumes outbound messages and delivers each through
// its channel until ctx ends.
func (m *Manager) DispatchOutbound(ctx context.Context) {
	slog.Info("outbound dispatcher started")
	for {
		msg, ok := m.bus.ConsumeOutbound(ctx)
		if !ok {
			slog.Info("outbound dispatcher stopped")
			return
		}
		ch, found := m.channels[msg.Channel]
		if !found {
			slog.Warn("outbound message for unknown channel", "channel", msg.Channel)
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			f := retry.Describe(err)
			slog.Error("outbound delivery failed",
				"channel", msg.Channel, "chat_id", msg.ChatID,
				"code", f.Code, "error", f.Description)
		}
	}
}
