package consultant

import (
	"context"
	"log/slog"

	"github.com/nextlevelbuilder/shopclaw/internal/buffer"
	"github.com/nextlevelbuilder/shopclaw/internal/bus"
	"github.com/nextlevelbuilder/shopclaw/internal/gateway"
)

// Consumer reads inbound messages off the bus, runs them through
// gateway admission and the debounce buffer, and publishes the
// consultant's replies.
type Consumer struct {
	bus        *bus.MessageBus
	gw         *gateway.Gateway
	buf        *buffer.Buffer
	consultant *Consultant
	log        *slog.Logger
}

// NewConsumer wires the intake side of the pipeline.
func NewConsumer(msgBus *bus.MessageBus, gw *gateway.Gateway, buf *buffer.Buffer, c *Consultant) *Consumer {
	return &Consumer{
		bus:        msgBus,
		gw:         gw,
		buf:        buf,
		consultant: c,
		log:        slog.Default().With("component", "consumer"),
	}
}

// Run consumes inbound messages until ctx ends.
func (c *Consumer) Run(ctx context.Context) {
	c.log.Info("inbound message consumer started")
	for {
		msg, ok := c.bus.ConsumeInbound(ctx)
		if !ok {
			c.log.Info("inbound message consumer stopped")
			return
		}

		decision := c.gw.Receive(ctx, msg)
		if decision != gateway.Accept {
			continue
		}

		text := msg.Content
		if text == "" {
			text = msg.CallbackData
		}
		channel := msg.Channel
		c.buf.Add(msg.ChatID, text, func(f buffer.Flush) {
			c.handleFlush(ctx, channel, f)
		})

		// Button taps carry a complete choice; answering them on the
		// debounce delay feels broken, so flush right away.
		if msg.Content == "" && msg.CallbackData != "" {
			c.buf.ForceFlush(msg.ChatID)
		}
	}
}

func (c *Consumer) handleFlush(ctx context.Context, channel string, f buffer.Flush) {
	c.log.Info("buffer flushed",
		"conversation", f.ConversationID, "merged_count", f.Count)

	res, err := c.consultant.HandleTurn(ctx, f.ConversationID, f.MergedText)
	if err != nil {
		c.log.Error("turn aborted", "conversation", f.ConversationID, "error", err)
		return
	}
	if res.Text == "" && len(res.Images) == 0 {
		return
	}
	c.bus.PublishOutbound(bus.OutboundMessage{
		Channel: channel,
		ChatID:  f.ConversationID,
		Content: res.Text,
		Images:  res.Images,
	})
}
