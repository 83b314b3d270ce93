// Package buffer implements the per-conversation debounce-and-merge buffer.
// Rapid-fire messages from one user are held back and merged into a single
// batch before the consultant model is invoked, with the hold-off delay
// growing (capped) on each new arrival.
//
// Each conversation moves Idle → Buffering → Flushing → Idle. Buffers are
// fully independent across conversations; there is no cross-conversation
// locking beyond the map mutex.
package buffer

import (
	"log/slog"
	"sync"
	"time"
)

// Flush is the merged batch handed to the flush callback.
type Flush struct {
	ConversationID string
	MergedText     string
	Count          int
}

// FlushFunc processes one merged batch. It may block (AI call, sends);
// the conversation's buffer state is released only after it returns.
type FlushFunc func(Flush)

// CancelFunc stops a scheduled callback. It reports whether the callback
// was stopped before running, matching time.Timer.Stop.
type CancelFunc func() bool

// Scheduler schedules a single callback after a delay. The seam exists so
// tests can drive time deterministically instead of sleeping.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) CancelFunc
}

// TimerScheduler is the production Scheduler backed by time.AfterFunc.
type TimerScheduler struct{}

func (TimerScheduler) Schedule(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return t.Stop
}

// Config controls debounce timing.
type Config struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	DelayIncrement time.Duration
}

// DefaultConfig returns the production debounce timings.
func DefaultConfig() Config {
	return Config{
		BaseDelay:      2000 * time.Millisecond,
		MaxDelay:       5000 * time.Millisecond,
		DelayIncrement: 1000 * time.Millisecond,
	}
}

type pendingMessage struct {
	text      string
	arrivedAt time.Time
}

type state struct {
	pending     []pendingMessage
	delay       time.Duration
	cancel      CancelFunc
	lastArrival time.Time
	flushing    bool
	onFlush     FlushFunc
}

// Buffer holds per-conversation debounce state.
type Buffer struct {
	mu     sync.Mutex
	cfg    Config
	sched  Scheduler
	now    func() time.Time
	states map[string]*state
}

// New creates a Buffer. A nil scheduler uses real timers.
func New(cfg Config, sched Scheduler) *Buffer {
	if sched == nil {
		sched = TimerScheduler{}
	}
	if cfg.BaseDelay <= 0 {
		cfg = DefaultConfig()
	}
	return &Buffer{
		cfg:    cfg,
		sched:  sched,
		now:    time.Now,
		states: make(map[string]*state),
	}
}

// Add appends a message to the conversation's pending batch and
// (re)schedules its flush. The first message of an idle conversation gets
// the base delay; each further arrival cancels the pending timer and
// extends the delay by the configured increment, capped at the maximum.
func (b *Buffer) Add(conversationID, text string, onFlush FlushFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[conversationID]
	if !ok {
		st = &state{delay: b.cfg.BaseDelay}
		b.states[conversationID] = st
	}
	st.onFlush = onFlush
	st.pending = append(st.pending, pendingMessage{text: text, arrivedAt: b.now()})
	st.lastArrival = b.now()

	if st.flushing {
		// A flush callback is running; the message waits for the next
		// episode, scheduled when the current flush completes.
		return
	}

	if ok {
		if st.cancel != nil {
			st.cancel()
		}
		st.delay += b.cfg.DelayIncrement
		if st.delay > b.cfg.MaxDelay {
			st.delay = b.cfg.MaxDelay
		}
	}

	id := conversationID
	st.cancel = b.sched.Schedule(st.delay, func() { b.flush(id) })
}

// ForceFlush bypasses the timer and flushes the conversation synchronously.
func (b *Buffer) ForceFlush(conversationID string) {
	b.flush(conversationID)
}

// Pending reports how many messages are currently buffered for a
// conversation. Zero for idle conversations.
func (b *Buffer) Pending(conversationID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[conversationID]
	if !ok {
		return 0
	}
	return len(st.pending)
}

// flush merges the pending batch, runs the callback outside the lock, and
// removes the buffer state only after the callback returns. That ordering
// guarantees no second flush can start for this conversation while one is
// in progress.
func (b *Buffer) flush(conversationID string) {
	b.mu.Lock()
	st, ok := b.states[conversationID]
	if !ok || st.flushing {
		b.mu.Unlock()
		return
	}
	if st.cancel != nil {
		st.cancel()
		st.cancel = nil
	}
	if len(st.pending) == 0 {
		delete(b.states, conversationID)
		b.mu.Unlock()
		return
	}

	texts := make([]string, len(st.pending))
	for i, p := range st.pending {
		texts[i] = p.text
	}
	count := len(st.pending)
	st.pending = nil
	st.flushing = true
	onFlush := st.onFlush
	b.mu.Unlock()

	merged := MergeTexts(texts)
	slog.Debug("flushing buffered messages",
		"conversation_id", conversationID, "count", count, "merged_len", len(merged))

	if onFlush != nil {
		onFlush(Flush{ConversationID: conversationID, MergedText: merged, Count: count})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(st.pending) > 0 {
		// Messages arrived while the callback ran: start a fresh episode.
		st.flushing = false
		st.delay = b.cfg.BaseDelay
		id := conversationID
		st.cancel = b.sched.Schedule(st.delay, func() { b.flush(id) })
		return
	}
	delete(b.states, conversationID)
}
