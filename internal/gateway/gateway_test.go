package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/shopclaw/internal/bus"
)

type fakeActivation struct {
	at map[string]time.Time
}

func (f *fakeActivation) LastActivation(_ context.Context, conversationID string) (time.Time, bool) {
	t, ok := f.at[conversationID]
	return t, ok
}

type fakeRecorder struct {
	records []InboundRecord
}

func (f *fakeRecorder) RecordInbound(_ context.Context, rec InboundRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func newTestGateway(rec InboundRecorder, act ActivationSource) *Gateway {
	g := New(NewRecentUpdates(10), 5*time.Minute, act, rec)
	g.now = fixedNow
	return g
}

func freshMsg(updateID int64) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:   "telegram",
		UpdateID:  updateID,
		SenderID:  "77",
		ChatID:    "chat1",
		Content:   "hello",
		Timestamp: fixedNow().Add(-time.Minute).Unix(),
	}
}

func TestReceive_Accept(t *testing.T) {
	rec := &fakeRecorder{}
	g := newTestGateway(rec, nil)

	if d := g.Receive(context.Background(), freshMsg(1)); d != Accept {
		t.Fatalf("decision = %s, want accept", d)
	}
	if len(rec.records) != 1 {
		t.Fatalf("persisted %d records, want 1", len(rec.records))
	}
	if rec.records[0].UpdateID != 1 || rec.records[0].Text != "hello" {
		t.Errorf("record = %+v", rec.records[0])
	}
}

// Replaying the same update id twice produces exactly one persisted message.
func TestReceive_DuplicateIsIdempotent(t *testing.T) {
	rec := &fakeRecorder{}
	g := newTestGateway(rec, nil)

	if d := g.Receive(context.Background(), freshMsg(5)); d != Accept {
		t.Fatalf("first receive = %s, want accept", d)
	}
	if d := g.Receive(context.Background(), freshMsg(5)); d != Duplicate {
		t.Fatalf("second receive = %s, want duplicate", d)
	}
	if len(rec.records) != 1 {
		t.Errorf("persisted %d records, want exactly 1", len(rec.records))
	}
}

func TestReceive_StaleByAge(t *testing.T) {
	g := newTestGateway(nil, nil)

	msg := freshMsg(2)
	msg.Timestamp = fixedNow().Add(-6 * time.Minute).Unix()
	if d := g.Receive(context.Background(), msg); d != Stale {
		t.Errorf("decision = %s, want stale for 6-minute-old message", d)
	}

	// A stale update is not recorded in the dedup set: decision stays stable.
	if d := g.Receive(context.Background(), msg); d != Stale {
		t.Errorf("replayed stale decision = %s, want stale", d)
	}
}

func TestReceive_StaleBeforeActivation(t *testing.T) {
	act := &fakeActivation{at: map[string]time.Time{
		"chat1": fixedNow().Add(-30 * time.Second),
	}}
	g := newTestGateway(nil, act)

	// One minute old: within max age but before the owner re-enabled the bot.
	if d := g.Receive(context.Background(), freshMsg(3)); d != Stale {
		t.Errorf("decision = %s, want stale for pre-activation message", d)
	}

	// Newer than activation: accepted.
	msg := freshMsg(4)
	msg.Timestamp = fixedNow().Add(-10 * time.Second).Unix()
	if d := g.Receive(context.Background(), msg); d != Accept {
		t.Errorf("decision = %s, want accept for post-activation message", d)
	}
}

func TestReceive_IgnoredWithoutPayload(t *testing.T) {
	g := newTestGateway(nil, nil)

	msg := freshMsg(6)
	msg.Content = ""
	if d := g.Receive(context.Background(), msg); d != Ignored {
		t.Errorf("decision = %s, want ignored for empty payload", d)
	}

	// Callback actions count as payload.
	msg.CallbackData = "confirm:1"
	if d := g.Receive(context.Background(), msg); d != Accept {
		t.Errorf("decision = %s, want accept for callback payload", d)
	}
}

func TestRecentUpdates_EvictsOldestFirst(t *testing.T) {
	r := NewRecentUpdates(3)
	r.Add(1)
	r.Add(2)
	r.Add(3)
	r.Add(4) // evicts 1

	if r.Seen(1) {
		t.Error("oldest id should have been evicted")
	}
	for _, id := range []int64{2, 3, 4} {
		if !r.Seen(id) {
			t.Errorf("id %d should be resident", id)
		}
	}
	if r.Len() != 3 {
		t.Errorf("len = %d, want 3", r.Len())
	}
}

func TestRecentUpdates_NonMonotonicIDs(t *testing.T) {
	r := NewRecentUpdates(3)
	r.Add(100)
	r.Add(7) // out of order: still deduped while resident
	r.Add(50)

	if !r.Seen(7) {
		t.Error("non-monotonic id should be resident")
	}
	r.Add(200) // evicts 100 (arrival order, not numeric order)
	if r.Seen(100) {
		t.Error("eviction should follow arrival order")
	}
	if !r.Seen(7) {
		t.Error("id 7 arrived after 100 and must survive its eviction")
	}
}

func TestRecentUpdates_ReAddResidentIsNoop(t *testing.T) {
	r := NewRecentUpdates(2)
	r.Add(1)
	r.Add(1)
	r.Add(2)
	if r.Len() != 2 {
		t.Errorf("len = %d, want 2", r.Len())
	}
	if !r.Seen(1) {
		t.Error("id 1 should still be resident")
	}
}
