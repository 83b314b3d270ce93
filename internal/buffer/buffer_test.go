package buffer

import (
	"sync"
	"testing"
	"time"
)

// fakeScheduler records scheduled callbacks so tests control time.
type fakeScheduler struct {
	mu    sync.Mutex
	tasks []*fakeTask
}

type fakeTask struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) Schedule(d time.Duration, fn func()) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &fakeTask{delay: d, fn: fn}
	s.tasks = append(s.tasks, task)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if task.fired || task.stopped {
			return false
		}
		task.stopped = true
		return true
	}
}

// fireLast runs the most recently scheduled live task, as the timer would.
func (s *fakeScheduler) fireLast() {
	s.mu.Lock()
	var task *fakeTask
	for i := len(s.tasks) - 1; i >= 0; i-- {
		if !s.tasks[i].stopped && !s.tasks[i].fired {
			task = s.tasks[i]
			break
		}
	}
	if task == nil {
		s.mu.Unlock()
		return
	}
	task.fired = true
	s.mu.Unlock()
	task.fn()
}

func (s *fakeScheduler) liveDelays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, t := range s.tasks {
		out = append(out, t.delay)
	}
	return out
}

func testConfig() Config {
	return Config{
		BaseDelay:      2000 * time.Millisecond,
		MaxDelay:       5000 * time.Millisecond,
		DelayIncrement: 1000 * time.Millisecond,
	}
}

func TestBuffer_MergesBurstIntoOneFlush(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(testConfig(), sched)

	var flushes []Flush
	onFlush := func(f Flush) { flushes = append(flushes, f) }

	b.Add("chat1", "Hello", onFlush)
	b.Add("chat1", "I want", onFlush)
	b.Add("chat1", "2 phones", onFlush)
	sched.fireLast()

	if len(flushes) != 1 {
		t.Fatalf("got %d flushes, want 1", len(flushes))
	}
	f := flushes[0]
	if f.MergedText != "Hello I want 2 phones" {
		t.Errorf("merged = %q, want \"Hello I want 2 phones\"", f.MergedText)
	}
	if f.Count != 3 {
		t.Errorf("count = %d, want 3", f.Count)
	}
	if f.ConversationID != "chat1" {
		t.Errorf("conversation = %q", f.ConversationID)
	}
	if b.Pending("chat1") != 0 {
		t.Errorf("state not cleared after flush")
	}
}

func TestBuffer_AdaptiveDelayCapped(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(testConfig(), sched)
	noop := func(Flush) {}

	b.Add("chat1", "a", noop)
	b.Add("chat1", "b", noop)
	b.Add("chat1", "c", noop)
	b.Add("chat1", "d", noop)

	delays := sched.liveDelays()
	want := []time.Duration{2000, 3000, 4000, 5000}
	if len(delays) != len(want) {
		t.Fatalf("scheduled %d timers, want %d", len(delays), len(want))
	}
	for i := range want {
		if delays[i] != want[i]*time.Millisecond {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], want[i]*time.Millisecond)
		}
	}

	// Only the last timer may still be live.
	sched.mu.Lock()
	for i, task := range sched.tasks[:len(sched.tasks)-1] {
		if !task.stopped {
			t.Errorf("timer %d not cancelled on rearrival", i)
		}
	}
	sched.mu.Unlock()
}

func TestBuffer_IndependentConversations(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(testConfig(), sched)

	var mu sync.Mutex
	got := map[string]string{}
	onFlush := func(f Flush) {
		mu.Lock()
		got[f.ConversationID] = f.MergedText
		mu.Unlock()
	}

	b.Add("a", "hello from a", onFlush)
	b.Add("b", "hello from b", onFlush)
	sched.fireLast()
	sched.fireLast()

	if got["a"] != "hello from a" || got["b"] != "hello from b" {
		t.Errorf("flushes = %v", got)
	}
}

func TestBuffer_NoOverlappingFlushes(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(testConfig(), sched)

	var flushes []Flush
	var inCallback bool
	onFlush := func(f Flush) {
		flushes = append(flushes, f)
		if inCallback {
			t.Error("overlapping flush for the same conversation")
		}
		inCallback = true
		// Reentrant flush attempt while the callback runs must be a no-op.
		b.ForceFlush(f.ConversationID)
		inCallback = false
	}

	b.Add("chat1", "first", onFlush)
	sched.fireLast()

	if len(flushes) != 1 {
		t.Fatalf("got %d flushes, want 1", len(flushes))
	}
}

func TestBuffer_ArrivalDuringFlushStartsNewEpisode(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(testConfig(), sched)

	var flushes []Flush
	first := true
	var onFlush FlushFunc
	onFlush = func(f Flush) {
		flushes = append(flushes, f)
		if first {
			first = false
			b.Add(f.ConversationID, "late arrival", onFlush)
		}
	}

	b.Add("chat1", "early", onFlush)
	sched.fireLast() // flush "early"; "late arrival" lands mid-callback
	sched.fireLast() // second episode's timer

	if len(flushes) != 2 {
		t.Fatalf("got %d flushes, want 2", len(flushes))
	}
	if flushes[0].MergedText != "early" || flushes[1].MergedText != "late arrival" {
		t.Errorf("flushes = %+v", flushes)
	}
}

func TestBuffer_ForceFlushBypassesTimer(t *testing.T) {
	sched := &fakeScheduler{}
	b := New(testConfig(), sched)

	var flushes []Flush
	b.Add("chat1", "urgent", func(f Flush) { flushes = append(flushes, f) })
	b.ForceFlush("chat1")

	if len(flushes) != 1 || flushes[0].MergedText != "urgent" {
		t.Fatalf("flushes = %+v", flushes)
	}
	// The original timer must be dead: firing it again does nothing.
	sched.fireLast()
	if len(flushes) != 1 {
		t.Errorf("timer fired after force flush, got %d flushes", len(flushes))
	}
}

func TestBuffer_FlushUnknownConversationIsNoop(t *testing.T) {
	b := New(testConfig(), &fakeScheduler{})
	b.ForceFlush("ghost") // must not panic
}

func TestMergeTexts(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want string
	}{
		{"simple join", []string{"Hello", "I want", "2 phones"}, "Hello I want 2 phones"},
		{"whitespace collapsed", []string{"  Hello \n world ", "again"}, "Hello world again"},
		{"repeated filler dropped", []string{"ok", "ok", "send it"}, "ok send it"},
		{"filler with punctuation", []string{"ok.", "ok!", "go"}, "ok. go"},
		{"non-filler repeats kept", []string{"really", "really", "nice"}, "really really nice"},
		{"filler repeat inside one message", []string{"yes yes please"}, "yes please"},
		{"empty input", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MergeTexts(tt.in); got != tt.want {
				t.Errorf("MergeTexts(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
