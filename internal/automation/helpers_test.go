package automation

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"groupbot-gateway/internal/database"
	"groupbot-gateway/internal/models"
	"groupbot-gateway/internal/store"

	"gorm.io/gorm/logger"
)

const testGroup = "-100123"

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, fakeWaiter{at: c.now.Add(d), ch: ch})
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	pending := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(c.now) {
			w.ch <- c.now
			continue
		}
		pending = append(pending, w)
	}
	c.waiters = pending
}

// waitForSleepers blocks until n goroutines are parked in After.
func (c *fakeClock) waitForSleepers(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		got := len(c.waiters)
		c.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sleepers", n)
}

type call struct {
	Op     string
	Chat   string
	Target string
	Text   string
}

type recordingMessenger struct {
	mu    sync.Mutex
	calls []call
	fail  map[string]error
}

func newRecordingMessenger() *recordingMessenger {
	return &recordingMessenger{fail: map[string]error{}}
}

func (r *recordingMessenger) record(c call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail[c.Op]; err != nil {
		return err
	}
	r.calls = append(r.calls, c)
	return nil
}

func (r *recordingMessenger) failOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[op] = err
}

func (r *recordingMessenger) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *recordingMessenger) SendMessage(_ context.Context, chatID, text string) error {
	return r.record(call{Op: "send", Chat: chatID, Text: text})
}

func (r *recordingMessenger) DeleteMessage(_ context.Context, chatID, messageID string) error {
	return r.record(call{Op: "delete", Chat: chatID, Target: messageID})
}

func (r *recordingMessenger) WarnUser(_ context.Context, chatID string, user User, reason string) error {
	return r.record(call{Op: "warn", Chat: chatID, Target: user.ID, Text: reason})
}

func (r *recordingMessenger) MuteUser(_ context.Context, chatID, userID string, d time.Duration) error {
	return r.record(call{Op: "mute", Chat: chatID, Target: userID, Text: d.String()})
}

func (r *recordingMessenger) KickUser(_ context.Context, chatID, userID, reason string) error {
	return r.record(call{Op: "kick", Chat: chatID, Target: userID, Text: reason})
}

func (r *recordingMessenger) AssignRole(_ context.Context, chatID, userID, role string) error {
	return r.record(call{Op: "role", Chat: chatID, Target: userID, Text: role})
}

func (r *recordingMessenger) SendDirect(_ context.Context, userID, text string) error {
	return r.record(call{Op: "dm", Target: userID, Text: text})
}

type harness struct {
	store     *store.Store
	logs      *store.TriggerLog
	messenger *recordingMessenger
	clock     *fakeClock
	engine    *Engine
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "automation.db"), logger.Silent)
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	h := &harness{
		store:     store.New(db),
		logs:      store.NewTriggerLog(db, 100),
		messenger: newRecordingMessenger(),
		clock:     newFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)),
	}
	opts = append([]Option{WithClock(h.clock)}, opts...)
	h.engine = NewEngine(h.store, h.logs, h.messenger, opts...)
	return h
}

func (h *harness) process(t *testing.T, ev Event) []Match {
	t.Helper()
	matches, err := h.engine.Process(context.Background(), ev)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	h.engine.Wait()
	return matches
}

func (h *harness) lastLogs(t *testing.T, n int) []models.TriggerLogEntry {
	t.Helper()
	entries, err := h.logs.Recent(context.Background(), testGroup, n)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	return entries
}

func message(text string, sender User) ChatMessage {
	return ChatMessage{
		Chat:      Chat{ID: testGroup, Title: "Go Gophers"},
		MessageID: fmt.Sprintf("m-%d", time.Now().UnixNano()),
		Text:      text,
		Sender:    sender,
	}
}

var ann = User{ID: "42", Username: "ann_dev", FirstName: "Ann"}
