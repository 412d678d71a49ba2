// Package automation matches inbound group events against stored
// definitions and runs the resulting action chains.
package automation

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"groupbot-gateway/internal/condition"
	"groupbot-gateway/internal/models"
	"groupbot-gateway/internal/store"
)

var ErrEngineClosed = errors.New("automation engine is shut down")

// Definitions is the store surface the engine reads and counts through.
type Definitions interface {
	Snapshot(ctx context.Context, groupID string) (*store.Snapshot, error)
	Counters
}

type Engine struct {
	defs      Definitions
	matcher   *Matcher
	executor  *Executor
	cooldowns *Cooldowns
	clock     Clock

	groups sync.Map

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
		e.executor.clock = c
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.executor.httpClient = c }
}

func WithHTTPTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.executor.httpTimeout = d
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.executor.notifier = n }
}

// WithRand seeds random response selection.
// WithBotUsername ignores commands addressed to any other bot.
func WithBotUsername(username string) Option {
	return func(e *Engine) { e.matcher.BotUsername = username }
}

func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.executor.rand = r }
}

func NewEngine(defs Definitions, logs LogWriter, messenger Messenger, opts ...Option) *Engine {
	cooldowns := NewCooldowns()
	e := &Engine{
		defs:      defs,
		matcher:   NewMatcher(cooldowns),
		cooldowns: cooldowns,
		clock:     realClock{},
		executor: &Executor{
			messenger:   messenger,
			counters:    defs,
			logs:        logs,
			clock:       realClock{},
			httpClient:  &http.Client{},
			httpTimeout: 10 * time.Second,
			conditions:  condition.NewEvaluator(),
			rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) groupLock(groupID string) *sync.Mutex {
	l, _ := e.groups.LoadOrStore(groupID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Process matches ev against the group's current definitions and starts
// one action chain per match. It returns once the chains are dispatched;
// delays inside a chain never hold up later events. Events of one group
// are matched one at a time so cooldown claims stay consistent.
func (e *Engine) Process(ctx context.Context, ev Event) ([]Match, error) {
	groupID := ev.GroupID()
	mu := e.groupLock(groupID)
	mu.Lock()

	snap, err := e.defs.Snapshot(ctx, groupID)
	if err != nil {
		mu.Unlock()
		return nil, err
	}

	now := e.clock.Now()
	var dispatch []Match
	for _, m := range e.matcher.Match(ev, snap, now) {
		if m.Kind == models.KindResponder && !e.cooldowns.Claim(m.Responder.ID, m.Responder.CooldownSeconds, now) {
			continue
		}
		dispatch = append(dispatch, m)
	}
	mu.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		for _, m := range dispatch {
			if m.Kind == models.KindResponder {
				e.cooldowns.Release(m.Responder.ID, now)
			}
		}
		return nil, ErrEngineClosed
	}
	e.wg.Add(len(dispatch))
	e.mu.Unlock()

	// Chains outlive the request that triggered them.
	runCtx := context.WithoutCancel(ctx)
	for _, m := range dispatch {
		go func(m Match) {
			defer e.wg.Done()
			entry := e.executor.Execute(runCtx, m)
			if m.Kind == models.KindResponder && entry.ActionsExecuted == 0 {
				e.cooldowns.Release(m.Responder.ID, now)
			}
		}(m)
	}
	return dispatch, nil
}

// Wait blocks until every dispatched chain has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Shutdown stops accepting events and waits for in-flight chains, or for
// ctx to end.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
