package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/dukerupert/chorewheel/internal/week"
)

// DefaultPollInterval is how long the event feed may stay silent before the
// poll reloads completions.
const DefaultPollInterval = 30 * time.Second

// Syncer keeps a Tracker current. It applies store change events as they
// arrive and falls back to polling when the feed is missing or quiet.
type Syncer struct {
	tracker  *Tracker
	source   EventSource
	interval time.Duration
	logger   *slog.Logger

	group singleflight.Group
	cron  *cron.Cron

	mu         sync.Mutex
	subscribed bool
	runCtx     context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewSyncer returns a syncer for t. source may be nil, in which case only the
// poll runs.
func NewSyncer(t *Tracker, source EventSource, interval time.Duration, logger *slog.Logger) *Syncer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Syncer{
		tracker:  t,
		source:   source,
		interval: interval,
		logger:   logger.With("component", "syncer"),
	}
}

// Start subscribes to the event source and schedules the poll. A failed
// subscription is not fatal; the poll retries it.
func (s *Syncer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.Poll(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("schedule poll: %w", err)
	}

	s.mu.Lock()
	s.runCtx = ctx
	s.cancel = cancel
	s.cron = c
	s.mu.Unlock()

	if err := s.subscribe(ctx); err != nil {
		s.logger.Warn("subscribe failed, polling only", "error", err)
	}
	c.Start()
	return nil
}

// Stop cancels the subscription and waits for running jobs to finish.
func (s *Syncer) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	c := s.cron
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}
	s.wg.Wait()
}

// Subscribed reports whether an event subscription is currently open.
func (s *Syncer) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed
}

func (s *Syncer) setSubscribed(v bool) {
	s.mu.Lock()
	s.subscribed = v
	s.mu.Unlock()
}

// subscriptionContext returns the context of the running syncer so a
// subscription opened from Poll ends with Stop.
func (s *Syncer) subscriptionContext(fallback context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx != nil {
		return s.runCtx
	}
	return fallback
}

func (s *Syncer) subscribe(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	events, err := s.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.setSubscribed(true)
	s.logger.Info("subscribed to change events")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for ev := range events {
			s.Dispatch(ctx, ev)
		}
		s.setSubscribed(false)
		if ctx.Err() == nil {
			s.logger.Warn("change event feed closed")
		}
	}()
	return nil
}

// Dispatch refreshes the part of the tracker named by ev. Concurrent
// refreshes of the same part share one store call.
func (s *Syncer) Dispatch(ctx context.Context, ev Event) {
	var key string
	var refresh func() error

	switch ev.Entity {
	case EntityCompletion:
		if ev.Week != "" && !s.inWindow(ev.Week) {
			return
		}
		key, refresh = "completions", func() error { return s.tracker.RefreshCompletions(ctx) }
	case EntityChore:
		key, refresh = "chores", func() error { return s.tracker.RefreshChores(ctx) }
	case EntityRoster:
		key = "roster:" + strconv.FormatInt(ev.ID, 10)
		refresh = func() error { return s.tracker.RefreshRoster(ctx, ev.ID) }
	case EntityMember:
		key, refresh = "members", func() error { return s.tracker.RefreshMembers(ctx) }
	default:
		s.logger.Debug("ignoring event", "entity", ev.Entity, "action", ev.Action)
		return
	}

	_, err, shared := s.group.Do(key, func() (any, error) {
		return nil, refresh()
	})
	if err != nil {
		s.logger.Warn("refresh after event failed", "entity", ev.Entity, "error", err)
		return
	}
	s.logger.Debug("applied event", "entity", ev.Entity, "action", ev.Action, "id", ev.ID, "shared", shared)
}

func (s *Syncer) inWindow(key string) bool {
	w, err := week.ParseKey(key)
	if err != nil {
		return true
	}
	for _, ws := range s.tracker.Window() {
		if ws.Equal(w) {
			return true
		}
	}
	return false
}

// Poll reopens a lost subscription and reloads completions when nothing has
// been synced within the poll interval. Failures are logged and otherwise
// ignored.
func (s *Syncer) Poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.source != nil && !s.Subscribed() {
		if err := s.subscribe(s.subscriptionContext(ctx)); err != nil {
			s.logger.Debug("resubscribe failed", "error", err)
		}
	}

	last := s.tracker.LastSync()
	if !last.IsZero() && s.tracker.now().Sub(last) < s.interval {
		return
	}

	_, err, _ := s.group.Do("completions", func() (any, error) {
		return nil, s.tracker.RefreshCompletions(ctx)
	})
	if err != nil {
		s.logger.Warn("poll failed", "error", err)
	}
}
