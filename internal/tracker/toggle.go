package tracker

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/dukerupert/chorewheel/internal/ledger"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/week"
)

// Toggle flips the completion of choreID for the week containing weekStart.
//
// The new state is applied locally, marked Pending, before the store is
// called. On success the store's record replaces it. On failure the previous
// state is put back exactly, a notice is set and the error, wrapping
// ErrStoreUnavailable or ErrStoreRejected, is returned.
//
// Toggles on the same (chore, week) run one at a time; a second call waits
// for the first to finish. Toggling a chore nobody is assigned to that week
// does nothing and returns (nil, nil).
func (t *Tracker) Toggle(ctx context.Context, choreID int64, weekStart time.Time) (*model.CompletionRecord, error) {
	weekStart = week.Start(weekStart)
	key := ledger.KeyFor(choreID, weekStart)

	release, err := t.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	defer release()

	assigned := t.AssignedMember(choreID, weekStart)
	if assigned == nil {
		t.logger.Debug("toggle ignored, nobody assigned", "chore_id", choreID, "week", key.Week)
		return nil, nil
	}

	if !t.inWindow(weekStart) {
		if err := t.loadSlot(ctx, key, weekStart); err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	prev := t.ledger.Snapshot(key)
	optimistic := ledger.Next(prev, choreID, weekStart, assigned.ID, t.now())
	optimistic.Pending = true
	t.ledger.Restore(key, ledger.Entry{Record: optimistic, Present: true})
	t.mu.Unlock()
	t.changed()

	rec, err := t.store.UpsertToggle(ctx, choreID, weekStart, assigned.ID)
	if err != nil {
		t.mu.Lock()
		t.ledger.Restore(key, prev)
		t.mu.Unlock()
		if errors.Is(err, context.Canceled) {
			t.unconfirmed(key)
			return nil, err
		}
		return nil, t.fail(storeError("toggle completion", err))
	}

	confirmed := *rec
	confirmed.Pending = false

	t.mu.Lock()
	t.ledger.Restore(key, ledger.Entry{Record: confirmed, Present: true})
	t.writeSeq++
	t.touched[key] = t.writeSeq
	t.mu.Unlock()

	t.recovered()
	t.changed()
	t.logger.Info("completion toggled", "chore_id", choreID, "week", key.Week, "completed", confirmed.Completed)
	return &confirmed, nil
}

// inWindow reports whether weekStart is one of the loaded weeks.
func (t *Tracker) inWindow(weekStart time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, w := range t.window {
		if w.Equal(weekStart) {
			return true
		}
	}
	return false
}

// loadSlot reads the store's current record for a slot outside the window so
// a toggle flips the real state rather than an assumed absence.
func (t *Tracker) loadSlot(ctx context.Context, key ledger.Key, weekStart time.Time) error {
	recs, err := t.store.GetCompletions(ctx, weekStart)
	if err != nil {
		return t.fail(storeError("get completions for "+key.Week, err))
	}
	entry := ledger.Entry{}
	for _, rec := range recs {
		if rec.ChoreID == key.ChoreID {
			entry = ledger.Entry{Record: rec, Present: true}
			break
		}
	}
	t.mu.Lock()
	t.ledger.Restore(key, entry)
	t.mu.Unlock()
	return nil
}

// unconfirmed handles a toggle abandoned while the store call was in flight.
// The store may still have applied it, so the slot is flagged and the next
// poll is forced to reload.
func (t *Tracker) unconfirmed(key ledger.Key) {
	t.mu.Lock()
	t.notice = &Notice{
		Kind:    NoticeFailure,
		Message: "toggle of chore " + strconv.FormatInt(key.ChoreID, 10) + " for " + key.Week + " was cancelled before the store answered",
		At:      t.now(),
	}
	t.lastSync = time.Time{}
	t.mu.Unlock()
	t.logger.Warn("toggle cancelled in flight", "chore_id", key.ChoreID, "week", key.Week)
	t.changed()
}

// acquire waits until no other toggle holds key and then claims it.
func (t *Tracker) acquire(ctx context.Context, key ledger.Key) (func(), error) {
	for {
		t.inflightMu.Lock()
		busy, ok := t.inflight[key]
		if !ok {
			done := make(chan struct{})
			t.inflight[key] = done
			t.inflightMu.Unlock()
			return func() {
				t.inflightMu.Lock()
				delete(t.inflight, key)
				t.inflightMu.Unlock()
				close(done)
			}, nil
		}
		t.inflightMu.Unlock()

		select {
		case <-busy:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (t *Tracker) inflightKeys() map[ledger.Key]bool {
	t.inflightMu.Lock()
	defer t.inflightMu.Unlock()
	keys := make(map[ledger.Key]bool, len(t.inflight))
	for k := range t.inflight {
		keys[k] = true
	}
	return keys
}
