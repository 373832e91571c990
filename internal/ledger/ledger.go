// Package ledger keeps completion records keyed by (chore, week) and defines
// the toggle transition shared by the local model and the persistent store.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/week"
)

// Key identifies one completion slot. Week is the canonical week key.
type Key struct {
	ChoreID int64
	Week    string
}

// KeyFor normalizes weekStart to its canonical week before building the key.
func KeyFor(choreID int64, weekStart time.Time) Key {
	return Key{ChoreID: choreID, Week: week.Key(weekStart)}
}

// State is the lifecycle state of a slot.
type State int

const (
	Absent State = iota
	Open
	Done
)

func (s State) String() string {
	switch s {
	case Open:
		return "present(completed=false)"
	case Done:
		return "present(completed=true)"
	default:
		return "absent"
	}
}

// Entry is the captured value of a slot: either absent or a record.
type Entry struct {
	Record  model.CompletionRecord
	Present bool
}

// State reports which lifecycle state the entry is in.
func (e Entry) State() State {
	switch {
	case !e.Present:
		return Absent
	case e.Record.Completed:
		return Done
	default:
		return Open
	}
}

// Next computes the record that results from toggling prev.
//
//	Absent -> Done: assigned and completer set to assignedMemberID, completed at now.
//	Done   -> Open: completer and completion time cleared, record kept.
//	Open   -> Done: completer set to assignedMemberID, completed at now.
//
// The assignee of an existing record is kept.
func Next(prev Entry, choreID int64, weekStart time.Time, assignedMemberID int64, now time.Time) model.CompletionRecord {
	now = now.UTC()
	switch prev.State() {
	case Done:
		rec := prev.Record
		rec.Completed = false
		rec.CompletedByMemberID = nil
		rec.CompletedAt = nil
		rec.UpdatedAt = now
		return rec
	case Open:
		rec := prev.Record
		by := assignedMemberID
		rec.Completed = true
		rec.CompletedByMemberID = &by
		rec.CompletedAt = &now
		rec.UpdatedAt = now
		return rec
	default:
		by := assignedMemberID
		return model.CompletionRecord{
			ChoreID:             choreID,
			WeekStart:           week.Key(weekStart),
			AssignedMemberID:    assignedMemberID,
			CompletedByMemberID: &by,
			Completed:           true,
			CompletedAt:         &now,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
	}
}

// Ledger is an in-memory completion map safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	records map[Key]model.CompletionRecord
}

func New() *Ledger {
	return &Ledger{records: make(map[Key]model.CompletionRecord)}
}

// Status reports whether the chore is completed for the week. A missing
// record means not completed.
func (l *Ledger) Status(choreID int64, weekStart time.Time) bool {
	rec, ok := l.Get(KeyFor(choreID, weekStart))
	return ok && rec.Completed
}

func (l *Ledger) Get(k Key) (model.CompletionRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[k]
	return rec, ok
}

// Snapshot captures the slot so it can be restored exactly.
func (l *Ledger) Snapshot(k Key) Entry {
	rec, ok := l.Get(k)
	return Entry{Record: rec, Present: ok}
}

// Restore puts a captured entry back, removing the slot if it was absent.
func (l *Ledger) Restore(k Key, e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !e.Present {
		delete(l.records, k)
		return
	}
	l.records[k] = e.Record
}

// Put stores rec under its own (chore, week) key.
func (l *Ledger) Put(rec model.CompletionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[Key{ChoreID: rec.ChoreID, Week: rec.WeekStart}] = rec
}

// Toggle applies Next to the slot and returns the new record.
func (l *Ledger) Toggle(choreID int64, weekStart time.Time, assignedMemberID int64, now time.Time) model.CompletionRecord {
	k := KeyFor(choreID, weekStart)
	l.mu.Lock()
	defer l.mu.Unlock()
	prev, ok := l.records[k]
	rec := Next(Entry{Record: prev, Present: ok}, choreID, weekStart, assignedMemberID, now)
	l.records[k] = rec
	return rec
}

// ReplaceWeeks drops every record for the given weeks and loads records in
// their place. Slots listed in keep retain their current value.
func (l *Ledger) ReplaceWeeks(weeks []time.Time, records []model.CompletionRecord, keep map[Key]bool) {
	wanted := make(map[string]bool, len(weeks))
	for _, w := range weeks {
		wanted[week.Key(w)] = true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for k := range l.records {
		if wanted[k.Week] && !keep[k] {
			delete(l.records, k)
		}
	}
	for _, rec := range records {
		k := Key{ChoreID: rec.ChoreID, Week: rec.WeekStart}
		if !wanted[k.Week] || keep[k] {
			continue
		}
		l.records[k] = rec
	}
}

// Records returns all records ordered by week then chore.
func (l *Ledger) Records() []model.CompletionRecord {
	l.mu.RLock()
	out := make([]model.CompletionRecord, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].WeekStart != out[j].WeekStart {
			return out[i].WeekStart < out[j].WeekStart
		}
		return out[i].ChoreID < out[j].ChoreID
	})
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
