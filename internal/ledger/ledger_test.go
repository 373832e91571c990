package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/chorewheel/internal/model"
)

var (
	wk  = time.Date(2026, 2, 4, 18, 0, 0, 0, time.UTC) // Wednesday; week of Feb 2
	now = time.Date(2026, 2, 4, 19, 0, 0, 0, time.UTC)
)

func TestStatusAbsentIsFalse(t *testing.T) {
	l := New()
	assert.False(t, l.Status(1, wk))
	assert.Equal(t, 0, l.Len())
}

func TestToggleFromAbsent(t *testing.T) {
	l := New()
	rec := l.Toggle(1, wk, 42, now)

	assert.True(t, rec.Completed)
	assert.Equal(t, "2026-02-02", rec.WeekStart)
	assert.Equal(t, int64(42), rec.AssignedMemberID)
	require.NotNil(t, rec.CompletedByMemberID)
	assert.Equal(t, int64(42), *rec.CompletedByMemberID)
	require.NotNil(t, rec.CompletedAt)
	assert.True(t, rec.CompletedAt.Equal(now))
	assert.True(t, l.Status(1, wk))
}

func TestToggleTwiceKeepsRecord(t *testing.T) {
	l := New()
	l.Toggle(1, wk, 42, now)
	rec := l.Toggle(1, wk, 42, now.Add(time.Minute))

	assert.False(t, rec.Completed)
	assert.Nil(t, rec.CompletedByMemberID)
	assert.Nil(t, rec.CompletedAt)
	assert.Equal(t, 1, l.Len(), "record must be kept when un-completing")
	assert.False(t, l.Status(1, wk))
}

func TestToggleIsInvolutionOnCompleted(t *testing.T) {
	l := New()
	l.Toggle(1, wk, 42, now)

	for i := 0; i < 4; i++ {
		before := l.Status(1, wk)
		l.Toggle(1, wk, 42, now)
		l.Toggle(1, wk, 42, now)
		assert.Equal(t, before, l.Status(1, wk))
	}
}

func TestToggleReopenSetsCompleter(t *testing.T) {
	prev := Entry{Present: true, Record: model.CompletionRecord{
		ID: 9, ChoreID: 1, WeekStart: "2026-02-02", AssignedMemberID: 5, Completed: false,
	}}
	rec := Next(prev, 1, wk, 5, now)

	assert.Equal(t, int64(9), rec.ID)
	assert.True(t, rec.Completed)
	require.NotNil(t, rec.CompletedByMemberID)
	assert.Equal(t, int64(5), *rec.CompletedByMemberID)
	assert.NotNil(t, rec.CompletedAt)
}

func TestNextDoesNotMutatePrev(t *testing.T) {
	by := int64(5)
	at := now.Add(-time.Hour)
	prev := Entry{Present: true, Record: model.CompletionRecord{
		ChoreID: 1, WeekStart: "2026-02-02", Completed: true, CompletedByMemberID: &by, CompletedAt: &at,
	}}
	_ = Next(prev, 1, wk, 5, now)

	assert.True(t, prev.Record.Completed)
	assert.Equal(t, &by, prev.Record.CompletedByMemberID)
}

func TestSnapshotRestore(t *testing.T) {
	l := New()
	k := KeyFor(1, wk)

	absent := l.Snapshot(k)
	l.Toggle(1, wk, 42, now)
	l.Restore(k, absent)
	_, ok := l.Get(k)
	assert.False(t, ok)

	l.Toggle(1, wk, 42, now)
	done := l.Snapshot(k)
	l.Toggle(1, wk, 42, now.Add(time.Hour))
	l.Restore(k, done)
	got, ok := l.Get(k)
	require.True(t, ok)
	assert.Equal(t, done.Record, got)
}

func TestReplaceWeeks(t *testing.T) {
	l := New()
	w1 := time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)
	w2 := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	outside := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)

	l.Toggle(1, w1, 1, now)
	l.Toggle(2, w2, 1, now)
	l.Toggle(3, outside, 1, now)
	pending := l.Toggle(4, w2, 1, now)

	l.ReplaceWeeks([]time.Time{w1, w2}, []model.CompletionRecord{
		{ID: 10, ChoreID: 5, WeekStart: "2026-01-26", Completed: true},
		{ID: 11, ChoreID: 4, WeekStart: "2026-02-02", Completed: false},
		{ID: 12, ChoreID: 6, WeekStart: "2025-11-24", Completed: true},
	}, map[Key]bool{KeyFor(4, w2): true})

	_, ok := l.Get(KeyFor(1, w1))
	assert.False(t, ok, "stale record in window should be dropped")
	_, ok = l.Get(KeyFor(2, w2))
	assert.False(t, ok)
	assert.True(t, l.Status(3, outside), "records outside the window are untouched")
	assert.True(t, l.Status(5, w1))

	kept, ok := l.Get(KeyFor(4, w2))
	require.True(t, ok)
	assert.Equal(t, pending, kept, "kept slots are not overwritten")

	_, ok = l.Get(Key{ChoreID: 6, Week: "2025-11-24"})
	assert.False(t, ok, "records for weeks not being replaced are ignored")
}

func TestRecordsOrdered(t *testing.T) {
	l := New()
	l.Put(model.CompletionRecord{ChoreID: 2, WeekStart: "2026-02-02"})
	l.Put(model.CompletionRecord{ChoreID: 1, WeekStart: "2026-02-09"})
	l.Put(model.CompletionRecord{ChoreID: 1, WeekStart: "2026-02-02"})

	recs := l.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, Key{1, "2026-02-02"}, Key{recs[0].ChoreID, recs[0].WeekStart})
	assert.Equal(t, Key{2, "2026-02-02"}, Key{recs[1].ChoreID, recs[1].WeekStart})
	assert.Equal(t, Key{1, "2026-02-09"}, Key{recs[2].ChoreID, recs[2].WeekStart})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "absent", Entry{}.State().String())
	assert.Equal(t, Done, Entry{Present: true, Record: model.CompletionRecord{Completed: true}}.State())
	assert.Equal(t, Open, Entry{Present: true}.State())
}
