package chore

import (
	"testing"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
)

func TestComputeStatusNotDue(t *testing.T) {
	today := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	if got := ComputeStatus(nil, false, today, today); got != StatusNotDue {
		t.Errorf("status = %q, want %q", got, StatusNotDue)
	}
}

func TestComputeStatusPendingThisWeek(t *testing.T) {
	today := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	w := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	if got := ComputeStatus(&alice, false, w, today); got != StatusPending {
		t.Errorf("status = %q, want %q", got, StatusPending)
	}
}

func TestComputeStatusPendingFutureWeek(t *testing.T) {
	today := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	w := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	if got := ComputeStatus(&alice, false, w, today); got != StatusPending {
		t.Errorf("status = %q, want %q", got, StatusPending)
	}
}

func TestComputeStatusMissed(t *testing.T) {
	today := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	w := time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)
	if got := ComputeStatus(&alice, false, w, today); got != StatusMissed {
		t.Errorf("status = %q, want %q", got, StatusMissed)
	}
}

func TestComputeStatusCompletedPastWeek(t *testing.T) {
	today := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	w := time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC)
	if got := ComputeStatus(&alice, true, w, today); got != StatusCompleted {
		t.Errorf("status = %q, want %q", got, StatusCompleted)
	}
}

func TestComputeStats(t *testing.T) {
	// Weekly chore rotating Alice/Bob; week 2926 (2026-02-02) is even, so Alice.
	dishes := model.ChoreTemplate{ID: 1, Name: "Dishes", WeeksBetween: 1, IsActive: true}
	rosters := map[int64][]model.RosterEntry{1: rosterOf(1, alice.ID, bob.ID)}
	current := time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)

	completions := []model.CompletionRecord{
		{ChoreID: 1, WeekStart: "2026-02-02", AssignedMemberID: alice.ID, Completed: true},
		{ChoreID: 1, WeekStart: "2026-01-26", AssignedMemberID: bob.ID, Completed: true},
		{ChoreID: 1, WeekStart: "2026-01-19", AssignedMemberID: alice.ID, Completed: false},
		{ChoreID: 1, WeekStart: "2026-01-12", AssignedMemberID: bob.ID, Completed: false},
		{ChoreID: 99, WeekStart: "2026-01-19", Completed: true},
	}

	s := ComputeStats(alice.ID, []model.ChoreTemplate{dishes}, rosters, completions, current)
	if s.ThisWeekTotal != 1 || s.ThisWeekCompleted != 1 || s.ThisWeekMissed != 0 {
		t.Errorf("this week = %+v, want 1 total 1 completed 0 missed", s)
	}
	if s.TotalCompleted != 1 {
		t.Errorf("total completed = %d, want 1", s.TotalCompleted)
	}
	if s.TotalMissed != 1 {
		t.Errorf("total missed = %d, want 1", s.TotalMissed)
	}

	b := ComputeStats(bob.ID, []model.ChoreTemplate{dishes}, rosters, completions, current)
	if b.ThisWeekTotal != 0 {
		t.Errorf("bob this week total = %d, want 0", b.ThisWeekTotal)
	}
	if b.TotalCompleted != 1 || b.TotalMissed != 1 {
		t.Errorf("bob totals = %+v, want 1 completed 1 missed", b)
	}
}

func TestComputeStatsNoMember(t *testing.T) {
	s := ComputeStats(0, nil, nil, nil, time.Now())
	if s != (Stats{}) {
		t.Errorf("stats = %+v, want zero", s)
	}
}
