package chore

import (
	"fmt"
	"sort"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/week"
)

// Epoch is the Monday that anchors every rotation. Changing it shifts which
// calendar weeks are due for every chore, so it must never change.
var Epoch = time.Date(1970, 1, 5, 0, 0, 0, 0, time.UTC)

const secondsPerDay = 24 * 60 * 60

// WeeksSinceEpoch returns the absolute index of the week containing weekStart.
// It counts in Unix seconds rather than time.Duration, which saturates a few
// centuries out.
func WeeksSinceEpoch(weekStart time.Time) int64 {
	days := (week.Start(weekStart).Unix() - Epoch.Unix()) / secondsPerDay
	return floorDiv(days, 7)
}

// IsDueInWeek reports whether a chore recurring every weeksBetween weeks is due
// in the given week. Due-ness depends only on the absolute week index, so all
// chores with the same period are in phase regardless of creation date.
func IsDueInWeek(weeksBetween int, weekStart time.Time) bool {
	if weeksBetween < 1 {
		return false
	}
	return floorMod(WeeksSinceEpoch(weekStart), int64(weeksBetween)) == 0
}

// Occurrence numbers the due occurrences of a chore: consecutive due weeks
// have consecutive occurrence numbers.
func Occurrence(weeksBetween int, weekStart time.Time) int64 {
	if weeksBetween < 1 {
		return 0
	}
	return floorDiv(WeeksSinceEpoch(weekStart), int64(weeksBetween))
}

// SortRoster returns a copy of roster ordered by rotation index.
func SortRoster(roster []model.RosterEntry) []model.RosterEntry {
	sorted := make([]model.RosterEntry, len(roster))
	copy(sorted, roster)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RotationIndex < sorted[j].RotationIndex
	})
	return sorted
}

// AssignedMemberID returns the roster member responsible for the chore in the
// given week, or false when the chore is not due or the roster is empty.
func AssignedMemberID(t model.ChoreTemplate, roster []model.RosterEntry, weekStart time.Time) (int64, bool) {
	if !IsDueInWeek(t.WeeksBetween, weekStart) || len(roster) == 0 {
		return 0, false
	}
	sorted := SortRoster(roster)
	idx := floorMod(Occurrence(t.WeeksBetween, weekStart), int64(len(sorted)))
	return sorted[idx].MemberID, true
}

// AssignedMember resolves the assignee against the live member list. A roster
// entry pointing at a member that is not in members yields nil.
func AssignedMember(t model.ChoreTemplate, roster []model.RosterEntry, weekStart time.Time, members []model.Member) *model.Member {
	id, ok := AssignedMemberID(t, roster, weekStart)
	if !ok {
		return nil
	}
	for i := range members {
		if members[i].ID == id {
			m := members[i]
			return &m
		}
	}
	return nil
}

// FormatFrequency labels a recurrence period for display.
func FormatFrequency(weeksBetween int) string {
	switch weeksBetween {
	case 1:
		return "Weekly"
	case 2:
		return "Bi-weekly"
	case 4:
		return "Monthly"
	default:
		return fmt.Sprintf("Every %d weeks", weeksBetween)
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}
