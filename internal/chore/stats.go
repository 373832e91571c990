package chore

import (
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/week"
)

// Stats summarizes one member's chores over the loaded completion records.
type Stats struct {
	TotalCompleted    int `json:"total_completed"`
	TotalMissed       int `json:"total_missed"`
	ThisWeekTotal     int `json:"this_week_total"`
	ThisWeekCompleted int `json:"this_week_completed"`
	ThisWeekMissed    int `json:"this_week_missed"`
}

// ComputeStats counts the member's assignments in currentWeek and their
// completed and missed records across completions. Missed only counts records
// from weeks before currentWeek; weeks without any record are not counted.
func ComputeStats(memberID int64, templates []model.ChoreTemplate, rosters map[int64][]model.RosterEntry, completions []model.CompletionRecord, currentWeek time.Time) Stats {
	var s Stats
	if memberID == 0 {
		return s
	}

	current := week.Start(currentWeek)
	currentKey := current.Format(week.KeyLayout)
	byID := make(map[int64]model.ChoreTemplate, len(templates))
	for _, t := range templates {
		byID[t.ID] = t
	}

	for _, t := range templates {
		id, ok := AssignedMemberID(t, rosters[t.ID], current)
		if !ok || id != memberID {
			continue
		}
		s.ThisWeekTotal++
		for _, c := range completions {
			if c.ChoreID == t.ID && c.WeekStart == currentKey && c.Completed {
				s.ThisWeekCompleted++
				break
			}
		}
	}
	s.ThisWeekMissed = s.ThisWeekTotal - s.ThisWeekCompleted

	for _, c := range completions {
		t, ok := byID[c.ChoreID]
		if !ok {
			continue
		}
		weekStart, err := week.ParseKey(c.WeekStart)
		if err != nil {
			continue
		}
		id, ok := AssignedMemberID(t, rosters[t.ID], weekStart)
		if !ok || id != memberID {
			continue
		}
		switch {
		case c.Completed:
			s.TotalCompleted++
		case weekStart.Before(current):
			s.TotalMissed++
		}
	}
	return s
}
