package chore

import (
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/week"
)

type Status string

const (
	StatusNotDue    Status = "not_due"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusMissed    Status = "missed"
)

// Cell is one (chore, week) slot of the board.
type Cell struct {
	Week      time.Time
	Assigned  *model.Member
	Completed bool
	Pending   bool
	Status    Status
}

// ComputeStatus classifies a (chore, week) slot. A slot without an assignee is
// not due. An assigned slot from a week before today's week that was never
// completed counts as missed.
func ComputeStatus(assigned *model.Member, completed bool, weekStart, today time.Time) Status {
	if assigned == nil {
		return StatusNotDue
	}
	if completed {
		return StatusCompleted
	}
	if week.Start(weekStart).Before(week.Start(today)) {
		return StatusMissed
	}
	return StatusPending
}
