package tracker

import (
	"context"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
)

// Store is the chore store the tracker reads from and writes through. It is
// implemented by store.Local (SQLite) and client.Client (HTTP).
type Store interface {
	ListMembers(ctx context.Context) ([]model.Member, error)
	CreateMember(ctx context.Context, name, color string) (*model.Member, error)
	UpdateMember(ctx context.Context, id int64, upd model.MemberUpdate) (*model.Member, error)

	ListChoreTemplates(ctx context.Context) ([]model.ChoreTemplate, error)
	CreateTemplate(ctx context.Context, name string, weeksBetween int) (*model.ChoreTemplate, error)
	DeactivateTemplate(ctx context.Context, id int64) error

	ListRoster(ctx context.Context, choreID int64) ([]model.RosterEntry, error)
	ReplaceRoster(ctx context.Context, choreID int64, memberIDs []int64) error

	GetCompletions(ctx context.Context, weekStart time.Time) ([]model.CompletionRecord, error)
	UpsertToggle(ctx context.Context, choreID int64, weekStart time.Time, assignedMemberID int64) (*model.CompletionRecord, error)
}

// Entities named by change events.
const (
	EntityCompletion = "completion"
	EntityChore      = "chore"
	EntityRoster     = "roster"
	EntityMember     = "member"
)

// Event is a change notification from the store. Week is set for completion
// events; ID names the changed chore or member.
type Event struct {
	Entity string `json:"entity"`
	Action string `json:"action"`
	ID     int64  `json:"id,omitempty"`
	Week   string `json:"week,omitempty"`
}

// EventSource delivers store change events at least once and in no particular
// order. The channel is closed when the subscription ends.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}
