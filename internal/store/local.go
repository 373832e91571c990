package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
)

// Local serves the chore store contract straight from SQLite. It is what the
// tracker uses when no remote server is configured.
type Local struct {
	Members *MemberStore
	Chores  *ChoreStore
}

func NewLocal(db *sql.DB) *Local {
	return &Local{
		Members: NewMemberStore(db),
		Chores:  NewChoreStore(db),
	}
}

func (l *Local) ListMembers(ctx context.Context) ([]model.Member, error) {
	return l.Members.List(ctx)
}

func (l *Local) CreateMember(ctx context.Context, name, color string) (*model.Member, error) {
	return l.Members.Create(ctx, name, color)
}

func (l *Local) UpdateMember(ctx context.Context, id int64, upd model.MemberUpdate) (*model.Member, error) {
	return l.Members.Update(ctx, id, upd)
}

func (l *Local) ListChoreTemplates(ctx context.Context) ([]model.ChoreTemplate, error) {
	return l.Chores.ListTemplates(ctx)
}

func (l *Local) CreateTemplate(ctx context.Context, name string, weeksBetween int) (*model.ChoreTemplate, error) {
	return l.Chores.CreateTemplate(ctx, name, weeksBetween)
}

func (l *Local) DeactivateTemplate(ctx context.Context, id int64) error {
	return l.Chores.DeactivateTemplate(ctx, id)
}

func (l *Local) ListRoster(ctx context.Context, choreID int64) ([]model.RosterEntry, error) {
	return l.Chores.ListRoster(ctx, choreID)
}

func (l *Local) ReplaceRoster(ctx context.Context, choreID int64, memberIDs []int64) error {
	return l.Chores.ReplaceRoster(ctx, choreID, memberIDs)
}

func (l *Local) GetCompletions(ctx context.Context, weekStart time.Time) ([]model.CompletionRecord, error) {
	return l.Chores.ListCompletions(ctx, weekStart)
}

func (l *Local) UpsertToggle(ctx context.Context, choreID int64, weekStart time.Time, assignedMemberID int64) (*model.CompletionRecord, error) {
	return l.Chores.ToggleCompletion(ctx, choreID, weekStart, assignedMemberID)
}
