package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/chorewheel/internal/ledger"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/week"
)

// ErrUnknownMember is returned when a roster names a member that does not exist.
var ErrUnknownMember = errors.New("unknown member")

type ChoreStore struct {
	db *sql.DB
}

func NewChoreStore(db *sql.DB) *ChoreStore {
	return &ChoreStore{db: db}
}

// --- Template methods ---

const templateCols = `id, name, weeks_between, is_active, created_at, updated_at`

func scanTemplate(scanner interface{ Scan(...any) error }) (*model.ChoreTemplate, error) {
	var t model.ChoreTemplate
	if err := scanner.Scan(&t.ID, &t.Name, &t.WeeksBetween, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *ChoreStore) CreateTemplate(ctx context.Context, name string, weeksBetween int) (*model.ChoreTemplate, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_templates (name, weeks_between, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, weeksBetween, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chore template: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetTemplate(ctx, id)
}

func (s *ChoreStore) GetTemplate(ctx context.Context, id int64) (*model.ChoreTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateCols+` FROM chore_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chore template: %w", err)
	}
	return t, nil
}

// ListTemplates returns active templates ordered by name.
func (s *ChoreStore) ListTemplates(ctx context.Context) ([]model.ChoreTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+templateCols+` FROM chore_templates WHERE is_active = 1 ORDER BY name ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list chore templates: %w", err)
	}
	defer rows.Close()

	var templates []model.ChoreTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chore template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// DeactivateTemplate soft-deletes a template so its completions stay valid.
func (s *ChoreStore) DeactivateTemplate(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chore_templates SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("deactivate chore template: %w", err)
	}
	return nil
}

// --- Roster methods ---

func (s *ChoreStore) ListRoster(ctx context.Context, choreID int64) ([]model.RosterEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chore_template_id, member_id, rotation_order FROM chore_assignments
		 WHERE chore_template_id = ? ORDER BY rotation_order ASC`,
		choreID,
	)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	var roster []model.RosterEntry
	for rows.Next() {
		var e model.RosterEntry
		if err := rows.Scan(&e.ChoreID, &e.MemberID, &e.RotationIndex); err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		roster = append(roster, e)
	}
	return roster, rows.Err()
}

// ReplaceRoster atomically supersedes the chore's roster with memberIDs in
// rotation order, numbered 1..N.
func (s *ChoreStore) ReplaceRoster(ctx context.Context, choreID int64, memberIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chore_assignments WHERE chore_template_id = ?`, choreID); err != nil {
		return fmt.Errorf("clear roster: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chore_assignments (chore_template_id, member_id, rotation_order, created_at) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, memberID := range memberIDs {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE id = ?`, memberID).Scan(&exists); err != nil {
			return fmt.Errorf("check member %d: %w", memberID, err)
		}
		if exists == 0 {
			return fmt.Errorf("roster member %d: %w", memberID, ErrUnknownMember)
		}
		if _, err := stmt.ExecContext(ctx, choreID, memberID, i+1, now); err != nil {
			return fmt.Errorf("insert roster entry for member %d: %w", memberID, err)
		}
	}

	return tx.Commit()
}

// --- Completion methods ---

const completionCols = `id, chore_template_id, week_start, assigned_member_id, completed_by_member_id, completed, completed_at, created_at, updated_at`

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.CompletionRecord, error) {
	var c model.CompletionRecord
	var completedBy sql.NullInt64
	var completedAt sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.ChoreID, &c.WeekStart, &c.AssignedMemberID, &completedBy,
		&c.Completed, &completedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if completedBy.Valid {
		c.CompletedByMemberID = &completedBy.Int64
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		c.CompletedAt = &t
	}
	return &c, nil
}

// ListCompletions returns the completion records of one week.
func (s *ChoreStore) ListCompletions(ctx context.Context, weekStart time.Time) ([]model.CompletionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+completionCols+` FROM chore_completions WHERE week_start = ? ORDER BY chore_template_id ASC`,
		week.Key(weekStart),
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []model.CompletionRecord
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}

func (s *ChoreStore) GetCompletion(ctx context.Context, choreID int64, weekStart time.Time) (*model.CompletionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+completionCols+` FROM chore_completions WHERE chore_template_id = ? AND week_start = ?`,
		choreID, week.Key(weekStart),
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// ToggleCompletion flips the completion of (choreID, week) inside one
// transaction, creating the record on first completion. The transition is
// ledger.Next, the same one clients apply optimistically.
func (s *ChoreStore) ToggleCompletion(ctx context.Context, choreID int64, weekStart time.Time, assignedMemberID int64) (*model.CompletionRecord, error) {
	key := week.Key(weekStart)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var prev ledger.Entry
	row := tx.QueryRowContext(ctx,
		`SELECT `+completionCols+` FROM chore_completions WHERE chore_template_id = ? AND week_start = ?`,
		choreID, key,
	)
	existing, err := scanCompletion(row)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("get completion: %w", err)
	default:
		prev = ledger.Entry{Record: *existing, Present: true}
	}

	next := ledger.Next(prev, choreID, weekStart, assignedMemberID, time.Now())

	var completedBy sql.NullInt64
	if next.CompletedByMemberID != nil {
		completedBy = sql.NullInt64{Int64: *next.CompletedByMemberID, Valid: true}
	}
	var completedAt sql.NullTime
	if next.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *next.CompletedAt, Valid: true}
	}

	id := next.ID
	if prev.Present {
		_, err = tx.ExecContext(ctx,
			`UPDATE chore_completions SET completed = ?, completed_by_member_id = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
			next.Completed, completedBy, completedAt, next.UpdatedAt, next.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("update completion: %w", err)
		}
	} else {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO chore_completions (chore_template_id, week_start, assigned_member_id, completed_by_member_id, completed, completed_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			choreID, key, next.AssignedMemberID, completedBy, next.Completed, completedAt, next.CreatedAt, next.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("insert completion: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
	}

	row = tx.QueryRowContext(ctx, `SELECT `+completionCols+` FROM chore_completions WHERE id = ?`, id)
	rec, err := scanCompletion(row)
	if err != nil {
		return nil, fmt.Errorf("reload completion: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// ListCompletionsBetween returns records for weeks in [from, to].
func (s *ChoreStore) ListCompletionsBetween(ctx context.Context, from, to time.Time) ([]model.CompletionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+completionCols+` FROM chore_completions WHERE week_start >= ? AND week_start <= ?
		 ORDER BY week_start ASC, chore_template_id ASC`,
		week.Key(from), week.Key(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list completions between: %w", err)
	}
	defer rows.Close()

	var completions []model.CompletionRecord
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}
