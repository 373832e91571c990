package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

const memberCols = `id, name, color, is_active, created_at, updated_at`

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	if err := scanner.Scan(&m.ID, &m.Name, &m.Color, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MemberStore) Create(ctx context.Context, name, color string) (*model.Member, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO members (name, color, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		name, color, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// List returns active members ordered by name.
func (s *MemberStore) List(ctx context.Context) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memberCols+` FROM members WHERE is_active = 1 ORDER BY name ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *MemberStore) GetByID(ctx context.Context, id int64) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// Update applies the non-nil fields of upd. It returns nil if the member does
// not exist.
func (s *MemberStore) Update(ctx context.Context, id int64, upd model.MemberUpdate) (*model.Member, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil || existing == nil {
		return existing, err
	}

	if upd.Name != nil {
		existing.Name = *upd.Name
	}
	if upd.Color != nil {
		existing.Color = *upd.Color
	}
	if upd.IsActive != nil {
		existing.IsActive = *upd.IsActive
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE members SET name = ?, color = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		existing.Name, existing.Color, existing.IsActive, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *MemberStore) NameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM members WHERE name = ? AND id != ? AND is_active = 1`,
		name, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check name exists: %w", err)
	}
	return count > 0, nil
}
