package model

import "time"

type ChoreTemplate struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	WeeksBetween int       `json:"weeks_between"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RosterEntry places a member in a chore's rotation. RotationIndex starts at 1.
type RosterEntry struct {
	ChoreID       int64 `json:"chore_id"`
	MemberID      int64 `json:"member_id"`
	RotationIndex int   `json:"rotation_index"`
}

// CompletionRecord is the completion state of one chore for one week.
// WeekStart is the canonical YYYY-MM-DD key of the week's Monday.
type CompletionRecord struct {
	ID                  int64      `json:"id"`
	ChoreID             int64      `json:"chore_id"`
	WeekStart           string     `json:"week_start"`
	AssignedMemberID    int64      `json:"assigned_member_id"`
	CompletedByMemberID *int64     `json:"completed_by_member_id"`
	Completed           bool       `json:"completed"`
	CompletedAt         *time.Time `json:"completed_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	// Pending marks a local optimistic value the store has not confirmed yet.
	Pending bool `json:"-"`
}
