package model

import "time"

type Member struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemberUpdate is a partial update; nil fields are left unchanged.
type MemberUpdate struct {
	Name     *string `json:"name,omitempty"`
	Color    *string `json:"color,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}
