package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/week"
)

func (c *Client) ListMembers(ctx context.Context) ([]model.Member, error) {
	var members []model.Member
	if err := c.get(ctx, "/api/members", &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) CreateMember(ctx context.Context, name, color string) (*model.Member, error) {
	body := map[string]string{"name": name, "color": color}
	var m model.Member
	if err := c.do(ctx, http.MethodPost, "/api/members", nil, body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMember returns nil when the member does not exist.
func (c *Client) UpdateMember(ctx context.Context, id int64, upd model.MemberUpdate) (*model.Member, error) {
	var m model.Member
	err := c.doRetry(ctx, http.MethodPatch, fmt.Sprintf("/api/members/%d", id), nil, upd, &m)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) ListChoreTemplates(ctx context.Context) ([]model.ChoreTemplate, error) {
	var templates []model.ChoreTemplate
	if err := c.get(ctx, "/api/chores", &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (c *Client) CreateTemplate(ctx context.Context, name string, weeksBetween int) (*model.ChoreTemplate, error) {
	body := map[string]any{"name": name, "weeks_between": weeksBetween}
	var t model.ChoreTemplate
	if err := c.do(ctx, http.MethodPost, "/api/chores", nil, body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) DeactivateTemplate(ctx context.Context, id int64) error {
	return c.doRetry(ctx, http.MethodDelete, fmt.Sprintf("/api/chores/%d", id), nil, nil, nil)
}

func (c *Client) ListRoster(ctx context.Context, choreID int64) ([]model.RosterEntry, error) {
	var roster []model.RosterEntry
	if err := c.get(ctx, fmt.Sprintf("/api/chores/%d/roster", choreID), &roster); err != nil {
		return nil, err
	}
	return roster, nil
}

func (c *Client) ReplaceRoster(ctx context.Context, choreID int64, memberIDs []int64) error {
	if memberIDs == nil {
		memberIDs = []int64{}
	}
	body := map[string][]int64{"member_ids": memberIDs}
	return c.doRetry(ctx, http.MethodPut, fmt.Sprintf("/api/chores/%d/roster", choreID), nil, body, nil)
}

func (c *Client) GetCompletions(ctx context.Context, weekStart time.Time) ([]model.CompletionRecord, error) {
	var records []model.CompletionRecord
	path := "/api/completions?week=" + url.QueryEscape(week.Key(weekStart))
	if err := c.get(ctx, path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// UpsertToggle asks the server to toggle the completion. Retries reuse one
// idempotency key so the server applies the toggle once.
func (c *Client) UpsertToggle(ctx context.Context, choreID int64, weekStart time.Time, assignedMemberID int64) (*model.CompletionRecord, error) {
	body := map[string]any{
		"chore_id":           choreID,
		"week":               week.Key(weekStart),
		"assigned_member_id": assignedMemberID,
	}
	var rec model.CompletionRecord
	if err := c.doRetry(ctx, http.MethodPost, "/api/completions/toggle", newIdempotencyKey(), body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
