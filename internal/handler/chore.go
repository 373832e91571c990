package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
	"github.com/dukerupert/chorewheel/internal/tracker"
	"github.com/dukerupert/chorewheel/internal/websocket"
)

type ChoreHandler struct {
	broadcaster
	store  *store.ChoreStore
	logger *slog.Logger
}

func NewChoreHandler(cs *store.ChoreStore, hub *websocket.Hub, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{broadcaster: broadcaster{hub}, store: cs, logger: logger}
}

func (h *ChoreHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.ListTemplates(r.Context())
	if err != nil {
		h.logger.Error("list chores", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list chores")
		return
	}
	if templates == nil {
		templates = []model.ChoreTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (h *ChoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string  `json:"name"`
		WeeksBetween int     `json:"weeks_between"`
		MemberIDs    []int64 `json:"member_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.WeeksBetween == 0 {
		req.WeeksBetween = 1
	}
	if req.WeeksBetween < 1 {
		writeError(w, http.StatusBadRequest, "weeks_between must be at least 1")
		return
	}
	if msg := checkRoster(req.MemberIDs); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	tmpl, err := h.store.CreateTemplate(r.Context(), req.Name, req.WeeksBetween)
	if err != nil {
		h.logger.Error("create chore", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create chore")
		return
	}

	if len(req.MemberIDs) > 0 {
		if err := h.store.ReplaceRoster(r.Context(), tmpl.ID, req.MemberIDs); err != nil {
			if derr := h.store.DeactivateTemplate(r.Context(), tmpl.ID); derr != nil {
				h.logger.Error("deactivate chore", "chore_id", tmpl.ID, "error", derr)
			}
			h.writeRosterError(w, tmpl.ID, err)
			return
		}
	}

	h.broadcast(websocket.NewMessage(tracker.EntityChore, "created", tmpl.ID, ""))
	writeJSON(w, http.StatusCreated, tmpl)
}

// Delete deactivates the chore. Its completions stay in the ledger.
func (h *ChoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.activeTemplate(w, r)
	if !ok {
		return
	}

	if err := h.store.DeactivateTemplate(r.Context(), id); err != nil {
		h.logger.Error("deactivate chore", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete chore")
		return
	}

	h.broadcast(websocket.NewMessage(tracker.EntityChore, "deleted", id, ""))
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChoreHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	id, ok := h.activeTemplate(w, r)
	if !ok {
		return
	}

	roster, err := h.store.ListRoster(r.Context(), id)
	if err != nil {
		h.logger.Error("list roster", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list roster")
		return
	}
	if roster == nil {
		roster = []model.RosterEntry{}
	}
	writeJSON(w, http.StatusOK, roster)
}

// PutRoster replaces the rotation with member_ids in order.
func (h *ChoreHandler) PutRoster(w http.ResponseWriter, r *http.Request) {
	id, ok := h.activeTemplate(w, r)
	if !ok {
		return
	}

	var req struct {
		MemberIDs []int64 `json:"member_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := checkRoster(req.MemberIDs); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.ReplaceRoster(r.Context(), id, req.MemberIDs); err != nil {
		h.writeRosterError(w, id, err)
		return
	}

	roster, err := h.store.ListRoster(r.Context(), id)
	if err != nil {
		h.logger.Error("list roster", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list roster")
		return
	}
	if roster == nil {
		roster = []model.RosterEntry{}
	}

	h.broadcast(websocket.NewMessage(tracker.EntityRoster, "updated", id, ""))
	writeJSON(w, http.StatusOK, roster)
}

// activeTemplate parses the id path value and checks the chore exists and
// is active, writing the error response when it does not.
func (h *ChoreHandler) activeTemplate(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	tmpl, err := h.store.GetTemplate(r.Context(), id)
	if err != nil {
		h.logger.Error("get chore", "chore_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return 0, false
	}
	if tmpl == nil || !tmpl.IsActive {
		writeError(w, http.StatusNotFound, "chore not found")
		return 0, false
	}
	return id, true
}

func (h *ChoreHandler) writeRosterError(w http.ResponseWriter, choreID int64, err error) {
	if errors.Is(err, store.ErrUnknownMember) {
		writeError(w, http.StatusBadRequest, "roster names an unknown member")
		return
	}
	h.logger.Error("replace roster", "chore_id", choreID, "error", err)
	writeError(w, http.StatusInternalServerError, "failed to update roster")
}

func checkRoster(memberIDs []int64) string {
	seen := make(map[int64]bool, len(memberIDs))
	for _, id := range memberIDs {
		if seen[id] {
			return "a member can appear in a rotation only once"
		}
		seen[id] = true
	}
	return ""
}
