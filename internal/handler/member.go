package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
	"github.com/dukerupert/chorewheel/internal/tracker"
	"github.com/dukerupert/chorewheel/internal/websocket"
)

type MemberHandler struct {
	broadcaster
	store  *store.MemberStore
	logger *slog.Logger
}

func NewMemberHandler(s *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{broadcaster: broadcaster{hub}, store: s, logger: logger}
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
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
	if req.Color == "" {
		req.Color = defaultColor
	}
	if !hexColorRegexp.MatchString(req.Color) {
		writeError(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return
	}

	exists, err := h.store.NameExists(r.Context(), req.Name, 0)
	if err != nil {
		h.logger.Error("check member name", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check name")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "a member with that name already exists")
		return
	}

	member, err := h.store.Create(r.Context(), req.Name, req.Color)
	if err != nil {
		h.logger.Error("create member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create member")
		return
	}

	h.broadcast(websocket.NewMessage(tracker.EntityMember, "created", member.ID, ""))
	writeJSON(w, http.StatusCreated, member)
}

// Update applies a partial update. Setting is_active to false removes the
// member from every rotation without deleting history.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var upd model.MemberUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		upd.Name = &name

		exists, err := h.store.NameExists(r.Context(), name, id)
		if err != nil {
			h.logger.Error("check member name", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to check name")
			return
		}
		if exists {
			writeError(w, http.StatusConflict, "a member with that name already exists")
			return
		}
	}
	if upd.Color != nil && !hexColorRegexp.MatchString(*upd.Color) {
		writeError(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return
	}

	member, err := h.store.Update(r.Context(), id, upd)
	if err != nil {
		h.logger.Error("update member", "member_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update member")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	h.broadcast(websocket.NewMessage(tracker.EntityMember, "updated", member.ID, ""))
	writeJSON(w, http.StatusOK, member)
}
