package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/store"
	"github.com/dukerupert/chorewheel/internal/tracker"
	"github.com/dukerupert/chorewheel/internal/websocket"
	"github.com/dukerupert/chorewheel/internal/week"
)

const (
	idempotencyHeader = "X-Idempotency-Key"
	idempotencyTTL    = 10 * time.Minute
)

type CompletionHandler struct {
	broadcaster
	chores  *store.ChoreStore
	members *store.MemberStore
	logger  *slog.Logger

	// toggleMu serializes toggles so the assignee check and the write see
	// the same roster.
	toggleMu sync.Mutex
	replays  map[string]replay
}

type replay struct {
	record  model.CompletionRecord
	expires time.Time
}

func NewCompletionHandler(cs *store.ChoreStore, ms *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{
		broadcaster: broadcaster{hub},
		chores:      cs,
		members:     ms,
		logger:      logger,
		replays:     make(map[string]replay),
	}
}

// List returns the completion records of the week named by ?week=, or of
// every week in ?from= through ?to=.
func (h *CompletionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		records []model.CompletionRecord
		err     error
	)
	switch {
	case q.Get("week") != "":
		weekStart, perr := week.ParseKey(q.Get("week"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "week must be YYYY-MM-DD")
			return
		}
		records, err = h.chores.ListCompletions(r.Context(), weekStart)
	case q.Get("from") != "" && q.Get("to") != "":
		from, ferr := week.ParseKey(q.Get("from"))
		to, terr := week.ParseKey(q.Get("to"))
		if ferr != nil || terr != nil {
			writeError(w, http.StatusBadRequest, "from and to must be YYYY-MM-DD")
			return
		}
		if to.Before(from) {
			writeError(w, http.StatusBadRequest, "to must not be before from")
			return
		}
		records, err = h.chores.ListCompletionsBetween(r.Context(), from, to)
	default:
		writeError(w, http.StatusBadRequest, "week or from and to are required")
		return
	}
	if err != nil {
		h.logger.Error("list completions", "query", r.URL.RawQuery, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list completions")
		return
	}
	if records == nil {
		records = []model.CompletionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Toggle flips a completion. The assignee is recomputed from the roster; a
// chore that is not due, has nobody assigned, or whose assignee differs from
// assigned_member_id is refused with 409 and nothing is written. A request
// repeating a recent X-Idempotency-Key gets the original answer.
func (h *CompletionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChoreID          int64  `json:"chore_id"`
		Week             string `json:"week"`
		AssignedMemberID int64  `json:"assigned_member_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	weekStart, err := week.ParseKey(req.Week)
	if err != nil {
		writeError(w, http.StatusBadRequest, "week must be YYYY-MM-DD")
		return
	}

	h.toggleMu.Lock()
	defer h.toggleMu.Unlock()

	key := r.Header.Get(idempotencyHeader)
	if rec, ok := h.replayed(key); ok {
		writeJSON(w, http.StatusOK, rec)
		return
	}

	ctx := r.Context()
	tmpl, err := h.chores.GetTemplate(ctx, req.ChoreID)
	if err != nil {
		h.logger.Error("get chore", "chore_id", req.ChoreID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get chore")
		return
	}
	if tmpl == nil || !tmpl.IsActive {
		writeError(w, http.StatusNotFound, "chore not found")
		return
	}

	roster, err := h.chores.ListRoster(ctx, tmpl.ID)
	if err != nil {
		h.logger.Error("list roster", "chore_id", tmpl.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list roster")
		return
	}
	members, err := h.members.List(ctx)
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}

	assigned := chore.AssignedMember(*tmpl, roster, weekStart, members)
	if assigned == nil {
		writeError(w, http.StatusConflict, "chore has no assignee that week")
		return
	}
	if req.AssignedMemberID != 0 && req.AssignedMemberID != assigned.ID {
		writeError(w, http.StatusConflict, "assigned member does not match the rotation")
		return
	}

	rec, err := h.chores.ToggleCompletion(ctx, tmpl.ID, weekStart, assigned.ID)
	if err != nil {
		h.logger.Error("toggle completion", "chore_id", tmpl.ID, "week", req.Week, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to toggle completion")
		return
	}
	h.remember(key, *rec)

	h.broadcast(websocket.NewMessage(tracker.EntityCompletion, "toggled", tmpl.ID, rec.WeekStart))
	writeJSON(w, http.StatusOK, rec)
}

// replayed and remember must be called with toggleMu held.
func (h *CompletionHandler) replayed(key string) (model.CompletionRecord, bool) {
	if key == "" {
		return model.CompletionRecord{}, false
	}
	now := time.Now()
	for k, r := range h.replays {
		if now.After(r.expires) {
			delete(h.replays, k)
		}
	}
	r, ok := h.replays[key]
	return r.record, ok
}

func (h *CompletionHandler) remember(key string, rec model.CompletionRecord) {
	if key == "" {
		return
	}
	h.replays[key] = replay{record: rec, expires: time.Now().Add(idempotencyTTL)}
}
