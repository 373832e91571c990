package handler

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"

	"github.com/dukerupert/chorewheel/internal/websocket"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const defaultColor = "#3B82F6"

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// broadcaster sends change messages to feed clients when a hub is set.
type broadcaster struct {
	hub *websocket.Hub
}

func (b broadcaster) broadcast(msg websocket.Message) {
	if b.hub != nil {
		b.hub.Broadcast(msg)
	}
}
