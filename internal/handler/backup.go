package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorewheel/internal/backup"
	"github.com/dukerupert/chorewheel/internal/model"
)

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, logger: logger}
}

// List returns the manager status and the most recent backups.
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	backups, err := h.manager.List(r.Context(), 20)
	if err != nil {
		h.logger.Error("list backups", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []model.Backup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.manager.Status(),
		"backups": backups,
	})
}

// Run takes a backup now.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	b, err := h.manager.RunNow(r.Context())
	if errors.Is(err, backup.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}
	if err != nil {
		h.logger.Error("run backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}
