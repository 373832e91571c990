package server

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chorewheel/internal/backup"
	"github.com/dukerupert/chorewheel/internal/handler"
	"github.com/dukerupert/chorewheel/internal/middleware"
	"github.com/dukerupert/chorewheel/internal/store"
	ws "github.com/dukerupert/chorewheel/internal/websocket"
)

const (
	writeLimit      = 120
	writeLimitEvery = time.Minute
	shutdownTimeout = 5 * time.Second
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	memberH       *handler.MemberHandler
	choreH        *handler.ChoreHandler
	completionH   *handler.CompletionHandler
	backupH       *handler.BackupHandler
	writeLimiter  *middleware.WriteLimiter
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, backupCfg backup.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger)

	memberStore := store.NewMemberStore(db)
	choreStore := store.NewChoreStore(db)

	backupMgr := backup.NewManager(backupCfg, db, store.NewBackupStore(db), func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
		})
	}, logger.With("component", "backup"))

	return &Server{
		db:            db,
		hub:           hub,
		memberH:       handler.NewMemberHandler(memberStore, hub, logger.With("component", "member")),
		choreH:        handler.NewChoreHandler(choreStore, hub, logger.With("component", "chore")),
		completionH:   handler.NewCompletionHandler(choreStore, memberStore, hub, logger.With("component", "completion")),
		backupH:       handler.NewBackupHandler(backupMgr, logger.With("component", "backup_handler")),
		writeLimiter:  middleware.NewWriteLimiter(writeLimit, writeLimitEvery),
		backupManager: backupMgr,
		logger:        logger,
	}
}

// Hub returns the change feed hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("GET /api/members", s.memberH.List)
	mux.HandleFunc("POST /api/members", s.memberH.Create)
	mux.HandleFunc("PATCH /api/members/{id}", s.memberH.Update)

	mux.HandleFunc("GET /api/chores", s.choreH.List)
	mux.HandleFunc("POST /api/chores", s.choreH.Create)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("GET /api/chores/{id}/roster", s.choreH.GetRoster)
	mux.HandleFunc("PUT /api/chores/{id}/roster", s.choreH.PutRoster)

	mux.HandleFunc("GET /api/completions", s.completionH.List)
	mux.HandleFunc("POST /api/completions/toggle", s.completionH.Toggle)

	mux.HandleFunc("GET /api/backups", s.backupH.List)
	mux.HandleFunc("POST /api/backups", s.backupH.Run)

	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	limited := middleware.LimitWrites(s.writeLimiter)(mux)
	return middleware.RequestLogger(s.logger.With("component", "http"))(limited)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status, code = "database unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write([]byte(`{"status":"` + status + `"}`))
}

// ListenAndServe serves the API on addr until ctx is cancelled, then shuts
// down gracefully. The backup schedule and limiter cleanup run alongside.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := s.backupManager.Start(ctx); err != nil {
		return err
	}
	defer s.backupManager.Stop()

	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		ticker := time.NewTicker(writeLimitEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.writeLimiter.Cleanup()
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("chorewheel listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	s.logger.Info("shutting down")
	cancel()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	<-cleanupDone
	return serveErr
}
