// Package cli is the chorewheel command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/client"
	"github.com/dukerupert/chorewheel/internal/config"
	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/logging"
	"github.com/dukerupert/chorewheel/internal/model"
	"github.com/dukerupert/chorewheel/internal/preference"
	"github.com/dukerupert/chorewheel/internal/store"
	"github.com/dukerupert/chorewheel/internal/tracker"
	"github.com/dukerupert/chorewheel/internal/week"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config    config.Config
	Format    string
	ServerURL string
	DBPath    string
	LogLevel  string
	PrefPath  string

	// Now replaces time.Now in tests.
	Now func() time.Time

	logger *slog.Logger
}

// NewRootCommand creates the root command. Flags default to cfg.
func NewRootCommand(cfg config.Config) *cobra.Command {
	return newRootCommand(&RootOptions{Config: cfg, Now: time.Now})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cfg := opts.Config

	cmd := &cobra.Command{
		Use:   "chorewheel",
		Short: "Household chore rotation tracker",
		Long: `chorewheel rotates recurring household chores among members week by week
and records who finished what.

Without --server, commands work on the local SQLite database. With --server
(or CHOREWHEEL_SERVER_URL) they talk to a running "chorewheel serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.logger = logging.Setup(opts.LogLevel, cfg.App.LogFormat, cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ServerURL, "server", cfg.Sync.ServerURL, "chorewheel server URL (empty for the local database)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", cfg.DB.Path, "path to the SQLite database")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", cfg.App.LogLevel, "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.PrefPath, "preferences", cfg.App.PreferencePath, "preference file (default $XDG_CONFIG_HOME/chorewheel/preferences.yaml)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewBoardCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewToggleCommand(opts))
	cmd.AddCommand(NewChoreCommand(opts))
	cmd.AddCommand(NewMemberCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// session is a loaded tracker over the local database or a server.
type session struct {
	tracker *tracker.Tracker
	source  tracker.EventSource
	close   func()
}

func (o *RootOptions) open(ctx context.Context) (*session, error) {
	var (
		st     tracker.Store
		source tracker.EventSource
	)
	closeFn := func() {}

	if o.ServerURL != "" {
		c := client.New(o.ServerURL, o.logger)
		st, source = c, c
	} else {
		db, err := database.Open(o.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		st = store.NewLocal(db)
		closeFn = func() { db.Close() }
	}

	tr := tracker.New(st, o.logger, tracker.WithLocation(o.Config.Location()), tracker.WithClock(o.Now))
	if err := tr.LoadAll(ctx); err != nil {
		closeFn()
		return nil, err
	}
	return &session{tracker: tr, source: source, close: closeFn}, nil
}

func (o *RootOptions) prefs() (*preference.Store, error) {
	path := o.PrefPath
	if path == "" {
		var err error
		if path, err = preference.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return preference.New(path), nil
}

// findMember resolves an id or a case-insensitive name among active members.
func findMember(members []model.Member, arg string) (*model.Member, error) {
	id, idErr := strconv.ParseInt(arg, 10, 64)
	for i := range members {
		if (idErr == nil && members[i].ID == id) || strings.EqualFold(members[i].Name, arg) {
			return &members[i], nil
		}
	}
	return nil, fmt.Errorf("no member %q", arg)
}

func findMembers(members []model.Member, args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		m, err := findMember(members, strings.TrimSpace(arg))
		if err != nil {
			return nil, err
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func findChore(templates []model.ChoreTemplate, arg string) (*model.ChoreTemplate, error) {
	id, idErr := strconv.ParseInt(arg, 10, 64)
	for i := range templates {
		if (idErr == nil && templates[i].ID == id) || strings.EqualFold(templates[i].Name, arg) {
			return &templates[i], nil
		}
	}
	return nil, fmt.Errorf("no chore %q", arg)
}

// weekFlag parses --week, defaulting to the current week.
func weekFlag(raw string, tr *tracker.Tracker) (time.Time, error) {
	if raw == "" {
		return tr.Today(), nil
	}
	w, err := week.ParseKey(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--week: %w", err)
	}
	return w, nil
}
