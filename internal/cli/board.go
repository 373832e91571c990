package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/tracker"
	"github.com/dukerupert/chorewheel/internal/week"
)

type BoardOptions struct {
	*RootOptions
	Week string
}

func NewBoardCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BoardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the chore board",
		Long: `Show who has each chore over four weeks: two past weeks, the current week
and the next one.

  [x] done   [ ] to do   [!] missed   [~] saving   - not due

Example:
  chorewheel board
  chorewheel board --week 2026-02-02 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			if opts.Week != "" {
				ref, err := weekFlag(opts.Week, s.tracker)
				if err != nil {
					return err
				}
				if err := s.tracker.SetReferenceWeek(cmd.Context(), ref); err != nil {
					return err
				}
			}
			return renderBoard(cmd.OutOrStdout(), opts.Format, s.tracker)
		},
	}

	cmd.Flags().StringVar(&opts.Week, "week", "", "center the board on this week (YYYY-MM-DD)")
	return cmd
}

type WatchOptions struct {
	*RootOptions
	Interval time.Duration
}

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the board and redraw it as it changes",
		Long: `Keep the board on screen. With a server, changes from other devices arrive
over the change feed; the board is also refreshed every --interval.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", rootOpts.Config.Sync.PollInterval.Duration(), "fallback refresh interval")
	return cmd
}

func runWatch(ctx context.Context, w io.Writer, opts *WatchOptions) error {
	s, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	redraw := make(chan struct{}, 1)
	s.tracker.OnChange(func() {
		select {
		case redraw <- struct{}{}:
		default:
		}
	})

	syncer := tracker.NewSyncer(s.tracker, s.source, opts.Interval, opts.logger)
	if err := syncer.Start(ctx); err != nil {
		return err
	}
	defer syncer.Stop()

	if err := renderBoard(w, opts.Format, s.tracker); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-redraw:
			// Let a burst of refreshes settle before drawing.
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			select {
			case <-redraw:
			default:
			}
			if opts.Format == "text" {
				fmt.Fprintf(w, "\n-- %s --\n", opts.Now().Format("15:04:05"))
			}
			if err := renderBoard(w, opts.Format, s.tracker); err != nil {
				return err
			}
		}
	}
}

type boardCell struct {
	Week      string       `json:"week"`
	Label     string       `json:"label"`
	MemberID  int64        `json:"member_id,omitempty"`
	Assignee  string       `json:"assignee,omitempty"`
	Status    chore.Status `json:"status"`
	Completed bool         `json:"completed"`
	Pending   bool         `json:"pending,omitempty"`
}

type boardRow struct {
	ChoreID   int64       `json:"chore_id"`
	Chore     string      `json:"chore"`
	Frequency string      `json:"frequency"`
	Cells     []boardCell `json:"cells"`
}

func boardRows(tr *tracker.Tracker) []boardRow {
	grid := tr.Grid()
	rows := make([]boardRow, 0, len(grid))
	for _, r := range grid {
		row := boardRow{ChoreID: r.Chore.ID, Chore: r.Chore.Name, Frequency: r.Frequency}
		for _, c := range r.Cells {
			cell := boardCell{
				Week:      week.Key(c.Week),
				Label:     week.Label(c.Week),
				Status:    c.Status,
				Completed: c.Completed,
				Pending:   c.Pending,
			}
			if c.Assigned != nil {
				cell.MemberID = c.Assigned.ID
				cell.Assignee = c.Assigned.Name
			}
			row.Cells = append(row.Cells, cell)
		}
		rows = append(rows, row)
	}
	return rows
}

func renderBoard(w io.Writer, format string, tr *tracker.Tracker) error {
	rows := boardRows(tr)
	if format == "json" {
		return writeJSON(w, rows)
	}

	if n := tr.Notice(); n != nil {
		fmt.Fprintf(w, "! %s: %s\n", n.Kind, n.Message)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No chores yet. Add one with: chorewheel chore add <name>")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	today := tr.Today()
	header := []string{"CHORE", "EVERY"}
	for _, wk := range tr.Window() {
		label := week.Label(wk)
		if wk.Equal(today) {
			label = "*" + label
		}
		header = append(header, label)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, r := range rows {
		line := []string{r.Chore, r.Frequency}
		for _, c := range r.Cells {
			line = append(line, cellText(c))
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	return tw.Flush()
}

func cellText(c boardCell) string {
	switch {
	case c.Status == chore.StatusNotDue:
		return "-"
	case c.Pending:
		return "[~] " + c.Assignee
	case c.Status == chore.StatusCompleted:
		return "[x] " + c.Assignee
	case c.Status == chore.StatusMissed:
		return "[!] " + c.Assignee
	default:
		return "[ ] " + c.Assignee
	}
}
