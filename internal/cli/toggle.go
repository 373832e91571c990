package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/week"
)

type ToggleOptions struct {
	*RootOptions
	Week string
}

func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ToggleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "toggle <chore>",
		Short: "Mark a chore done, or undo it",
		Long: `Flip the completion of a chore for a week. The completion is credited to
whoever the rotation assigns that week. A chore that is not due, or has
nobody in its rotation, is left alone.

Example:
  chorewheel toggle trash
  chorewheel toggle 3 --week 2026-02-02`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			tr := s.tracker

			c, err := findChore(tr.Templates(), args[0])
			if err != nil {
				return err
			}
			wk, err := weekFlag(opts.Week, tr)
			if err != nil {
				return err
			}

			rec, err := tr.Toggle(cmd.Context(), c.ID, wk)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rec == nil {
				fmt.Fprintf(out, "%s is not due for %s; nothing changed\n", c.Name, week.Label(wk))
				return nil
			}
			if opts.Format == "json" {
				return writeJSON(out, rec)
			}

			name := "unknown"
			if m := tr.Member(rec.AssignedMemberID); m != nil {
				name = m.Name
			}
			if rec.Completed {
				fmt.Fprintf(out, "%s (%s): done by %s\n", c.Name, week.Label(wk), name)
			} else {
				fmt.Fprintf(out, "%s (%s): back to do for %s\n", c.Name, week.Label(wk), name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Week, "week", "", "week to toggle (YYYY-MM-DD, default this week)")
	return cmd
}
