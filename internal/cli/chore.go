package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/chore"
)

func NewChoreCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chore",
		Short: "Manage chores and their rotations",
	}
	cmd.AddCommand(newChoreListCommand(rootOpts))
	cmd.AddCommand(newChoreAddCommand(rootOpts))
	cmd.AddCommand(newChoreRemoveCommand(rootOpts))
	cmd.AddCommand(newChoreAssignCommand(rootOpts))
	return cmd
}

func newChoreListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chores with their rotation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()
			tr := s.tracker

			type item struct {
				ID        int64    `json:"id"`
				Name      string   `json:"name"`
				Frequency string   `json:"frequency"`
				Rotation  []string `json:"rotation"`
			}
			var items []item
			for _, t := range tr.Templates() {
				it := item{ID: t.ID, Name: t.Name, Frequency: chore.FormatFrequency(t.WeeksBetween), Rotation: []string{}}
				for _, e := range tr.Roster(t.ID) {
					if m := tr.Member(e.MemberID); m != nil {
						it.Rotation = append(it.Rotation, m.Name)
					}
				}
				items = append(items, it)
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				if items == nil {
					items = []item{}
				}
				return writeJSON(out, items)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCHORE\tEVERY\tROTATION")
			for _, it := range items {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", it.ID, it.Name, it.Frequency, strings.Join(it.Rotation, ", "))
			}
			return tw.Flush()
		},
	}
}

func newChoreAddCommand(opts *RootOptions) *cobra.Command {
	var (
		every   int
		members []string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a chore",
		Long: `Add a chore that recurs every --every weeks, rotating among --members in
the order given.

Example:
  chorewheel chore add "Take out trash" --members alice,bob
  chorewheel chore add "Clean gutters" --every 4 --members bob`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			ids, err := findMembers(s.tracker.Members(), members)
			if err != nil {
				return err
			}
			t, err := s.tracker.AddChore(cmd.Context(), args[0], every, ids)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), t)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added chore %d: %s (%s)\n", t.ID, t.Name, chore.FormatFrequency(t.WeeksBetween))
			return nil
		},
	}
	cmd.Flags().IntVar(&every, "every", 1, "weeks between occurrences")
	cmd.Flags().StringSliceVar(&members, "members", nil, "rotation, by member name or id")
	return cmd
}

func newChoreRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <chore>",
		Aliases: []string{"remove"},
		Short:   "Remove a chore, keeping its history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			c, err := findChore(s.tracker.Templates(), args[0])
			if err != nil {
				return err
			}
			if err := s.tracker.DeleteChore(cmd.Context(), c.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed chore %d: %s\n", c.ID, c.Name)
			return nil
		},
	}
}

func newChoreAssignCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <chore> [member...]",
		Short: "Set a chore's rotation",
		Long: `Replace the rotation of a chore with the members given, in order. With no
members the chore is left unassigned.

Example:
  chorewheel chore assign trash bob alice`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			c, err := findChore(s.tracker.Templates(), args[0])
			if err != nil {
				return err
			}
			ids, err := findMembers(s.tracker.Members(), args[1:])
			if err != nil {
				return err
			}
			if err := s.tracker.SetAssignees(cmd.Context(), c.ID, ids); err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now unassigned\n", c.Name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s rotates among %s\n", c.Name, strings.Join(args[1:], ", "))
			}
			return nil
		},
	}
}
