package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/model"
)

func NewMemberCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "member",
		Aliases: []string{"members"},
		Short:   "Manage household members",
	}
	cmd.AddCommand(newMemberListCommand(rootOpts))
	cmd.AddCommand(newMemberAddCommand(rootOpts))
	cmd.AddCommand(newMemberUpdateCommand(rootOpts))
	return cmd
}

func newMemberListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			members := s.tracker.Members()
			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				if members == nil {
					members = []model.Member{}
				}
				return writeJSON(out, members)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCOLOR")
			for _, m := range members {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", m.ID, m.Name, m.Color)
			}
			return tw.Flush()
		},
	}
}

func newMemberAddCommand(opts *RootOptions) *cobra.Command {
	var color string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			m, err := s.tracker.AddMember(cmd.Context(), args[0], color)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), m)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added member %d: %s\n", m.ID, m.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "display color, e.g. #4A90D9")
	return cmd
}

func newMemberUpdateCommand(opts *RootOptions) *cobra.Command {
	var (
		name   string
		color  string
		active bool
	)
	cmd := &cobra.Command{
		Use:   "update <member>",
		Short: "Rename, recolor, or deactivate a member",
		Long: `Update a member. Only the flags given are changed. Inactive members are
no longer listed, so reactivating one takes its numeric id.

Example:
  chorewheel member update alice --color "#E67E22"
  chorewheel member update bob --active=false
  chorewheel member update 2 --active`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			var id int64
			if m, err := findMember(s.tracker.Members(), args[0]); err == nil {
				id = m.ID
			} else if id, err = strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("no member %q", args[0])
			}

			var upd model.MemberUpdate
			if cmd.Flags().Changed("name") {
				upd.Name = &name
			}
			if cmd.Flags().Changed("color") {
				upd.Color = &color
			}
			if cmd.Flags().Changed("active") {
				upd.IsActive = &active
			}
			if upd.Name == nil && upd.Color == nil && upd.IsActive == nil {
				return fmt.Errorf("nothing to update: pass --name, --color or --active")
			}

			m, err := s.tracker.UpdateMember(cmd.Context(), id, upd)
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("no member %d", id)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), m)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated member %d: %s\n", m.ID, m.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&color, "color", "", "new display color")
	cmd.Flags().BoolVar(&active, "active", true, "whether the member takes part in rotations")
	return cmd
}
