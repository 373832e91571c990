package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type WhoamiOptions struct {
	*RootOptions
	Clear bool
}

// NewWhoamiCommand remembers which member uses this device.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WhoamiOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "whoami [member]",
		Short: "Show or set the member using this device",
		Long: `With a member, remember them as the person using this device; stats then
defaults to them. With no arguments, print the remembered member.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefs, err := opts.prefs()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if opts.Clear {
				if err := prefs.ClearMemberID(); err != nil {
					return err
				}
				fmt.Fprintln(out, "forgot the current member")
				return nil
			}

			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			if len(args) == 1 {
				m, err := findMember(s.tracker.Members(), args[0])
				if err != nil {
					return err
				}
				if err := prefs.SetMemberID(m.ID); err != nil {
					return err
				}
				fmt.Fprintf(out, "you are %s\n", m.Name)
				return nil
			}

			id, ok := prefs.MemberID()
			if !ok {
				fmt.Fprintln(out, "no member set; run \"chorewheel whoami <member>\"")
				return nil
			}
			m := s.tracker.Member(id)
			if m == nil {
				fmt.Fprintf(out, "remembered member %d no longer exists\n", id)
				return nil
			}
			if opts.Format == "json" {
				return writeJSON(out, m)
			}
			fmt.Fprintf(out, "you are %s\n", m.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Clear, "clear", false, "forget the remembered member")
	return cmd
}
