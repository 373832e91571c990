package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/chore"
	"github.com/dukerupert/chorewheel/internal/model"
)

func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [member]",
		Short: "Show a member's chore counts",
		Long: `Show how many chores a member has this week and how many they finished or
missed over the weeks on the board. Without a member, the one set with
"chorewheel whoami" is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			var m *model.Member
			if len(args) == 1 {
				if m, err = findMember(s.tracker.Members(), args[0]); err != nil {
					return err
				}
			} else {
				prefs, err := rootOpts.prefs()
				if err != nil {
					return err
				}
				id, ok := prefs.MemberID()
				if !ok {
					return fmt.Errorf("no member given and none set with whoami")
				}
				if m = s.tracker.Member(id); m == nil {
					return fmt.Errorf("remembered member %d no longer exists", id)
				}
			}

			st := s.tracker.Stats(m.ID)
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, struct {
					Member model.Member `json:"member"`
					chore.Stats
				}{*m, st})
			}
			fmt.Fprintf(out, "%s\n", m.Name)
			fmt.Fprintf(out, "  this week:  %d of %d done, %d left\n", st.ThisWeekCompleted, st.ThisWeekTotal, st.ThisWeekMissed)
			fmt.Fprintf(out, "  completed:  %d\n", st.TotalCompleted)
			fmt.Fprintf(out, "  missed:     %d\n", st.TotalMissed)
			return nil
		},
	}
	return cmd
}
