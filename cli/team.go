package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dosada05/alliance-board/scout"
	"github.com/spf13/cobra"
)

func newTeamCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Look up a single team",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats <team>...",
		Short: "Print the current EPA breakdown of one or more teams",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teams := make([]int, 0, len(args))
			for _, arg := range args {
				team, err := parseTeam(arg)
				if err != nil {
					return err
				}
				teams = append(teams, team)
			}
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				stats, err := ws.TeamsStats(ctx, teams)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, stats, func() string {
					lines := make([]string, 0, len(stats))
					for _, s := range stats {
						lines = append(lines, fmt.Sprintf("%-6d EPA %s  auto %s  teleop %s  endgame %s",
							s.Team, epa(s.EPATotal), epa(s.EPAAuto), epa(s.EPATeleop), epa(s.EPAEndgame)))
					}
					return strings.Join(lines, "\n")
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "matches <team>",
		Short: "Print the team's matches at the loaded event as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			team, err := parseTeam(args[0])
			if err != nil {
				return err
			}
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				raw, err := ws.TeamEventMatches(ctx, team)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(raw))
				return err
			})
		},
	})

	return cmd
}
