package cli

import (
	"context"
	"fmt"

	"github.com/Dosada05/alliance-board/scout"
	"github.com/spf13/cobra"
)

func newEventCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Event data",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "load <event-code>",
		Short: "Reset the board and fill the pool with the event's teams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				n, err := ws.LoadEvent(ctx, args[0])
				if err != nil {
					return err
				}
				out := map[string]any{"event": args[0], "teams": n}
				return writeOut(cmd, app, out, func() string {
					return fmt.Sprintf("loaded %d teams from %s into POOL", n, args[0])
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the event the board was built from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				code, err := ws.EventCode(ctx)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"event": code}, func() string {
					if code == "" {
						return "no event loaded"
					}
					return code
				})
			})
		},
	})

	return cmd
}
