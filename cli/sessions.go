package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/scout"
	"github.com/spf13/cobra"
)

func newSessionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Shared boards on the session server",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions you own or that were shared with you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				sessions, err := ws.LoadSessions(ctx)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, sessions, func() string { return formatSessions(sessions) })
			})
		},
	})

	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Upload the local board as a new session and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				id, err := ws.CreateSession(ctx, name)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"id": id}, func() string { return id })
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "session name")
	cmd.AddCommand(create)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				if err := ws.DeleteSession(ctx, args[0]); err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"deleted": args[0]}, func() string {
					return "deleted " + args[0]
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "share <email>",
		Short: "Give another user access to --session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				if err := ws.ShareSession(ctx, args[0]); err != nil {
					return err
				}
				return writeOut(cmd, app, map[string]any{"shared_with": args[0]}, func() string {
					return "shared with " + args[0]
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "shares",
		Short: "List who --session is shared with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				emails, err := ws.SharedUsers(ctx)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, emails, func() string {
					if len(emails) == 0 {
						return "not shared"
					}
					return strings.Join(emails, "\n")
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <name>",
		Short: "Rename --session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				return ws.SetSessionName(ctx, args[0])
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Overwrite --session with the local board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireSession(app); err != nil {
				return err
			}
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				return ws.SaveSession(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch <id>",
		Short: "Join a session and print the board whenever someone changes it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Session = args[0]
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				show := func(state models.BoardState) {
					if app.JSON {
						_ = writeJSON(cmd, app, state)
						return
					}
					fmt.Fprintf(cmd.OutOrStdout(), "--- %s\n%s\n", time.Now().Format(time.TimeOnly), formatBoard(state))
				}
				ws.OnRemoteChange(func(s models.Session) { show(s.Data) })
				show(ws.Board())

				<-ctx.Done()
				return nil
			})
		},
	})

	return cmd
}

func formatSessions(sessions []models.Session) string {
	if len(sessions) == 0 {
		return "no sessions"
	}
	var b strings.Builder
	for _, s := range sessions {
		fmt.Fprintf(&b, "%s  %-10s %-24s %3d teams  %s\n",
			s.ID, s.EventCode, s.Name, s.Data.ItemCount(), s.CreatedAt.Local().Format(time.DateTime))
	}
	return strings.TrimRight(b.String(), "\n")
}
