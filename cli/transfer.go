package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Dosada05/alliance-board/scout"
	"github.com/spf13/cobra"
)

func newExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the board as a JSON document (stdout by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				if len(args) == 0 || args[0] == "-" {
					return ws.Export(cmd.OutOrStdout())
				}
				f, err := os.Create(args[0])
				if err != nil {
					return err
				}
				if err := ws.Export(f); err != nil {
					f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace the board with a previously exported document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				if err := ws.Import(in); err != nil {
					return err
				}
				n := ws.Board().ItemCount()
				return writeOut(cmd, app, map[string]any{"teams": n}, func() string {
					return fmt.Sprintf("imported %d teams", n)
				})
			})
		},
	}
}
