package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Dosada05/alliance-board/config"
	"github.com/Dosada05/alliance-board/metrics"
	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/scout"
	"github.com/spf13/cobra"
)

type App struct {
	Session    string
	StorePath  string
	JSON       bool
	PrettyJSON bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "scout",
		Short:        "Alliance selection board for FRC scouting",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Fill the pool with every team at an event
  scout event load 2024txhou

  # Rank teams
  scout board move 254 S
  scout board show

  # Work on a shared board
  scout sessions create --name "Houston picks"
  scout --session k3x9a2b board move 1678 A
  scout sessions watch k3x9a2b
`),
	}

	cmd.PersistentFlags().StringVar(&app.Session, "session", "", "join this session before running the command")
	cmd.PersistentFlags().StringVar(&app.StorePath, "store", "", "path to the local board database (overrides SCOUT_LOCAL_STORE_PATH)")
	cmd.PersistentFlags().BoolVar(&app.JSON, "json", false, "print JSON instead of text")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "indent JSON output")

	cmd.AddCommand(newEventCmd(app))
	cmd.AddCommand(newBoardCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newSessionsCmd(app))
	cmd.AddCommand(newTeamCmd(app))

	return cmd
}

// withWorkspace opens the local board (joining --session when set), runs fn
// and closes everything so that pending edits reach the server.
func (app *App) withWorkspace(cmd *cobra.Command, fn func(ctx context.Context, ws *scout.Workspace) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadClient(ctx)
	if err != nil {
		return err
	}
	if app.StorePath != "" {
		cfg.LocalStorePath = app.StorePath
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: config.LogLevel(cfg.LogLevel)}))

	ws, local, err := scout.Open(ctx, cfg, logger, metrics.NewManager())
	if err != nil {
		return err
	}
	defer func() {
		if err := local.Close(); err != nil {
			logger.Warn("failed to close local store", slog.Any("error", err))
		}
	}()
	defer ws.Close()

	if app.Session != "" {
		if err := ws.JoinSession(ctx, app.Session); err != nil {
			return err
		}
	}
	return fn(ctx, ws)
}

func writeOut(cmd *cobra.Command, app *App, v any, text func() string) error {
	if app.JSON {
		return writeJSON(cmd, app, v)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), text())
	return err
}

func writeJSON(cmd *cobra.Command, app *App, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if app.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func parseTier(s string) (models.TierKey, error) {
	key := models.TierKey(strings.ToUpper(strings.TrimSpace(s)))
	if !key.Valid() {
		return "", fmt.Errorf("unknown tier %q (want one of S, A, B, C, DNP, POOL)", s)
	}
	return key, nil
}

func parseTeam(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "frc"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid team number %q", s)
	}
	return n, nil
}

func requireSession(app *App) error {
	if app.Session == "" {
		return errors.New("this command needs --session")
	}
	return nil
}
