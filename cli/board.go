package cli

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/scout"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func newBoardCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show and edit the tier board",
	}
	cmd.AddCommand(newBoardShowCmd(app))
	cmd.AddCommand(newBoardAddCmd(app))
	cmd.AddCommand(newBoardMoveCmd(app))
	cmd.AddCommand(newBoardRenameCmd(app))
	return cmd
}

func newBoardShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print every tier in rank order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				state := ws.Board()
				return writeOut(cmd, app, state, func() string { return formatBoard(state) })
			})
		},
	}
}

func newBoardAddCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <team> <tier>",
		Short: "Fetch a team's EPA and append it to a tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			team, err := parseTeam(args[0])
			if err != nil {
				return err
			}
			tier, err := parseTier(args[1])
			if err != nil {
				return err
			}
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				if err := ws.AddTeam(ctx, team, tier); err != nil {
					return err
				}
				return writeOut(cmd, app, ws.Board()[tier], func() string {
					return fmt.Sprintf("added %d to %s", team, tier)
				})
			})
		},
	}
}

func newBoardMoveCmd(app *App) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "move <team> <tier>",
		Short: "Move a team to a tier (end of the tier unless --index is given)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			team, err := parseTeam(args[0])
			if err != nil {
				return err
			}
			tier, err := parseTier(args[1])
			if err != nil {
				return err
			}
			at := index - 1
			if index <= 0 {
				at = math.MaxInt32
			}
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				if err := ws.MoveTeam(team, tier, at); err != nil {
					return err
				}
				return writeOut(cmd, app, ws.Board()[tier], func() string {
					return fmt.Sprintf("moved %d to %s", team, tier)
				})
			})
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "1-based position inside the tier")
	return cmd
}

func newBoardRenameCmd(app *App) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "rename <tier> <name>",
		Short: "Rename a tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := parseTier(args[0])
			if err != nil {
				return err
			}
			return app.withWorkspace(cmd, func(ctx context.Context, ws *scout.Workspace) error {
				desc := ws.Board()[tier].Description
				if cmd.Flags().Changed("description") {
					desc = description
				}
				if err := ws.RenameTier(tier, args[1], desc); err != nil {
					return err
				}
				return writeOut(cmd, app, ws.Board()[tier], func() string {
					return fmt.Sprintf("%s is now %q", tier, args[1])
				})
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "new tier description")
	return cmd
}

// Цвета тиров в браузере заданы CSS-переменными темы.
var tierColors = map[string]lipgloss.Color{
	"var(--accent-secondary)": lipgloss.Color("#b57edc"),
	"var(--success)":          lipgloss.Color("#3fb950"),
	"var(--accent-primary)":   lipgloss.Color("#58a6ff"),
	"var(--warning)":          lipgloss.Color("#d29922"),
	"var(--danger)":           lipgloss.Color("#f85149"),
	"var(--bg-secondary)":     lipgloss.Color("#8b949e"),
}

func tierStyle(color string) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	if c, ok := tierColors[color]; ok {
		return style.Foreground(c)
	}
	if strings.HasPrefix(color, "#") {
		return style.Foreground(lipgloss.Color(color))
	}
	return style
}

func formatBoard(state models.BoardState) string {
	var b strings.Builder
	for _, key := range state.Keys() {
		tier := state[key]
		header := fmt.Sprintf("%-4s %s (%d)", key, tier.Name, len(tier.Items))
		b.WriteString(tierStyle(tier.Color).Render(header))
		b.WriteByte('\n')
		for i, item := range tier.Items {
			fmt.Fprintf(&b, "  %2d. %-6d EPA %s  auto %s  teleop %s  endgame %s\n",
				i+1, item.Team, epa(item.EPATotal), epa(item.EPAAuto), epa(item.EPATeleop), epa(item.EPAEndgame))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func epa(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}
