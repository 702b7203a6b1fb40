package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/scout"
	. "github.com/smartystreets/goconvey/convey"
)

const teamEvents = `[
  {"team": 971, "epa": {"breakdown": {"total_points": 61.5, "auto_points": 20.1, "teleop_points": 30.2, "endgame_points": 11.2}}},
  {"team": 254, "epa": {"breakdown": {"total_points": 70.0, "auto_points": 25.0, "teleop_points": 35.0, "endgame_points": 10.0}}}
]`

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func offlineEnv(t *testing.T) string {
	t.Helper()
	stats := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v3/team_events":
			_, _ = w.Write([]byte(teamEvents))
		case "/v3/team/1678":
			_, _ = w.Write([]byte(`{"team": 1678, "norm_epa": {"current": 1750}}`))
		case "/v3/team/254":
			_, _ = w.Write([]byte(`{"team": 254, "norm_epa": {"current": 1890.5}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(stats.Close)

	t.Setenv("SCOUT_STATBOTICS_URL", stats.URL)
	t.Setenv("SCOUT_ACCESS_TOKEN", "")
	t.Setenv("SCOUT_LOG_LEVEL", "error")
	return filepath.Join(t.TempDir(), "board.sqlite")
}

func showBoard(t *testing.T, store string) models.BoardState {
	t.Helper()
	out, _, err := runCLI(t, "--store", store, "--json", "board", "show")
	if err != nil {
		t.Fatalf("board show: %v", err)
	}
	var state models.BoardState
	if err := json.Unmarshal([]byte(out), &state); err != nil {
		t.Fatalf("decode board: %v\n%s", err, out)
	}
	return state
}

func teams(tier models.Tier) []int {
	out := make([]int, 0, len(tier.Items))
	for _, item := range tier.Items {
		out = append(out, item.Team)
	}
	return out
}

func TestBoardCommands(t *testing.T) {
	Convey("Given a local board filled from an event", t, func() {
		store := offlineEnv(t)
		out, _, err := runCLI(t, "--store", store, "event", "load", "2024txhou")
		So(err, ShouldBeNil)
		So(out, ShouldContainSubstring, "loaded 2 teams from 2024txhou")

		Convey("the pool survives between invocations in team order", func() {
			state := showBoard(t, store)
			So(teams(state[models.TierPool]), ShouldResemble, []int{254, 971})

			code, _, err := runCLI(t, "--store", store, "event", "show")
			So(err, ShouldBeNil)
			So(strings.TrimSpace(code), ShouldEqual, "2024txhou")
		})

		Convey("move places a team at the end of a tier or at --index", func() {
			_, _, err := runCLI(t, "--store", store, "board", "move", "971", "s")
			So(err, ShouldBeNil)
			_, _, err = runCLI(t, "--store", store, "board", "move", "frc254", "S", "--index", "1")
			So(err, ShouldBeNil)

			state := showBoard(t, store)
			So(teams(state[models.TierS]), ShouldResemble, []int{254, 971})
			So(state[models.TierPool].Items, ShouldBeEmpty)
		})

		Convey("add fetches a team that was not at the event", func() {
			_, _, err := runCLI(t, "--store", store, "board", "add", "1678", "A")
			So(err, ShouldBeNil)
			So(teams(showBoard(t, store)[models.TierA]), ShouldResemble, []int{1678})
		})

		Convey("rename keeps the description unless one is given", func() {
			before := showBoard(t, store)[models.TierB].Description
			_, _, err := runCLI(t, "--store", store, "board", "rename", "B", "Defense")
			So(err, ShouldBeNil)
			tier := showBoard(t, store)[models.TierB]
			So(tier.Name, ShouldEqual, "Defense")
			So(tier.Description, ShouldEqual, before)
		})

		Convey("bad arguments are rejected before the board is touched", func() {
			_, _, err := runCLI(t, "--store", store, "board", "move", "971", "Z")
			So(err, ShouldNotBeNil)
			_, _, err = runCLI(t, "--store", store, "board", "move", "abc", "S")
			So(err, ShouldNotBeNil)
			_, _, err = runCLI(t, "--store", store, "board", "move", "9999", "S")
			So(err, ShouldNotBeNil)
			So(teams(showBoard(t, store)[models.TierPool]), ShouldResemble, []int{254, 971})
		})

		Convey("text output lists every tier", func() {
			out, _, err := runCLI(t, "--store", store, "board", "show")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "POOL")
			So(out, ShouldContainSubstring, "254")
			So(out, ShouldContainSubstring, "EPA 70.0")
		})
	})
}

func TestExportImport(t *testing.T) {
	Convey("Given an exported board", t, func() {
		store := offlineEnv(t)
		_, _, err := runCLI(t, "--store", store, "event", "load", "2024txhou")
		So(err, ShouldBeNil)
		_, _, err = runCLI(t, "--store", store, "board", "move", "254", "S")
		So(err, ShouldBeNil)

		file := filepath.Join(t.TempDir(), "board.json")
		_, _, err = runCLI(t, "--store", store, "export", file)
		So(err, ShouldBeNil)

		Convey("importing it into a fresh store reproduces the board", func() {
			other := filepath.Join(t.TempDir(), "other.sqlite")
			out, _, err := runCLI(t, "--store", other, "import", file)
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "imported 2 teams")
			So(teams(showBoard(t, other)[models.TierS]), ShouldResemble, []int{254})
		})

		Convey("a malformed document leaves the board as it was", func() {
			bad := filepath.Join(t.TempDir(), "bad.json")
			So(os.WriteFile(bad, []byte(`{"S": {"items": [{"team": 254}]}}`), 0o600), ShouldBeNil)

			_, _, err := runCLI(t, "--store", store, "import", bad)
			So(err, ShouldNotBeNil)
			So(teams(showBoard(t, store)[models.TierS]), ShouldResemble, []int{254})
		})
	})
}

func TestTeamStatsCommand(t *testing.T) {
	Convey("team stats looks several teams up in the order given", t, func() {
		store := offlineEnv(t)

		out, _, err := runCLI(t, "--store", store, "--json", "team", "stats", "1678", "frc254")
		So(err, ShouldBeNil)
		var stats []models.TeamStats
		So(json.Unmarshal([]byte(out), &stats), ShouldBeNil)
		So(len(stats), ShouldEqual, 2)
		So(stats[0].Team, ShouldEqual, 1678)
		So(stats[1].Team, ShouldEqual, 254)
		So(*stats[1].EPATotal, ShouldEqual, 1890.5)

		Convey("one unknown team fails the whole lookup", func() {
			out, _, err := runCLI(t, "--store", store, "team", "stats", "1678", "9999")
			So(err, ShouldNotBeNil)
			So(out, ShouldBeEmpty)
		})
	})
}

func TestOfflineSessionCommands(t *testing.T) {
	Convey("Without an access token session commands fail cleanly", t, func() {
		store := offlineEnv(t)

		_, _, err := runCLI(t, "--store", store, "sessions", "list")
		So(errors.Is(err, scout.ErrOffline), ShouldBeTrue)

		_, _, err = runCLI(t, "--store", store, "sessions", "share", "a@b.c")
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "--session")

		_, _, err = runCLI(t, "--store", store, "--session", "abc1234", "board", "show")
		So(errors.Is(err, scout.ErrOffline), ShouldBeTrue)
	})
}
