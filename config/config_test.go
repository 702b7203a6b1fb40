package config_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dosada05/alliance-board/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadServer(t *testing.T) {
	Convey("Given server settings in the environment", t, func() {
		t.Setenv("SCOUT_CONFIG", "")
		t.Setenv("SCOUT_DATABASE_URL", "postgres://scout@localhost/board?sslmode=disable")
		t.Setenv("SCOUT_JWT_SECRET_KEY", "secret")
		t.Setenv("SCOUT_SERVER_PORT", "9090")
		t.Setenv("SCOUT_CORS_ALLOWED_ORIGINS", "https://scout.example,https://backup.example")

		Convey("They override the defaults", func() {
			cfg, err := config.LoadServer(context.Background())
			So(err, ShouldBeNil)
			So(cfg.ServerPort, ShouldEqual, 9090)
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.CORSAllowedOrigins, ShouldResemble, []string{"https://scout.example", "https://backup.example"})
			So(cfg.TBABaseURL, ShouldEqual, "https://www.thebluealliance.com/api/v3")
			So(cfg.R2Configured(), ShouldBeFalse)
		})

		Convey("An out of range port is rejected", func() {
			t.Setenv("SCOUT_SERVER_PORT", "70000")
			_, err := config.LoadServer(context.Background())
			So(err, ShouldNotBeNil)
		})

		Convey("A missing secret is rejected", func() {
			t.Setenv("SCOUT_JWT_SECRET_KEY", "")
			t.Setenv("JWT_SECRET_KEY", "")
			_, err := config.LoadServer(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "JWT_SECRET_KEY")
		})
	})
}

func TestLoadClient(t *testing.T) {
	Convey("Given a YAML file and an env override", t, func() {
		path := filepath.Join(t.TempDir(), "scout.yaml")
		yaml := "api_url: https://scout.example/\ndebounce: 250ms\nlocal_store_path: /tmp/board.sqlite\n"
		So(os.WriteFile(path, []byte(yaml), 0o600), ShouldBeNil)
		t.Setenv("SCOUT_CONFIG", path)
		t.Setenv("SCOUT_ACCESS_TOKEN", "tok")

		cfg, err := config.LoadClient(context.Background())
		So(err, ShouldBeNil)
		So(cfg.APIURL, ShouldEqual, "https://scout.example")
		So(cfg.TBAProxyURL, ShouldEqual, "https://scout.example/proxy/tba")
		So(cfg.Debounce, ShouldEqual, 250*time.Millisecond)
		So(cfg.AccessToken, ShouldEqual, "tok")
		So(cfg.StatboticsURL, ShouldEqual, "https://api.statbotics.io")
		So(cfg.LocalStorePath, ShouldEqual, "/tmp/board.sqlite")
	})
}

func TestLogLevel(t *testing.T) {
	Convey("Log levels parse case-insensitively with info as fallback", t, func() {
		So(config.LogLevel("DEBUG"), ShouldEqual, slog.LevelDebug)
		So(config.LogLevel("warn"), ShouldEqual, slog.LevelWarn)
		So(config.LogLevel("error"), ShouldEqual, slog.LevelError)
		So(config.LogLevel("chatty"), ShouldEqual, slog.LevelInfo)
	})
}
