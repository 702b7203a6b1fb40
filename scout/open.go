package scout

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Dosada05/alliance-board/config"
	"github.com/Dosada05/alliance-board/metrics"
	"github.com/Dosada05/alliance-board/persistence"
	"github.com/Dosada05/alliance-board/realtime"
	"github.com/Dosada05/alliance-board/remote"
	"github.com/Dosada05/alliance-board/stats"
	"github.com/google/uuid"
)

// Open builds a workspace from client settings: a SQLite file for local
// state, the session server for sync and the public statistics providers.
// The caller must Close the workspace and the returned local store.
func Open(ctx context.Context, cfg *config.ClientConfig, logger *slog.Logger, m *metrics.Manager) (*Workspace, *persistence.SQLiteLocalStore, error) {
	local, err := persistence.OpenSQLiteLocalStore(ctx, cfg.LocalStorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open local store %s: %w", cfg.LocalStorePath, err)
	}

	origin := uuid.NewString()
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	opts := Options{
		Origin:  origin,
		Local:   local,
		Bus:     localBus(cfg.LocalStorePath, local, logger),
		Stats:   stats.NewClient(cfg.StatboticsURL, stats.WithHTTPClient(httpClient), stats.WithLogger(logger), stats.WithMetrics(m)),
		Matches: stats.NewMatchClient(cfg.TBAProxyURL, cfg.AccessToken, httpClient, logger),
		BridgeOptions: []persistence.BridgeOption{
			persistence.WithDebounce(cfg.Debounce),
		},
		Logger:  logger,
		Metrics: m,
	}
	if cfg.APIURL != "" && cfg.AccessToken != "" {
		opts.Sessions = remote.NewClient(cfg.APIURL, cfg.AccessToken, httpClient)
		opts.Channel = realtime.NewChannel(cfg.APIURL, cfg.AccessToken, origin, realtime.WithChannelLogger(logger))
	}

	ws, err := New(opts)
	if err != nil {
		local.Close()
		return nil, nil, err
	}
	if err := ws.Start(ctx); err != nil {
		local.Close()
		return nil, nil, err
	}
	return ws, local, nil
}

// localBus connects windows that share the store file. A ":memory:" store is
// private to the process, so an in-process bus is enough.
func localBus(path string, local *persistence.SQLiteLocalStore, logger *slog.Logger) persistence.Bus {
	if path == ":memory:" {
		return persistence.NewMemoryBus()
	}
	return persistence.NewSQLiteBus(local, persistence.WithBusLogger(logger))
}
