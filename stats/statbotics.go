// Package stats fetches team statistics (Statbotics) and match data (The
// Blue Alliance, through the server proxy).
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/alliance-board/metrics"
	"github.com/Dosada05/alliance-board/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultStatboticsURL = "https://api.statbotics.io"

	eventTeamsLimit   = 1000
	maxParallelFetch  = 8
	maxStatsBodyBytes = 16 << 20
)

// ErrFetchFailed covers every way a provider call can fail: transport,
// status or decoding. Callers show it and keep their state.
var ErrFetchFailed = errors.New("statistics fetch failed")

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

func WithMetrics(m *metrics.Manager) Option {
	return func(cl *Client) { cl.metrics = m }
}

// Client talks to the Statbotics v3 API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Manager
	group   singleflight.Group
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultStatboticsURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pointsMean struct {
	Mean *float64 `json:"mean"`
}

type epaBreakdown struct {
	TotalPoints   *float64 `json:"total_points"`
	AutoPoints    *float64 `json:"auto_points"`
	TeleopPoints  *float64 `json:"teleop_points"`
	EndgamePoints *float64 `json:"endgame_points"`
}

type teamEventRecord struct {
	Team json.Number `json:"team"`
	EPA  *struct {
		Breakdown   *epaBreakdown `json:"breakdown"`
		TotalPoints *pointsMean   `json:"total_points"`
	} `json:"epa"`
}

type teamRecord struct {
	Team    json.Number `json:"team"`
	NormEPA *struct {
		Current *float64 `json:"current"`
	} `json:"norm_epa"`
}

// EventTeamStats returns the stats of every team at an event, ordered by
// team number. Concurrent calls for the same event share one request.
func (c *Client) EventTeamStats(ctx context.Context, eventCode string) ([]models.TeamStats, error) {
	eventCode = strings.ToLower(strings.TrimSpace(eventCode))
	if eventCode == "" {
		return nil, fmt.Errorf("%w: event code is empty", ErrFetchFailed)
	}

	v, err, _ := c.group.Do("event:"+eventCode, func() (interface{}, error) {
		q := url.Values{}
		q.Set("event", eventCode)
		q.Set("limit", strconv.Itoa(eventTeamsLimit))

		var records []teamEventRecord
		if err := c.getJSON(ctx, "/v3/team_events?"+q.Encode(), &records); err != nil {
			return nil, err
		}

		out := make([]models.TeamStats, 0, len(records))
		for _, rec := range records {
			stats, ok := normalizeTeamEvent(rec)
			if !ok {
				c.logger.Debug("skipping team event without team number", slog.String("event", eventCode))
				continue
			}
			out = append(out, stats)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Team < out[j].Team })
		return out, nil
	})
	if err != nil {
		c.metrics.StatsFetch("error")
		return nil, err
	}
	c.metrics.StatsFetch("ok")
	return v.([]models.TeamStats), nil
}

// TeamStats returns the current season summary of one team. Only the total
// is known at this level; the breakdown stays nil.
func (c *Client) TeamStats(ctx context.Context, team int) (models.TeamStats, error) {
	if team <= 0 {
		return models.TeamStats{}, fmt.Errorf("%w: invalid team number %d", ErrFetchFailed, team)
	}

	key := strconv.Itoa(team)
	v, err, _ := c.group.Do("team:"+key, func() (interface{}, error) {
		var rec teamRecord
		if err := c.getJSON(ctx, "/v3/team/"+key, &rec); err != nil {
			return nil, err
		}
		stats := models.TeamStats{Team: team}
		if n, err := rec.Team.Int64(); err == nil && n > 0 {
			stats.Team = int(n)
		}
		if rec.NormEPA != nil {
			stats.EPATotal = rec.NormEPA.Current
		}
		return stats, nil
	})
	if err != nil {
		c.metrics.StatsFetch("error")
		return models.TeamStats{}, err
	}
	c.metrics.StatsFetch("ok")
	return v.(models.TeamStats), nil
}

// TeamsStats fetches several teams in parallel. The first failure cancels
// the rest and nothing partial is returned.
func (c *Client) TeamsStats(ctx context.Context, teams []int) ([]models.TeamStats, error) {
	out := make([]models.TeamStats, len(teams))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetch)
	for i, team := range teams {
		g.Go(func() error {
			stats, err := c.TeamStats(gCtx, team)
			if err != nil {
				return err
			}
			out[i] = stats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizeTeamEvent(rec teamEventRecord) (models.TeamStats, bool) {
	n, err := rec.Team.Int64()
	if err != nil || n <= 0 {
		return models.TeamStats{}, false
	}
	stats := models.TeamStats{Team: int(n)}
	if rec.EPA == nil {
		return stats, true
	}
	if b := rec.EPA.Breakdown; b != nil {
		stats.EPATotal = b.TotalPoints
		stats.EPAAuto = b.AutoPoints
		stats.EPATeleop = b.TeleopPoints
		stats.EPAEndgame = b.EndgamePoints
	}
	// Итог из breakdown бывает пустым или нулевым, тогда берём среднее.
	if (stats.EPATotal == nil || *stats.EPATotal == 0) && rec.EPA.TotalPoints != nil && rec.EPA.TotalPoints.Mean != nil {
		stats.EPATotal = rec.EPA.TotalPoints.Mean
	}
	return stats, true
}

func (c *Client) getJSON(ctx context.Context, path string, dst interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: GET %s returned %d", ErrFetchFailed, path, resp.StatusCode)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxStatsBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrFetchFailed, path, err)
	}
	return nil
}
