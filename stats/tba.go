package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	emptyMatches = json.RawMessage("[]")
	nullInfo     = json.RawMessage("null")
)

// MatchClient queries The Blue Alliance through the server proxy, which
// holds the API key.
type MatchClient struct {
	proxyURL string
	token    string
	http     *http.Client
	logger   *slog.Logger
}

func NewMatchClient(proxyURL, token string, httpClient *http.Client, logger *slog.Logger) *MatchClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchClient{
		proxyURL: strings.TrimRight(proxyURL, "/"),
		token:    token,
		http:     httpClient,
		logger:   logger,
	}
}

type proxyRequest struct {
	Type     string `json:"type"`
	TeamKey  string `json:"teamKey"`
	EventKey string `json:"eventKey,omitempty"`
}

// TeamKey formats a team number the way TBA expects ("frc254").
func TeamKey(team int) string {
	return fmt.Sprintf("frc%d", team)
}

// TeamEventMatches returns the provider's match list. On any failure it
// returns an empty list together with the error.
func (c *MatchClient) TeamEventMatches(ctx context.Context, teamKey, eventKey string) (json.RawMessage, error) {
	body, err := c.call(ctx, proxyRequest{Type: "teamEventMatches", TeamKey: teamKey, EventKey: eventKey})
	if err != nil {
		c.logger.Warn("team event matches unavailable", slog.String("team_key", teamKey), slog.String("event_key", eventKey), slog.Any("error", err))
		return emptyMatches, err
	}
	return body, nil
}

// TeamInfo returns the provider's team record, or null with the error.
func (c *MatchClient) TeamInfo(ctx context.Context, teamKey string) (json.RawMessage, error) {
	body, err := c.call(ctx, proxyRequest{Type: "teamInfo", TeamKey: teamKey})
	if err != nil {
		c.logger.Warn("team info unavailable", slog.String("team_key", teamKey), slog.Any("error", err))
		return nullInfo, err
	}
	return body, nil
}

func (c *MatchClient) call(ctx context.Context, body proxyRequest) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.proxyURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxStatsBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: proxy returned %d: %s", ErrFetchFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: proxy returned invalid JSON", ErrFetchFailed)
	}
	return raw, nil
}
