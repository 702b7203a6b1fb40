package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/alliance-board/metrics"
)

const (
	ProxyTypeTeamEventMatches = "teamEventMatches"
	ProxyTypeTeamInfo         = "teamInfo"

	tbaAuthHeader   = "X-TBA-Auth-Key"
	maxUpstreamBody = 8 << 20
)

// ProxyRequest - тело запроса к прокси видео матчей.
type ProxyRequest struct {
	Type     string `json:"type"`
	TeamKey  string `json:"teamKey"`
	EventKey string `json:"eventKey,omitempty"`
}

// ProxyHandler пересылает разрешённые запросы в The Blue Alliance с ключом
// API, который хранится на сервере.
type ProxyHandler struct {
	apiKey  string
	baseURL string
	client  *http.Client
	metrics *metrics.Manager
	logger  *slog.Logger
}

func NewProxyHandler(apiKey, baseURL string, client *http.Client, m *metrics.Manager, logger *slog.Logger) *ProxyHandler {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProxyHandler{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		metrics: m,
		logger:  logger,
	}
}

func (h *ProxyHandler) upstreamPath(req ProxyRequest) (string, error) {
	if req.Type == "" || req.TeamKey == "" || (req.Type == ProxyTypeTeamEventMatches && req.EventKey == "") {
		return "", errors.New("missing type, teamKey, or eventKey")
	}
	switch req.Type {
	case ProxyTypeTeamEventMatches:
		return "/team/" + url.PathEscape(req.TeamKey) + "/event/" + url.PathEscape(req.EventKey) + "/matches", nil
	case ProxyTypeTeamInfo:
		return "/team/" + url.PathEscape(req.TeamKey), nil
	default:
		return "", errors.New("invalid type")
	}
}

func (h *ProxyHandler) ServeTBA(w http.ResponseWriter, r *http.Request) {
	var req ProxyRequest
	status := http.StatusOK
	defer func() { h.metrics.ProxyRequest(req.Type, strconv.Itoa(status)) }()

	// Ключ проверяется первым: без него прокси бесполезен.
	if h.apiKey == "" {
		status = http.StatusInternalServerError
		errorResponse(w, r, status, "TBA API key not configured")
		return
	}

	if err := readJSON(w, r, &req); err != nil {
		status = http.StatusBadRequest
		badRequestResponse(w, r, err)
		return
	}

	path, err := h.upstreamPath(req)
	if err != nil {
		status = http.StatusBadRequest
		badRequestResponse(w, r, err)
		return
	}

	body, err := h.fetch(r, path)
	if err != nil {
		status = http.StatusBadGateway
		h.logger.Warn("tba proxy request failed", slog.String("type", req.Type), slog.String("team_key", req.TeamKey), slog.Any("error", err))
		errorResponse(w, r, status, "upstream request failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *ProxyHandler) fetch(r *http.Request, path string) ([]byte, error) {
	upstream, err := http.NewRequestWithContext(r.Context(), http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	upstream.Header.Set(tbaAuthHeader, h.apiKey)
	upstream.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(upstream)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, errors.New("upstream returned invalid JSON")
	}
	return body, nil
}
