package scout_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/persistence"
	"github.com/Dosada05/alliance-board/realtime"
	"github.com/Dosada05/alliance-board/remote"
	"github.com/Dosada05/alliance-board/scout"
	"github.com/gorilla/websocket"
)

const testDebounce = 50 * time.Millisecond

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// sessionServer keeps sessions in memory and announces every write to the
// hub, like the real server does.
type sessionServer struct {
	hub *realtime.Hub

	mu        sync.Mutex
	sessions  map[string]*models.Session
	shares    map[string][]string
	conflicts int
	dataPuts  atomic.Int32
	namePuts  atomic.Int32
}

func newSessionServer(hub *realtime.Hub) *sessionServer {
	return &sessionServer{hub: hub, sessions: map[string]*models.Session{}, shares: map[string][]string{}}
}

func (s *sessionServer) CreateSession(_ context.Context, id, eventCode, name string, data models.BoardState) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		s.conflicts--
		return nil, remote.ErrSessionIDConflict
	}
	if _, ok := s.sessions[id]; ok {
		return nil, remote.ErrSessionIDConflict
	}
	session := &models.Session{ID: id, OwnerID: "u-1", EventCode: eventCode, Name: name, Data: data.Clone(), CreatedAt: time.Now()}
	s.sessions[id] = session
	cp := *session
	return &cp, nil
}

func (s *sessionServer) GetSession(_ context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, remote.ErrSessionNotFound
	}
	cp := *session
	cp.Data = session.Data.Clone()
	return &cp, nil
}

func (s *sessionServer) ListSessions(context.Context) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, *session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *sessionServer) update(id, origin string, apply func(*models.Session)) error {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return remote.ErrSessionNotFound
	}
	apply(session)
	cp := *session
	cp.Data = session.Data.Clone()
	s.mu.Unlock()
	s.hub.NotifySessionUpdated(&cp, origin)
	return nil
}

func (s *sessionServer) UpdateSessionData(_ context.Context, id string, data models.BoardState, origin string) error {
	s.dataPuts.Add(1)
	return s.update(id, origin, func(session *models.Session) { session.Data = data.Clone() })
}

func (s *sessionServer) UpdateSessionName(_ context.Context, id, name, origin string) error {
	s.namePuts.Add(1)
	return s.update(id, origin, func(session *models.Session) { session.Name = name })
}

func (s *sessionServer) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return remote.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *sessionServer) ShareSession(_ context.Context, id, email string) (*models.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.HasPrefix(email, "ghost@") {
		return nil, remote.ErrShareRecipientUnknown
	}
	for _, e := range s.shares[id] {
		if e == email {
			return nil, remote.ErrShareConflict
		}
	}
	s.shares[id] = append(s.shares[id], email)
	return &models.Share{SessionID: id, UserEmail: email}, nil
}

func (s *sessionServer) ListShares(_ context.Context, id string) ([]models.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Share, 0, len(s.shares[id]))
	for _, e := range s.shares[id] {
		out = append(out, models.Share{SessionID: id, UserEmail: e})
	}
	return out, nil
}

func (s *sessionServer) exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// roomServer serves the websocket rooms for sessions known to api.
func roomServer(hub *realtime.Hub, api *sessionServer) *httptest.Server {
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if !api.exists(id) {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Attach(conn, realtime.RoomForSession(id), r.URL.Query().Get(realtime.OriginQueryParam))
	})
	return httptest.NewServer(mux)
}

type fakeStats struct {
	fail bool
}

var errProviderDown = errors.New("statbotics unreachable")

func epa(v float64) *float64 { return &v }

func (f fakeStats) EventTeamStats(_ context.Context, event string) ([]models.TeamStats, error) {
	if f.fail {
		return nil, errProviderDown
	}
	return []models.TeamStats{
		{Team: 100, EPATotal: epa(40)},
		{Team: 254, EPATotal: epa(61)},
		{Team: 971, EPATotal: epa(55)},
	}, nil
}

func (f fakeStats) TeamStats(_ context.Context, team int) (models.TeamStats, error) {
	if f.fail {
		return models.TeamStats{}, errProviderDown
	}
	return models.TeamStats{Team: team, EPATotal: epa(float64(team) / 10)}, nil
}

func (f fakeStats) TeamsStats(ctx context.Context, teams []int) ([]models.TeamStats, error) {
	out := make([]models.TeamStats, 0, len(teams))
	for _, team := range teams {
		s, err := f.TeamStats(ctx, team)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

type fakeMatches struct{ lastTeam, lastEvent string }

func (f *fakeMatches) TeamEventMatches(_ context.Context, teamKey, eventKey string) (json.RawMessage, error) {
	f.lastTeam, f.lastEvent = teamKey, eventKey
	return json.RawMessage(`[{"key":"` + eventKey + `_qm1"}]`), nil
}

type harness struct {
	// stopHub closes every room connection, like a server restart.
	stopHub context.CancelFunc
	hub     *realtime.Hub
	api     *sessionServer
	server  *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := realtime.NewHub(quiet, nil)
	go hub.Run(ctx)
	api := newSessionServer(hub)
	server := roomServer(hub, api)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &harness{stopHub: cancel, hub: hub, api: api, server: server}
}

// workspace opens a client with its own local file, like a separate machine.
func (h *harness) workspace(t *testing.T, name string, st scout.StatsProvider) *scout.Workspace {
	t.Helper()
	ctx := context.Background()
	local, err := persistence.OpenSQLiteLocalStore(ctx, filepath.Join(t.TempDir(), name+".sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	origin := name + "-window"
	ws, err := scout.New(scout.Options{
		Origin:        origin,
		Local:         local,
		Bus:           persistence.NewMemoryBus(),
		Sessions:      h.api,
		Channel:       realtime.NewChannel(h.server.URL, "", origin, realtime.WithChannelLogger(quiet)),
		Stats:         st,
		Matches:       &fakeMatches{},
		BridgeOptions: []persistence.BridgeOption{persistence.WithDebounce(testDebounce)},
		Logger:        quiet,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := ws.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ws.Close()
		local.Close()
	})
	return ws
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func teamsIn(state models.BoardState, tier models.TierKey) []int {
	out := []int{}
	for _, it := range state[tier].Items {
		out = append(out, it.Team)
	}
	return out
}
