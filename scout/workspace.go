// Package scout assembles a scouting workspace: the board, its local and
// remote persistence, the realtime room and the statistics providers.
package scout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/Dosada05/alliance-board/board"
	"github.com/Dosada05/alliance-board/metrics"
	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/persistence"
	"github.com/Dosada05/alliance-board/realtime"
	"github.com/Dosada05/alliance-board/remote"
	"github.com/Dosada05/alliance-board/stats"
	"github.com/Dosada05/alliance-board/utils"
)

const createAttempts = 3

var (
	ErrOffline       = errors.New("no session server configured")
	ErrNoSession     = errors.New("not joined to a session")
	ErrNoEvent       = errors.New("no event loaded")
	ErrJoinFailed    = errors.New("failed to join session")
	ErrCreateFailed  = errors.New("failed to create session")
	ErrStatsDisabled = errors.New("no statistics provider configured")
)

// SessionAPI is the remote session store.
type SessionAPI interface {
	persistence.RemoteStore
	CreateSession(ctx context.Context, id, eventCode, name string, data models.BoardState) (*models.Session, error)
	ListSessions(ctx context.Context) ([]models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	ShareSession(ctx context.Context, id, email string) (*models.Share, error)
	ListShares(ctx context.Context, id string) ([]models.Share, error)
}

// Channel is the realtime room of the joined session.
type Channel interface {
	Join(ctx context.Context, sessionID string) error
	Leave()
	SendDrag(itemID string, dragging bool) error
	RemoteDragState() models.RemoteDragState
	OnChange(h realtime.ChangeHandler)
	OnDisconnect(h realtime.DisconnectHandler)
}

type StatsProvider interface {
	EventTeamStats(ctx context.Context, eventCode string) ([]models.TeamStats, error)
	TeamStats(ctx context.Context, team int) (models.TeamStats, error)
	TeamsStats(ctx context.Context, teams []int) ([]models.TeamStats, error)
}

type MatchProvider interface {
	TeamEventMatches(ctx context.Context, teamKey, eventKey string) (json.RawMessage, error)
}

type Options struct {
	// Origin identifies this window in storage events and room broadcasts.
	Origin string

	Local    persistence.LocalStore
	Bus      persistence.Bus
	Sessions SessionAPI
	Channel  Channel
	Stats    StatsProvider
	Matches  MatchProvider

	BridgeOptions []persistence.BridgeOption
	Logger        *slog.Logger
	Metrics       *metrics.Manager
}

// SessionInfo describes the joined session.
type SessionInfo struct {
	ID        string
	Name      string
	OwnerID   string
	EventCode string
}

type Workspace struct {
	origin   string
	store    *board.Store
	drag     *board.DragEngine
	bridge   *persistence.Bridge
	sessions SessionAPI
	channel  Channel
	stats    StatsProvider
	matches  MatchProvider
	logger   *slog.Logger

	mu      sync.Mutex
	session *SessionInfo
	online  bool
}

func New(opts Options) (*Workspace, error) {
	if opts.Local == nil {
		return nil, errors.New("scout: local store is required")
	}
	if opts.Origin == "" {
		return nil, errors.New("scout: origin is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Workspace{
		origin:   opts.Origin,
		store:    board.NewStore(models.DefaultBoard()),
		sessions: opts.Sessions,
		channel:  opts.Channel,
		stats:    opts.Stats,
		matches:  opts.Matches,
		logger:   logger.With(slog.String("origin", opts.Origin)),
	}

	var remoteStore persistence.RemoteStore
	if opts.Sessions != nil {
		remoteStore = opts.Sessions
	}
	bridgeOpts := append([]persistence.BridgeOption{
		persistence.WithBridgeLogger(w.logger),
		persistence.WithMetrics(opts.Metrics),
	}, opts.BridgeOptions...)
	w.bridge = persistence.NewBridge(w.store, opts.Local, opts.Bus, remoteStore, opts.Origin, bridgeOpts...)
	w.drag = board.NewDragEngine(w.store, w)

	if w.channel != nil {
		w.channel.OnChange(w.bridge.HandleRemote)
		w.channel.OnDisconnect(w.channelDropped)
	}
	w.bridge.OnRemoteChange(w.rememberRemote)
	return w, nil
}

// Start restores the saved board and begins syncing.
func (w *Workspace) Start(ctx context.Context) error {
	return w.bridge.Start(ctx)
}

// Close sends a scheduled push, leaves the room and stops syncing.
func (w *Workspace) Close() {
	w.bridge.Flush()
	w.LeaveSession()
	w.bridge.Close()
}

func (w *Workspace) Origin() string           { return w.origin }
func (w *Workspace) Store() *board.Store      { return w.store }
func (w *Workspace) Drag() *board.DragEngine  { return w.drag }
func (w *Workspace) Board() models.BoardState { return w.store.Snapshot() }

// Session returns the joined session and whether the workspace is online.
func (w *Workspace) Session() (SessionInfo, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil {
		return SessionInfo{}, false
	}
	return *w.session, w.online
}

func (w *Workspace) EventCode(ctx context.Context) (string, error) {
	return w.bridge.EventCode(ctx)
}

// LoadEvent fetches the teams of an event and puts them all in the pool,
// emptying the tiers. A failed fetch leaves the board untouched.
func (w *Workspace) LoadEvent(ctx context.Context, eventCode string) (int, error) {
	if w.stats == nil {
		return 0, ErrStatsDisabled
	}
	eventCode = strings.ToLower(strings.TrimSpace(eventCode))
	teams, err := w.stats.EventTeamStats(ctx, eventCode)
	if err != nil {
		return 0, err
	}

	items := make([]models.Item, 0, len(teams))
	for _, t := range teams {
		items = append(items, models.NewItem(t))
	}
	if err := w.bridge.SetEventCode(ctx, eventCode); err != nil {
		return 0, fmt.Errorf("save event code: %w", err)
	}
	w.store.ResetWithPool(items)
	w.logger.Info("event loaded", slog.String("event", eventCode), slog.Int("teams", len(items)))
	return len(items), nil
}

// AddTeam fetches a team's stats and places it at the end of tier, removing
// it from wherever it was.
func (w *Workspace) AddTeam(ctx context.Context, team int, tier models.TierKey) error {
	if w.stats == nil {
		return ErrStatsDisabled
	}
	s, err := w.stats.TeamStats(ctx, team)
	if err != nil {
		return err
	}
	return w.store.AddItem(models.NewItem(s), tier)
}

// MoveTeam puts team at index of tier (clamped).
func (w *Workspace) MoveTeam(team int, tier models.TierKey, index int) error {
	itemID := models.ItemID(team)
	state := w.store.Snapshot()
	from, ok := board.FindContainer(state, itemID)
	if !ok || models.TierKey(itemID) == from {
		return fmt.Errorf("%w: %s", board.ErrItemNotFound, itemID)
	}
	return w.store.MoveAcrossTiers(from, tier, itemID, index)
}

func (w *Workspace) RenameTier(tier models.TierKey, name, description string) error {
	return w.store.UpdateTierMeta(tier, name, description)
}

// CreateSession stores the current board under a fresh id and joins it.
func (w *Workspace) CreateSession(ctx context.Context, name string) (string, error) {
	if w.sessions == nil {
		return "", ErrOffline
	}
	if strings.TrimSpace(name) == "" {
		name = models.DefaultSessionName
	}
	eventCode, err := w.bridge.EventCode(ctx)
	if err != nil {
		return "", err
	}

	var created *models.Session
	for attempt := 1; attempt <= createAttempts; attempt++ {
		id, err := utils.NewSessionID()
		if err != nil {
			return "", err
		}
		created, err = w.sessions.CreateSession(ctx, id, eventCode, name, w.store.Snapshot())
		if err == nil {
			break
		}
		if !errors.Is(err, remote.ErrSessionIDConflict) || attempt == createAttempts {
			return "", fmt.Errorf("%w: %w", ErrCreateFailed, err)
		}
		w.logger.Debug("session id taken, retrying", slog.String("session_id", id), slog.Int("attempt", attempt))
	}

	if err := w.JoinSession(ctx, created.ID); err != nil {
		return created.ID, err
	}
	return created.ID, nil
}

// JoinSession leaves the current session, subscribes to id and replaces the
// board with the stored one. On error the workspace stays offline.
func (w *Workspace) JoinSession(ctx context.Context, id string) error {
	if w.sessions == nil || w.channel == nil {
		return ErrOffline
	}
	w.LeaveSession()

	if !utils.IsValidSessionID(id) {
		return fmt.Errorf("%w: invalid session id %q", ErrJoinFailed, id)
	}

	// Attach before subscribing so that changes racing the initial load apply.
	w.bridge.Attach(id)
	if err := w.channel.Join(ctx, id); err != nil {
		w.bridge.Detach()
		return fmt.Errorf("%w: %w", ErrJoinFailed, err)
	}

	session, err := w.bridge.Pull(ctx, id)
	if err != nil {
		w.channel.Leave()
		w.bridge.Detach()
		return fmt.Errorf("%w: %w", ErrJoinFailed, err)
	}
	if session.Data != nil {
		w.bridge.ApplyRemote(session.Data)
	}
	if session.EventCode != "" {
		if err := w.bridge.SetEventCode(ctx, session.EventCode); err != nil {
			w.logger.Warn("failed to save event code", slog.Any("error", err))
		}
	}

	name := session.Name
	if name == "" {
		name = models.DefaultSessionName
	}
	w.mu.Lock()
	w.session = &SessionInfo{ID: session.ID, Name: name, OwnerID: session.OwnerID, EventCode: session.EventCode}
	w.online = true
	w.mu.Unlock()

	w.logger.Info("joined session", slog.String("session_id", id))
	return nil
}

// LeaveSession unsubscribes and stops pushing. The board stays as it is.
func (w *Workspace) LeaveSession() {
	if w.channel != nil {
		w.channel.Leave()
	}
	w.bridge.Detach()

	w.mu.Lock()
	left := w.session
	w.session = nil
	w.online = false
	w.mu.Unlock()

	if left != nil {
		w.logger.Info("left session", slog.String("session_id", left.ID))
	}
}

// channelDropped takes the workspace offline when the server closes the room
// of the joined session. The board is kept.
func (w *Workspace) channelDropped(sessionID string, err error) {
	w.mu.Lock()
	if w.session == nil || w.session.ID != sessionID {
		w.mu.Unlock()
		return
	}
	w.session = nil
	w.online = false
	w.mu.Unlock()

	w.bridge.Detach()
	w.logger.Warn("session connection lost", slog.String("session_id", sessionID), slog.Any("error", err))
}

// SaveSession pushes the board and name right away.
func (w *Workspace) SaveSession(ctx context.Context) error {
	info, online := w.Session()
	if !online {
		return ErrNoSession
	}
	if err := w.bridge.SaveNow(ctx); err != nil {
		return err
	}
	return w.bridge.PushName(ctx, info.Name)
}

// SetSessionName renames the joined session; the rename is sent at once.
func (w *Workspace) SetSessionName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = models.DefaultSessionName
	}
	w.mu.Lock()
	if w.session == nil || !w.online {
		w.mu.Unlock()
		return ErrNoSession
	}
	w.session.Name = name
	w.mu.Unlock()
	return w.bridge.PushName(ctx, name)
}

// ShareSession grants email access to the joined session. Duplicate and
// unknown recipients come back as remote.ErrShareConflict and
// remote.ErrShareRecipientUnknown.
func (w *Workspace) ShareSession(ctx context.Context, email string) error {
	id, err := w.activeID()
	if err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is empty", remote.ErrInvalidRequest)
	}
	_, err = w.sessions.ShareSession(ctx, id, email)
	return err
}

// SharedUsers lists the emails the joined session is shared with.
func (w *Workspace) SharedUsers(ctx context.Context) ([]string, error) {
	id, err := w.activeID()
	if err != nil {
		return nil, err
	}
	shares, err := w.sessions.ListShares(ctx, id)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(shares))
	for _, s := range shares {
		emails = append(emails, s.UserEmail)
	}
	return emails, nil
}

// LoadSessions lists the sessions visible to the user, newest first.
func (w *Workspace) LoadSessions(ctx context.Context) ([]models.Session, error) {
	if w.sessions == nil {
		return nil, ErrOffline
	}
	return w.sessions.ListSessions(ctx)
}

// DeleteSession removes a session the user owns, leaving it first if joined.
func (w *Workspace) DeleteSession(ctx context.Context, id string) error {
	if w.sessions == nil {
		return ErrOffline
	}
	if info, _ := w.Session(); info.ID == id {
		w.LeaveSession()
	}
	return w.sessions.DeleteSession(ctx, id)
}

// BroadcastDrag tells the room that itemID is (no longer) being dragged.
// Offline it does nothing.
func (w *Workspace) BroadcastDrag(itemID string, dragging bool) {
	if _, online := w.Session(); !online || w.channel == nil {
		return
	}
	if err := w.channel.SendDrag(itemID, dragging); err != nil {
		w.logger.Debug("drag broadcast dropped", slog.String("item_id", itemID), slog.Any("error", err))
	}
}

// RemoteDragState returns which items peers are dragging.
func (w *Workspace) RemoteDragState() models.RemoteDragState {
	if w.channel == nil {
		return models.RemoteDragState{}
	}
	return w.channel.RemoteDragState()
}

func (w *Workspace) Export(out io.Writer) error {
	return board.Export(out, w.store.Snapshot())
}

// Import replaces the whole board with a document. A malformed document is
// rejected and the board is left as it was.
func (w *Workspace) Import(in io.Reader) error {
	state, err := board.Import(in)
	if err != nil {
		return err
	}
	w.store.ReplaceAll(state)
	return nil
}

func (w *Workspace) TeamStats(ctx context.Context, team int) (models.TeamStats, error) {
	if w.stats == nil {
		return models.TeamStats{}, ErrStatsDisabled
	}
	return w.stats.TeamStats(ctx, team)
}

// TeamsStats looks several teams up at once, in the order given. Any failure
// fails the whole lookup.
func (w *Workspace) TeamsStats(ctx context.Context, teams []int) ([]models.TeamStats, error) {
	if w.stats == nil {
		return nil, ErrStatsDisabled
	}
	return w.stats.TeamsStats(ctx, teams)
}

// TeamEventMatches returns the team's matches at the loaded event. Provider
// failures give an empty list together with the error.
func (w *Workspace) TeamEventMatches(ctx context.Context, team int) (json.RawMessage, error) {
	if w.matches == nil {
		return json.RawMessage("[]"), ErrStatsDisabled
	}
	eventCode, err := w.bridge.EventCode(ctx)
	if err != nil {
		return json.RawMessage("[]"), err
	}
	if eventCode == "" {
		return json.RawMessage("[]"), ErrNoEvent
	}
	return w.matches.TeamEventMatches(ctx, stats.TeamKey(team), eventCode)
}

// OnRemoteChange registers cb for snapshots of the joined session received
// from other clients. It runs after the board has been updated.
func (w *Workspace) OnRemoteChange(cb func(models.Session)) {
	w.bridge.OnRemoteChange(cb)
}

// Flush sends a scheduled board push now.
func (w *Workspace) Flush() bool {
	return w.bridge.Flush()
}

func (w *Workspace) activeID() (string, error) {
	info, online := w.Session()
	if !online || w.sessions == nil {
		return "", ErrNoSession
	}
	return info.ID, nil
}

// rememberRemote keeps the session name in step with renames made elsewhere.
func (w *Workspace) rememberRemote(s models.Session) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.session == nil || w.session.ID != s.ID || s.Name == "" {
		return
	}
	w.session.Name = s.Name
}
