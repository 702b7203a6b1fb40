package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/alliance-board/board"
	"github.com/Dosada05/alliance-board/metrics"
	"github.com/Dosada05/alliance-board/models"
)

var (
	ErrNotAttached   = errors.New("no active session")
	ErrBridgeStarted = errors.New("bridge already started")
)

// RemoteStore is the slice of the session store the bridge writes to.
type RemoteStore interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSessionData(ctx context.Context, id string, data models.BoardState, origin string) error
	UpdateSessionName(ctx context.Context, id, name, origin string) error
}

type pendingPush struct {
	sessionID string
	state     models.BoardState
	version   uint64
}

type BridgeOption func(*Bridge)

func WithDebounce(d time.Duration) BridgeOption {
	return func(b *Bridge) { b.interval = d }
}

func WithBridgeLogger(l *slog.Logger) BridgeOption {
	return func(b *Bridge) { b.logger = l }
}

func WithMetrics(m *metrics.Manager) BridgeOption {
	return func(b *Bridge) { b.metrics = m }
}

// Bridge connects the board store to durable local storage, to the other
// windows on the Bus and, while a session is attached, to the remote store.
//
// Changes caused by applying a remote snapshot are never pushed back.
type Bridge struct {
	store    *board.Store
	local    LocalStore
	bus      Bus
	remote   RemoteStore
	origin   string
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Manager

	debounce *Debouncer

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	sessionID string
	pending   *pendingPush
	lastSeen  uint64
	onRemote  []func(models.Session)
	unsubs    []func()
}

// NewBridge wires store to its collaborators. remote may be nil for an
// offline-only workspace.
func NewBridge(store *board.Store, local LocalStore, bus Bus, remote RemoteStore, origin string, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		store:    store,
		local:    local,
		bus:      bus,
		remote:   remote,
		origin:   origin,
		interval: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.debounce = NewDebouncer(b.interval, b.firePush)
	return b
}

// Start restores the board from local storage and begins observing the
// store and the bus. Pushes run under ctx.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrBridgeStarted
	}
	b.started = true
	b.ctx, b.cancel = context.WithCancel(ctx)
	b.mu.Unlock()

	if err := b.restore(ctx); err != nil {
		return err
	}

	unsubStore := b.store.Subscribe(b.observe)
	var unsubBus func()
	if b.bus != nil {
		unsubBus = b.bus.Subscribe(b.origin, b.handleStorageEvent)
	}

	b.mu.Lock()
	b.lastSeen = b.store.Version()
	b.unsubs = append(b.unsubs, unsubStore)
	if unsubBus != nil {
		b.unsubs = append(b.unsubs, unsubBus)
	}
	b.mu.Unlock()
	return nil
}

// Close stops observing and drops any scheduled push.
func (b *Bridge) Close() {
	b.debounce.Stop()
	b.mu.Lock()
	unsubs := b.unsubs
	b.unsubs = nil
	b.pending = nil
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

func (b *Bridge) restore(ctx context.Context) error {
	raw, err := b.local.Get(ctx, KeyBoardData)
	if errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore board: %w", err)
	}
	var saved models.BoardState
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		b.logger.Warn("discarding unreadable saved board", slog.Any("error", err))
		return nil
	}
	b.store.ReplaceAllFrom(board.Merge(models.DefaultBoard(), board.Sanitize(saved)), board.CauseRestore)
	return nil
}

// Attach makes sessionID the push target. A push still scheduled for a
// previous session is dropped.
func (b *Bridge) Attach(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessionID != sessionID {
		b.dropPendingLocked()
	}
	b.sessionID = sessionID
}

// Detach stops pushing. Local persistence continues.
func (b *Bridge) Detach() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropPendingLocked()
	b.sessionID = ""
}

func (b *Bridge) dropPendingLocked() {
	if b.pending == nil {
		return
	}
	b.logger.Info("dropping push for inactive session", slog.String("session_id", b.pending.sessionID))
	b.metrics.PushCompleted(metrics.PushStale)
	b.pending = nil
	b.debounce.Cancel()
}

// SessionID returns the attached session, or "".
func (b *Bridge) SessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

// OnRemoteChange registers cb for session snapshots received from the
// remote store.
func (b *Bridge) OnRemoteChange(cb func(models.Session)) {
	b.mu.Lock()
	b.onRemote = append(b.onRemote, cb)
	b.mu.Unlock()
}

// Pull fetches the persisted session.
func (b *Bridge) Pull(ctx context.Context, sessionID string) (*models.Session, error) {
	if b.remote == nil {
		return nil, ErrNotAttached
	}
	session, err := b.remote.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ApplyRemote replaces the board with state unless it already matches. It
// reports whether the board changed. The resulting change is not pushed.
func (b *Bridge) ApplyRemote(state models.BoardState) bool {
	incoming := board.Merge(models.DefaultBoard(), board.Sanitize(state))
	if board.Equal(b.store.Snapshot(), incoming) {
		b.metrics.RemoteChange(false)
		return false
	}
	b.store.ReplaceAllFrom(incoming, board.CauseRemote)
	b.metrics.RemoteChange(true)
	return true
}

// HandleRemote applies a row change notification for the attached session.
func (b *Bridge) HandleRemote(session models.Session) {
	b.mu.Lock()
	active := b.sessionID
	callbacks := append([]func(models.Session){}, b.onRemote...)
	b.mu.Unlock()

	if session.ID != active {
		b.logger.Debug("ignoring change for inactive session", slog.String("session_id", session.ID))
		return
	}
	if session.Data != nil {
		b.ApplyRemote(session.Data)
	}
	for _, cb := range callbacks {
		cb(session)
	}
}

// Push schedules state for the attached session after the quiet interval.
func (b *Bridge) Push(state models.BoardState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scheduleLocked(state.Clone(), b.lastSeen)
}

func (b *Bridge) scheduleLocked(state models.BoardState, version uint64) {
	if b.sessionID == "" || b.remote == nil {
		return
	}
	if b.pending != nil && b.pending.sessionID == b.sessionID && b.pending.version > version {
		return
	}
	b.pending = &pendingPush{sessionID: b.sessionID, state: state, version: version}
	b.debounce.Trigger()
}

// Flush sends a scheduled push now instead of waiting for the interval.
func (b *Bridge) Flush() bool {
	return b.debounce.Flush()
}

// Pending reports whether a push is scheduled.
func (b *Bridge) Pending() bool {
	return b.debounce.Pending()
}

// SaveNow pushes the current board immediately, replacing any scheduled push.
func (b *Bridge) SaveNow(ctx context.Context) error {
	b.mu.Lock()
	sessionID := b.sessionID
	b.pending = nil
	b.mu.Unlock()
	b.debounce.Cancel()

	if sessionID == "" || b.remote == nil {
		return ErrNotAttached
	}
	if err := b.remote.UpdateSessionData(ctx, sessionID, b.store.Snapshot(), b.origin); err != nil {
		b.metrics.PushCompleted(metrics.PushError)
		return err
	}
	b.metrics.PushCompleted(metrics.PushOK)
	return nil
}

// PushName sends a session rename right away; names are not debounced.
func (b *Bridge) PushName(ctx context.Context, name string) error {
	sessionID := b.SessionID()
	if sessionID == "" || b.remote == nil {
		return ErrNotAttached
	}
	if err := b.remote.UpdateSessionName(ctx, sessionID, name, b.origin); err != nil {
		return fmt.Errorf("rename session %s: %w", sessionID, err)
	}
	return nil
}

// SetEventCode stores the event code and tells the other windows.
func (b *Bridge) SetEventCode(ctx context.Context, code string) error {
	if err := b.local.Set(ctx, KeyEventCode, code); err != nil {
		return err
	}
	if b.bus != nil {
		b.bus.Publish(StorageEvent{Key: KeyEventCode, NewValue: code, Origin: b.origin})
	}
	return nil
}

// EventCode returns the stored event code, or "" when none was saved.
func (b *Bridge) EventCode(ctx context.Context) (string, error) {
	code, err := b.local.Get(ctx, KeyEventCode)
	if errors.Is(err, ErrKeyNotFound) {
		return "", nil
	}
	return code, err
}

func (b *Bridge) observe(change board.Change) {
	b.mu.Lock()
	if change.Version <= b.lastSeen {
		// a newer change was already handled
		b.mu.Unlock()
		return
	}
	b.lastSeen = change.Version
	ctx := b.ctx

	var raw []byte
	if change.Cause != board.CauseLocalSync && change.Cause != board.CauseRestore {
		var err error
		raw, err = json.Marshal(change.State)
		if err != nil {
			b.logger.Error("failed to encode board", slog.Any("error", err))
		} else if err := b.local.Set(ctx, KeyBoardData, string(raw)); err != nil {
			b.logger.Error("failed to save board locally", slog.Any("error", err))
		}
	}

	switch change.Cause {
	case board.CauseRemote:
		// the remote snapshot supersedes whatever was waiting to go out
		if b.pending != nil {
			b.pending = nil
			b.debounce.Cancel()
		}
		b.metrics.EchoSuppressed()
	case board.CauseRestore:
	default:
		b.scheduleLocked(change.State, change.Version)
	}
	b.mu.Unlock()

	if raw != nil && b.bus != nil {
		b.bus.Publish(StorageEvent{Key: KeyBoardData, NewValue: string(raw), Origin: b.origin})
	}
}

func (b *Bridge) handleStorageEvent(ev StorageEvent) {
	if ev.Key != KeyBoardData {
		return
	}
	var incoming models.BoardState
	if err := json.Unmarshal([]byte(ev.NewValue), &incoming); err != nil {
		b.logger.Warn("ignoring unreadable board from another window", slog.String("origin", ev.Origin), slog.Any("error", err))
		return
	}
	current := b.store.Snapshot()
	merged := board.Merge(current, board.Sanitize(incoming))
	if board.Equal(current, merged) {
		return
	}
	b.store.ReplaceAllFrom(merged, board.CauseLocalSync)
	b.metrics.LocalSyncMerged()
}

func (b *Bridge) firePush() {
	b.mu.Lock()
	p := b.pending
	b.pending = nil
	active := b.sessionID
	ctx := b.ctx
	b.mu.Unlock()

	if p == nil {
		return
	}
	logger := b.logger.With(slog.String("session_id", p.sessionID), slog.Uint64("version", p.version))
	if p.sessionID != active {
		logger.Info("discarding push for inactive session")
		b.metrics.PushCompleted(metrics.PushStale)
		return
	}

	if err := b.remote.UpdateSessionData(ctx, p.sessionID, p.state, b.origin); err != nil {
		logger.Error("failed to push board", slog.Any("error", err))
		b.metrics.PushCompleted(metrics.PushError)
		return
	}
	if b.SessionID() != p.sessionID {
		logger.Info("push completed after leaving session, ignoring response")
		b.metrics.PushCompleted(metrics.PushStale)
		return
	}
	b.metrics.PushCompleted(metrics.PushOK)
}
