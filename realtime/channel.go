package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/alliance-board/models"
	"github.com/gorilla/websocket"
)

var (
	ErrJoinFailed = errors.New("failed to join session channel")
	ErrNotJoined  = errors.New("not joined to a session")
)

// ChangeHandler receives persisted snapshots of the joined session.
type ChangeHandler func(session models.Session)

// DragHandler receives drag presence broadcasts from peers.
type DragHandler func(presence models.DragPresence)

// DisconnectHandler is told when the server drops a joined session. It is
// not called for Leave.
type DisconnectHandler func(sessionID string, err error)

type ChannelOption func(*Channel)

func WithDialer(d *websocket.Dialer) ChannelOption {
	return func(c *Channel) { c.dialer = d }
}

func WithChannelLogger(l *slog.Logger) ChannelOption {
	return func(c *Channel) { c.logger = l }
}

// Channel is the client side of a session room. At most one session is
// joined at a time.
//
// Handlers run on the channel's read goroutine and must not call Join or
// Leave.
type Channel struct {
	baseURL string
	token   string
	origin  string
	dialer  *websocket.Dialer
	logger  *slog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	readDone  chan struct{}
	onChange  ChangeHandler
	onDrag    DragHandler
	onDrop    DisconnectHandler

	writeMu sync.Mutex

	dragMu     sync.RWMutex
	remoteDrag models.RemoteDragState
}

// NewChannel creates a channel for the server at baseURL (http or https).
// origin identifies this window in relayed messages.
func NewChannel(baseURL, token, origin string, opts ...ChannelOption) *Channel {
	c := &Channel{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		origin:     origin,
		dialer:     websocket.DefaultDialer,
		logger:     slog.Default(),
		remoteDrag: make(models.RemoteDragState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) Origin() string { return c.origin }

func (c *Channel) OnChange(h ChangeHandler) {
	c.mu.Lock()
	c.onChange = h
	c.mu.Unlock()
}

func (c *Channel) OnDrag(h DragHandler) {
	c.mu.Lock()
	c.onDrag = h
	c.mu.Unlock()
}

func (c *Channel) OnDisconnect(h DisconnectHandler) {
	c.mu.Lock()
	c.onDrop = h
	c.mu.Unlock()
}

// SessionID returns the joined session, or "" when not joined.
func (c *Channel) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Join subscribes to sessionID, leaving any previously joined session first.
func (c *Channel) Join(ctx context.Context, sessionID string) error {
	c.Leave()
	if sessionID == "" {
		return fmt.Errorf("%w: empty session id", ErrJoinFailed)
	}

	target, err := c.roomURL(sessionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJoinFailed, err)
	}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, resp, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: %s: status %d", ErrJoinFailed, sessionID, resp.StatusCode)
		}
		return fmt.Errorf("%w: %s: %v", ErrJoinFailed, sessionID, err)
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.conn = conn
	c.sessionID = sessionID
	c.readDone = done
	c.mu.Unlock()

	go c.readLoop(conn, sessionID, done)
	c.logger.Info("joined session channel", slog.String("session_id", sessionID))
	return nil
}

// Leave tears down the joined session. No handler runs after Leave returns.
func (c *Channel) Leave() {
	c.mu.Lock()
	conn, done, sessionID := c.conn, c.readDone, c.sessionID
	c.conn, c.readDone, c.sessionID = nil, nil, ""
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		conn.Close()
		<-done
		c.logger.Info("left session channel", slog.String("session_id", sessionID))
	}

	c.dragMu.Lock()
	c.remoteDrag = make(models.RemoteDragState)
	c.dragMu.Unlock()
}

// SendDrag broadcasts drag presence for itemID to the other room members.
func (c *Channel) SendDrag(itemID string, dragging bool) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotJoined
	}

	msg, err := NewMessage(TypeDrag, models.DragPresence{ItemID: itemID, IsDragging: dragging}, c.origin)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send drag presence: %w", err)
	}
	return nil
}

// RemoteDragState returns a copy of the items peers are currently dragging.
func (c *Channel) RemoteDragState() models.RemoteDragState {
	c.dragMu.RLock()
	defer c.dragMu.RUnlock()
	out := make(models.RemoteDragState, len(c.remoteDrag))
	for id, dragging := range c.remoteDrag {
		out[id] = dragging
	}
	return out
}

func (c *Channel) readLoop(conn *websocket.Conn, sessionID string, done chan struct{}) {
	defer close(done)
	logger := c.logger.With(slog.String("session_id", sessionID))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// presence does not survive a dropped connection
			c.dragMu.Lock()
			c.remoteDrag = make(models.RemoteDragState)
			c.dragMu.Unlock()
			c.dropped(logger, conn, sessionID, err)
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("ignoring malformed frame", slog.Any("error", err))
			continue
		}
		c.dispatch(logger, sessionID, msg)
	}
}

// dropped clears the joined state when conn was closed by anything other
// than Leave, then reports it.
func (c *Channel) dropped(logger *slog.Logger, conn *websocket.Conn, sessionID string, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn, c.readDone, c.sessionID = nil, nil, ""
	onDrop := c.onDrop
	c.mu.Unlock()

	conn.Close()
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, net.ErrClosed) {
		logger.Warn("session channel closed by server", slog.Any("error", err))
	} else {
		logger.Error("session channel lost", slog.Any("error", err))
	}
	if onDrop != nil {
		onDrop(sessionID, err)
	}
}

func (c *Channel) dispatch(logger *slog.Logger, sessionID string, msg WebSocketMessage) {
	c.mu.Lock()
	onChange, onDrag := c.onChange, c.onDrag
	c.mu.Unlock()

	switch msg.Type {
	case TypeSessionUpdated:
		if msg.Origin != "" && msg.Origin == c.origin {
			return
		}
		var session models.Session
		if err := json.Unmarshal(msg.Payload, &session); err != nil {
			logger.Warn("ignoring invalid session update", slog.Any("error", err))
			return
		}
		if session.ID != sessionID {
			return
		}
		if onChange != nil {
			onChange(session)
		}

	case TypeDrag:
		var presence models.DragPresence
		if err := json.Unmarshal(msg.Payload, &presence); err != nil || presence.ItemID == "" {
			logger.Warn("ignoring invalid drag presence")
			return
		}
		c.dragMu.Lock()
		c.remoteDrag[presence.ItemID] = presence.IsDragging
		c.dragMu.Unlock()
		if onDrag != nil {
			onDrag(presence)
		}

	default:
		logger.Debug("ignoring frame", slog.String("type", msg.Type))
	}
}

func (c *Channel) roomURL(sessionID string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/sessions/" + url.PathEscape(sessionID)
	q := u.Query()
	q.Set(OriginQueryParam, c.origin)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
