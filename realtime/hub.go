package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/alliance-board/metrics"
	"github.com/Dosada05/alliance-board/models"
	"github.com/gorilla/websocket"
)

type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Room     string
	ID       string // origin id announced by the window
	IsClosed bool
	Mu       sync.Mutex
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Hub fans session messages out to the websocket clients of each room.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	done       chan struct{}
	logger     *slog.Logger
	metrics    *metrics.Manager
}

func NewHub(logger *slog.Logger, m *metrics.Manager) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
		logger:     logger,
		metrics:    m,
	}
}

// Run serves registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			h.logger.Info("client registered", slog.String("room", client.Room), slog.String("client_id", client.ID), slog.Int("room_clients", len(h.rooms[client.Room])))
			h.mu.Unlock()
			h.metrics.HubClientJoined()

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; ok {
				if _, okClient := h.rooms[client.Room][client]; okClient {
					client.close()
					delete(h.rooms[client.Room], client)
					if len(h.rooms[client.Room]) == 0 {
						delete(h.rooms, client.Room)
						h.logger.Info("room closed", slog.String("room", client.Room))
					} else {
						h.logger.Info("client unregistered", slog.String("room", client.Room), slog.Int("room_clients", len(h.rooms[client.Room])))
					}
					h.metrics.HubClientLeft()
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for room, clients := range h.rooms {
				for client := range clients {
					client.close()
					h.metrics.HubClientLeft()
				}
				delete(h.rooms, room)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Join registers c with the hub. It reports false once the hub has stopped.
func (h *Hub) Join(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Attach wraps an upgraded connection in a Client registered in room and
// starts its pumps.
func (h *Hub) Attach(conn *websocket.Conn, room, clientID string) bool {
	client := &Client{
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, 256),
		Room: room,
		ID:   clientID,
	}
	if !h.Join(client) {
		conn.Close()
		return false
	}
	go client.WritePump()
	go client.ReadPump()
	return true
}

func (h *Hub) leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of clients registered in roomID.
func (h *Hub) ClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// BroadcastToRoom отправляет сообщение всем клиентам в указанной комнате.
func (h *Hub) BroadcastToRoom(roomID string, message WebSocketMessage) {
	h.sendToRoom(roomID, message, nil)
}

// relay forwards a client's message to everyone else in its room.
func (h *Hub) relay(sender *Client, message WebSocketMessage) {
	h.sendToRoom(sender.Room, message, sender)
}

func (h *Hub) sendToRoom(roomID string, message WebSocketMessage, skip *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomClients, ok := h.rooms[roomID]
	if !ok {
		h.logger.Debug("no clients in room to broadcast to", slog.String("room", roomID))
		return
	}

	message.RoomID = roomID
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal room message", slog.String("room", roomID), slog.Any("error", err))
		return
	}

	h.metrics.HubMessage(message.Type)
	for client := range roomClients {
		if client == skip {
			continue
		}
		client.Mu.Lock()
		if client.IsClosed {
			client.Mu.Unlock()
			continue
		}
		select {
		case client.Send <- messageBytes:
		default:
			h.logger.Warn("client send buffer full, dropping message", slog.String("room", roomID), slog.String("client_id", client.ID))
		}
		client.Mu.Unlock()
	}
}

func (c *Client) close() {
	c.Mu.Lock()
	if !c.IsClosed {
		close(c.Send)
		c.IsClosed = true
	}
	c.Mu.Unlock()
}

// ReadPump reads drag presence frames from the client and relays them to the
// other members of the room. Anything else is ignored.
func (c *Client) ReadPump() {
	logger := c.Hub.logger.With(slog.String("room", c.Room), slog.String("client_id", c.ID))
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
		logger.Debug("client read pump closed")
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("unexpected websocket close", slog.Any("error", err))
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("ignoring malformed client frame", slog.Any("error", err))
			continue
		}
		if msg.Type != TypeDrag {
			logger.Debug("ignoring client frame", slog.String("type", msg.Type))
			continue
		}
		var presence models.DragPresence
		if err := json.Unmarshal(msg.Payload, &presence); err != nil || presence.ItemID == "" {
			logger.Warn("ignoring invalid drag frame")
			continue
		}
		msg.Origin = c.ID
		c.Hub.relay(c, msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per message: clients decode frames individually.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Warn("failed to write to client", slog.String("room", c.Room), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Hub.logger.Debug("failed to ping client", slog.String("room", c.Room), slog.Any("error", err))
				return
			}
		}
	}
}
