package handlers

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Dosada05/alliance-board/realtime"
	"github.com/Dosada05/alliance-board/services"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub            *realtime.Hub
	sessionService services.SessionService
	upgrader       websocket.Upgrader
	logger         *slog.Logger
}

// NewWebSocketHandler пускает браузеры только с allowedOrigins ("*" пускает
// всех). Клиенты вне браузера не шлют Origin и допускаются.
func NewWebSocketHandler(hub *realtime.Hub, sessionService services.SessionService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub:            hub,
		sessionService: sessionService,
		logger:         logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed["*"] {
					return true
				}
				if allowed[origin] {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
	}
}

// ServeWs подключает окно к комнате сессии: /ws/sessions/{sessionID}?origin=<window id>
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	// Без доступа к строке нет доступа и к комнате.
	if _, err := h.sessionService.GetSession(r.Context(), user, sessionID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту
		h.logger.Warn("websocket upgrade failed", slog.String("session_id", sessionID), slog.Any("error", err))
		return
	}

	room := realtime.RoomForSession(sessionID)
	origin := r.URL.Query().Get(realtime.OriginQueryParam)
	if !h.hub.Attach(conn, room, origin) {
		h.logger.Warn("hub stopped, dropping websocket", slog.String("room", room))
		return
	}
	h.logger.Debug("websocket attached", slog.String("room", room), slog.String("user_id", user.ID), slog.String("origin", origin))
}
