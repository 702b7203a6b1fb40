package realtime

import (
	"log/slog"

	"github.com/Dosada05/alliance-board/models"
)

// NotifySessionUpdated broadcasts the persisted session to its room. origin
// is the window that wrote it, so that window can skip its own echo.
func (h *Hub) NotifySessionUpdated(session *models.Session, origin string) {
	msg, err := NewMessage(TypeSessionUpdated, session, origin)
	if err != nil {
		h.logger.Error("failed to encode session update", slog.String("session_id", session.ID), slog.Any("error", err))
		return
	}
	h.BroadcastToRoom(RoomForSession(session.ID), msg)
}
