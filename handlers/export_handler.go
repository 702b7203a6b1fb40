package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Dosada05/alliance-board/board"
	"github.com/Dosada05/alliance-board/services"
	"github.com/Dosada05/alliance-board/storage"
	"github.com/go-chi/chi/v5"
)

type ExportHandler struct {
	sessionService services.SessionService
	uploader       storage.FileUploader
	now            func() time.Time
}

// NewExportHandler создаёт обработчик. uploader равен nil, если объектное
// хранилище не настроено; тогда архивирование отвечает 503.
func NewExportHandler(sessionService services.SessionService, uploader storage.FileUploader) *ExportHandler {
	return &ExportHandler{sessionService: sessionService, uploader: uploader, now: time.Now}
}

func (h *ExportHandler) ExportSession(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	session, err := h.sessionService.GetSession(r.Context(), user, chi.URLParam(r, "sessionID"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := board.Export(&buf, session.Data); err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "alliance-"+session.ID+".json"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ArchiveSession загружает доску в объектное хранилище. Тело необязательно:
// {"replace": "<key>"} удаляет прежний архив той же сессии после загрузки.
func (h *ExportHandler) ArchiveSession(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if h.uploader == nil {
		serviceUnavailableResponse(w, r, "export storage is not configured")
		return
	}

	var input struct {
		Replace string `json:"replace"`
	}
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	session, err := h.sessionService.GetSession(r.Context(), user, chi.URLParam(r, "sessionID"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{}
	var result *storage.UploadResult
	if input.Replace == "" {
		result, err = storage.ArchiveSession(r.Context(), h.uploader, session, h.now())
	} else {
		result, err = storage.ReplaceArchive(r.Context(), h.uploader, session, h.now(), input.Replace)
		response["replaced"] = err == nil
	}
	switch {
	case errors.Is(err, storage.ErrForeignArchive):
		failedValidationResponse(w, r, map[string]string{"replace": err.Error()})
		return
	case err != nil && result == nil:
		serverErrorResponse(w, r, err)
		return
	case err != nil:
		// новый архив уже загружен, старый остался
		slog.Default().Warn("failed to delete previous archive",
			slog.String("session_id", session.ID), slog.String("key", input.Replace), slog.Any("error", err))
	}

	response["key"] = result.Key
	response["url"] = result.Location
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
