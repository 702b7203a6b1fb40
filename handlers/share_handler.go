package handlers

import (
	"net/http"

	"github.com/Dosada05/alliance-board/services"
	"github.com/go-chi/chi/v5"
)

type ShareHandler struct {
	shareService services.ShareService
}

func NewShareHandler(shareService services.ShareService) *ShareHandler {
	return &ShareHandler{shareService: shareService}
}

type shareRequest struct {
	Email string `json:"email"`
}

func (h *ShareHandler) ShareSession(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req shareRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	share, err := h.shareService.ShareSession(r.Context(), user, chi.URLParam(r, "sessionID"), req.Email)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, share, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ShareHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	shares, err := h.shareService.ListShares(r.Context(), user, chi.URLParam(r, "sessionID"))
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, shares, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
