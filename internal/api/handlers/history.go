package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/cropdoctor/internal/domain/history"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
)

// HistoryStore reads stored diagnoses. *history.Store satisfies it.
type HistoryStore interface {
	List(ctx context.Context, limit int) ([]history.Record, error)
	Get(ctx context.Context, id string) (history.Record, error)
}

type HistoryHandler struct {
	store  HistoryStore
	bundle *i18n.Bundle
}

func NewHistoryHandler(store HistoryStore, bundle *i18n.Bundle) *HistoryHandler {
	return &HistoryHandler{store: store, bundle: bundle}
}

type listHistoryResponse struct {
	Data []history.Record `json:"data"`
	Meta listMeta         `json:"meta"`
}

type listMeta struct {
	Limit int `json:"limit"`
	Count int `json:"count"`
}

// List handles GET /api/v1/diagnoses.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, history.DefaultListLimit, history.MaxListLimit)
	records, err := h.store.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.bundle, http.StatusInternalServerError, "errorUnknown")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, listHistoryResponse{
		Data: records,
		Meta: listMeta{Limit: limit, Count: len(records)},
	})
}

// Get handles GET /api/v1/diagnoses/{id}.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, r, h.bundle, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		writeError(w, r, h.bundle, http.StatusInternalServerError, "errorUnknown")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
