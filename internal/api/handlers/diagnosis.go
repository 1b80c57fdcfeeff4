package handlers

import (
	"context"
	"net/http"

	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
)

// DiagnosisService runs one analysis. *diagnosis.Service satisfies it.
type DiagnosisService interface {
	Analyze(ctx context.Context, in diagnosis.Input) (*diagnosis.Diagnosis, error)
	Limits() diagnosis.Limits
}

type DiagnosisHandler struct {
	service DiagnosisService
	bundle  *i18n.Bundle
}

func NewDiagnosisHandler(service DiagnosisService, bundle *i18n.Bundle) *DiagnosisHandler {
	return &DiagnosisHandler{service: service, bundle: bundle}
}

// Create handles POST /api/v1/diagnoses.
func (h *DiagnosisHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(w, r, h.service.Limits())
	if err != nil {
		status, key := statusAndKey(err)
		writeError(w, r, h.bundle, status, key)
		return
	}

	d, err := h.service.Analyze(r.Context(), in)
	if err != nil {
		status, key := statusAndKey(err)
		writeError(w, r, h.bundle, status, key)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
