package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/domain/history"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/logger"
	"github.com/matiasleandrokruk/cropdoctor/internal/web"
)

// Renderer renders HTML pages. *web.Renderer satisfies it.
type Renderer interface {
	Render(w http.ResponseWriter, status int, page web.Page, data web.Data) error
}

// PagesHandler serves the browser flow: landing, form, result, history.
type PagesHandler struct {
	service  DiagnosisService
	renderer Renderer
	history  HistoryStore
	log      logger.Logger
}

// NewPagesHandler builds the page handler. store may be nil when history is
// disabled.
func NewPagesHandler(service DiagnosisService, renderer Renderer, store HistoryStore, log logger.Logger) *PagesHandler {
	return &PagesHandler{service: service, renderer: renderer, history: store, log: log}
}

// data fills the fields every page needs. Pages rendered in answer to a POST
// point the language switcher at the form, since only GET routes can be
// reloaded with ?lang=.
func (h *PagesHandler) data(r *http.Request) web.Data {
	d := web.Data{
		Locale:         localeOf(r.Context()),
		Path:           "/diagnose",
		HistoryEnabled: h.history != nil,
		AcceptTypes:    strings.Join(diagnosis.AcceptedMIMETypes(), ", "),
		MaxImageBytes:  h.service.Limits().MaxImageBytes,
	}
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		d.Path = r.URL.Path
		d.Query = switcherQuery(r.URL.Query())
	}
	return d
}

// switcherQuery keeps the query of the current page minus the language.
func switcherQuery(q url.Values) url.Values {
	q.Del(i18n.QueryParam)
	if len(q) == 0 {
		return nil
	}
	return q
}

func (h *PagesHandler) render(w http.ResponseWriter, status int, page web.Page, data web.Data) {
	if err := h.renderer.Render(w, status, page, data); err != nil {
		h.log.WithError(err).Error("render page", map[string]interface{}{"page": string(page)})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Landing handles GET /.
func (h *PagesHandler) Landing(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, web.PageLanding, h.data(r))
}

// Diagnose handles GET /diagnose. ?tab=upload selects the image tab.
func (h *PagesHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	data := h.data(r)
	data.Tab = tabFor(r.URL.Query().Get("tab"))
	h.render(w, http.StatusOK, web.PageDiagnose, data)
}

// Analyze handles POST /analyze. Input errors go back to the form with 422;
// analysis failures show the failure alert with 502.
func (h *PagesHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	data := h.data(r)

	in, err := decodeInput(w, r, h.service.Limits())
	if err == nil {
		var d *diagnosis.Diagnosis
		d, err = h.service.Analyze(r.Context(), in)
		if err == nil {
			data.Diagnosis = d
			h.render(w, http.StatusOK, web.PageResult, data)
			return
		}
	}

	status, key := statusAndKey(err)
	if status == http.StatusBadGateway || status == http.StatusInternalServerError {
		data.FailureKey = key
		h.render(w, status, web.PageResult, data)
		return
	}

	data.Tab = web.TabDescribe
	if in.Mode == diagnosis.ModeImage {
		data.Tab = web.TabUpload
		data.Query = url.Values{"tab": {web.TabUpload}}
	}
	data.Text = in.Text
	data.ErrorKey = key
	h.render(w, status, web.PageDiagnose, data)
}

// RateLimited answers a throttled POST /analyze with the form and the
// rate-limit message. The body is not read.
func (h *PagesHandler) RateLimited(w http.ResponseWriter, r *http.Request) {
	data := h.data(r)
	data.Tab = web.TabDescribe
	data.ErrorKey = "errorRateLimited"
	h.render(w, http.StatusTooManyRequests, web.PageDiagnose, data)
}

// History handles GET /history.
func (h *PagesHandler) History(w http.ResponseWriter, r *http.Request) {
	data := h.data(r)
	records, err := h.history.List(r.Context(), history.DefaultListLimit)
	if err != nil {
		h.log.WithError(err).Error("list history", nil)
		data.FailureKey = "errorUnknown"
		h.render(w, http.StatusInternalServerError, web.PageResult, data)
		return
	}
	data.History = records
	h.render(w, http.StatusOK, web.PageHistory, data)
}

func tabFor(v string) string {
	if v == web.TabUpload {
		return web.TabUpload
	}
	return web.TabDescribe
}

// NotFound renders a JSON 404 under /api and a plain one elsewhere.
func NotFound(bundle *i18n.Bundle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeError(w, r, bundle, http.StatusNotFound, msgNotFound)
			return
		}
		http.NotFound(w, r)
	}
}
