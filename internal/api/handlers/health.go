package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/matiasleandrokruk/cropdoctor/internal/infra/llm"
)

const readyTimeout = 5 * time.Second

// ProviderSource returns the configured provider. *llm.Router satisfies it.
type ProviderSource interface {
	Route(ctx context.Context) (llm.Provider, error)
}

// Pinger is an optional dependency checked by /ready (database, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	providers ProviderSource
	deps      map[string]Pinger
}

// NewHealthHandler checks providers and every named dependency on /ready.
func NewHealthHandler(providers ProviderSource, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{providers: providers, deps: deps}
}

// Live handles GET /health. It never touches dependencies.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := map[string]string{}
	ok := true
	record := func(name string, err error) {
		if err != nil {
			checks[name] = err.Error()
			ok = false
			return
		}
		checks[name] = "ok"
	}

	p, err := h.providers.Route(ctx)
	if err == nil {
		err = p.HealthCheck(ctx)
	}
	record("provider", err)
	for name, dep := range h.deps {
		record(name, dep.Ping(ctx))
	}

	status, code := "ok", http.StatusOK
	if !ok {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{"status": status, "checks": checks})
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
