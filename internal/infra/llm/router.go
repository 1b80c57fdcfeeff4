// Package llm - provider router.
// Router selects the Provider configured for the process. There is exactly
// one active provider per request and no fallback chain.
package llm

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Router selects a Provider for each request. Its provider set is fixed at
// construction.
type Router struct {
	providers       map[string]Provider
	defaultProvider string
}

// NewRouter creates a Router with an initial set of providers and a default key.
func NewRouter(providers map[string]Provider, defaultProvider string) *Router {
	ps := make(map[string]Provider, len(providers))
	for k, v := range providers {
		ps[k] = v
	}
	return &Router{providers: ps, defaultProvider: defaultProvider}
}

// Route returns the provider for the current request.
// Returns an error if the default provider is not registered.
func (r *Router) Route(_ context.Context) (Provider, error) {
	p, ok := r.providers[r.defaultProvider]
	if !ok {
		return nil, fmt.Errorf("llm router: provider %q not registered (available: %v)", r.defaultProvider, r.keys())
	}
	return p, nil
}

// keys returns the registered provider names (for error messages).
func (r *Router) keys() []string {
	out := make([]string, 0, len(r.providers))
	for k := range r.providers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Settings selects and configures the active provider.
type Settings struct {
	Provider      string // "gemini" | "ollama"
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	OllamaBaseURL string
	OllamaModel   string
	Timeout       time.Duration
}

// BuildRouter constructs the provider named in s.Provider and returns a
// Router defaulting to it.
func BuildRouter(ctx context.Context, s Settings) (*Router, error) {
	switch s.Provider {
	case providerGemini, "":
		p, err := NewGeminiProvider(ctx, GeminiConfig{
			APIKey:  s.GeminiAPIKey,
			Model:   s.GeminiModel,
			Timeout: s.Timeout,
			BaseURL: s.GeminiBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return NewRouter(map[string]Provider{providerGemini: p}, providerGemini), nil
	case providerOllama:
		p := NewOllamaProvider(s.OllamaBaseURL, s.OllamaModel, s.Timeout)
		return NewRouter(map[string]Provider{providerOllama: p}, providerOllama), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", s.Provider)
	}
}
