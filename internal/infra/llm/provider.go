// Package llm - Provider interface.
// Adapters (Gemini, Ollama) implement this interface so the diagnosis
// service is never coupled to a specific LLM vendor.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Provider is the model-agnostic interface for one-shot generation.
type Provider interface {
	// Generate performs a single request/response turn.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta

	// HealthCheck returns nil if the provider is reachable and operational.
	HealthCheck(ctx context.Context) error
}
