// Package llm - Ollama HTTP adapter.
// OllamaProvider calls a local Ollama REST API using stdlib net/http.
// Endpoints used:
//   - POST /api/chat  - non-streaming chat completion with images and a JSON format schema
//   - GET  /api/tags  - health check (lists available models)
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"
	providerOllama    = "ollama"
)

// OllamaProvider implements Provider against a running Ollama instance.
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaProvider creates an OllamaProvider with the given request timeout
// (60s when timeout is not positive).
func NewOllamaProvider(baseURL, model string, timeout time.Duration) *OllamaProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ─── internal Ollama JSON types ──────────────────────────────────────────────

type ollamaChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   any                 `json:"format,omitempty"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	DoneReason      string            `json:"done_reason"`
	Done            bool              `json:"done"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

// ─── Provider implementation ────────────────────────────────────────────────

// Generate performs a non-streaming chat via POST /api/chat.
// The system instruction becomes a system message; text parts are joined into
// one user message and inline images are attached base64-encoded.
func (p *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    model,
		Messages: buildOllamaMessages(req),
		Stream:   false,
		Format:   buildOllamaFormat(req),
		Options:  buildChatOptions(req),
	})
	if err != nil {
		return nil, err
	}

	respBody, postErr := p.doPost(ctx, "/api/chat", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close()

	var ollamaResp ollamaChatResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&ollamaResp); decodeErr != nil {
		return nil, fmt.Errorf("decode chat response: %w", decodeErr)
	}
	if strings.TrimSpace(ollamaResp.Message.Content) == "" {
		return nil, fmt.Errorf("ollama chat: %w", ErrEmptyResponse)
	}
	return &GenerateResponse{
		Text:       ollamaResp.Message.Content,
		StopReason: ollamaResp.DoneReason,
		Tokens:     ollamaResp.PromptEvalCount + ollamaResp.EvalCount,
	}, nil
}

func buildOllamaMessages(req GenerateRequest) []ollamaChatMessage {
	msgs := make([]ollamaChatMessage, 0, 2)
	if req.SystemInstruction != "" {
		msgs = append(msgs, ollamaChatMessage{Role: "system", Content: req.SystemInstruction})
	}

	user := ollamaChatMessage{Role: "user"}
	texts := make([]string, 0, len(req.Parts))
	for _, part := range req.Parts {
		if part.InlineData != nil {
			user.Images = append(user.Images, base64.StdEncoding.EncodeToString(part.InlineData.Data))
			continue
		}
		texts = append(texts, part.Text)
	}
	user.Content = strings.Join(texts, "\n")
	return append(msgs, user)
}

// buildOllamaFormat returns the JSON schema for structured output, "json" when
// only the MIME type asks for JSON, or nil.
func buildOllamaFormat(req GenerateRequest) any {
	if req.ResponseSchema != nil {
		return schemaToJSON(req.ResponseSchema)
	}
	if req.ResponseMIMEType == mimeJSON {
		return "json"
	}
	return nil
}

// schemaToJSON renders a Schema as a plain JSON Schema document.
func schemaToJSON(s *Schema) map[string]any {
	out := map[string]any{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = schemaToJSON(prop)
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if s.Items != nil {
		out["items"] = schemaToJSON(s.Items)
	}
	return out
}

// buildChatOptions converts request fields into the Ollama options map.
func buildChatOptions(req GenerateRequest) map[string]any {
	if req.Temperature == 0 {
		return nil
	}
	return map[string]any{"temperature": req.Temperature}
}

// ModelInfo returns static metadata for this provider/model.
func (p *OllamaProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.model, Provider: providerOllama}
}

// HealthCheck calls GET /api/tags - returns nil if Ollama is reachable.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	url := p.baseURL + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// doPost sends a POST request to baseURL+path and returns the response body.
// Caller is responsible for closing the returned ReadCloser.
func (p *OllamaProvider) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	url := p.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("ollama post %s: status %d", path, resp.StatusCode)
	}
	return resp.Body, nil
}
