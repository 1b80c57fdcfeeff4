// Package llm - Gemini adapter.
// GeminiProvider calls the hosted Gemini API through google.golang.org/genai.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	// DefaultGeminiModel is the multimodal model used when none is configured.
	DefaultGeminiModel = "gemini-2.5-flash"
	providerGemini     = "gemini"
)

// GeminiConfig holds the settings needed to build a GeminiProvider.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// BaseURL overrides the API endpoint (tests, proxies). Empty means default.
	BaseURL string
}

// GeminiProvider implements Provider against the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a GeminiProvider. The API key is required.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GeminiProvider{client: client, model: cfg.Model}, nil
}

// Generate issues one GenerateContent call and returns the candidate text.
func (p *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	contents := []*genai.Content{genai.NewContentFromParts(toGenAIParts(req.Parts), genai.RoleUser)}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, buildGenerateConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini generate: %w", ErrEmptyResponse)
	}

	out := &GenerateResponse{Text: text}
	if len(resp.Candidates) > 0 {
		out.StopReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.UsageMetadata != nil {
		out.Tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

// buildGenerateConfig converts request options into the SDK config.
func buildGenerateConfig(req GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: req.ResponseMIMEType,
		ResponseSchema:   toGenAISchema(req.ResponseSchema),
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.Temperature != 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	return cfg
}

func toGenAIParts(parts []Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.InlineData != nil {
			out = append(out, genai.NewPartFromBytes(p.InlineData.Data, p.InlineData.MIMEType))
			continue
		}
		out = append(out, genai.NewPartFromText(p.Text))
	}
	return out
}

func toGenAISchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        toGenAIType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Items:       toGenAISchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenAISchema(prop)
		}
	}
	return out
}

func toGenAIType(t SchemaType) genai.Type {
	switch t {
	case TypeObject:
		return genai.TypeObject
	case TypeArray:
		return genai.TypeArray
	case TypeNumber:
		return genai.TypeNumber
	case TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// ModelInfo returns static metadata for this provider/model.
func (p *GeminiProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.model, Provider: providerGemini}
}

// HealthCheck fetches the configured model's metadata.
func (p *GeminiProvider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model, nil); err != nil {
		return fmt.Errorf("gemini healthcheck: %w", err)
	}
	return nil
}
