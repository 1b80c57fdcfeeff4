package diagnosis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/matiasleandrokruk/cropdoctor/internal/infra/eventbus"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/llm"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/logger"
)

// Cache stores encoded diagnoses by input digest. Get reports a miss with
// ok=false and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// Metrics receives one observation per Analyze call.
type Metrics interface {
	ObserveAnalysis(mode, outcome string, elapsed time.Duration)
	ObserveCache(hit bool)
}

// ProviderSource yields the provider for a call. *llm.Router satisfies it.
type ProviderSource interface {
	Route(ctx context.Context) (llm.Provider, error)
}

// Outcome labels passed to Metrics.
const (
	OutcomeOK              = "ok"
	OutcomeInvalidInput    = "invalid_input"
	OutcomeProviderError   = "provider_error"
	OutcomeInvalidResponse = "invalid_response"
)

// Service runs the validate → request → provider call → parse flow.
type Service struct {
	providers ProviderSource
	limits    Limits
	cache     Cache
	bus       eventbus.EventBus
	metrics   Metrics
	tracer    trace.Tracer
	log       logger.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLimits overrides DefaultLimits.
func WithLimits(l Limits) Option { return func(s *Service) { s.limits = l } }

// WithCache enables response caching.
func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

// WithEventBus publishes a CompletedEvent after each successful analysis.
func WithEventBus(b eventbus.EventBus) Option { return func(s *Service) { s.bus = b } }

// WithMetrics records call outcomes.
func WithMetrics(m Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithTracer sets the span tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option { return func(s *Service) { s.tracer = t } }

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option { return func(s *Service) { s.log = l } }

// NewService creates a Service that calls the provider chosen by providers.
func NewService(providers ProviderSource, opts ...Option) *Service {
	s := &Service{
		providers: providers,
		limits:    DefaultLimits(),
		tracer:    otel.Tracer("github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"),
		log:       logger.NewNoOpLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the input limits in effect.
func (s *Service) Limits() Limits { return s.limits }

// AnalyzeText diagnoses a symptom description.
func (s *Service) AnalyzeText(ctx context.Context, text string) (*Diagnosis, error) {
	return s.Analyze(ctx, Input{Mode: ModeText, Text: text})
}

// AnalyzeImage diagnoses a photo. mimeType must be present.
func (s *Service) AnalyzeImage(ctx context.Context, mimeType string, data []byte) (*Diagnosis, error) {
	return s.Analyze(ctx, Input{Mode: ModeImage, MIMEType: mimeType, Image: data})
}

// Analyze validates in, makes exactly one provider call (unless the cache
// answers) and returns the parsed Diagnosis. Input errors return before any
// network call. Provider failures wrap ErrProviderFailed and malformed
// responses wrap ErrInvalidResponse.
func (s *Service) Analyze(ctx context.Context, in Input) (*Diagnosis, error) {
	started := s.now()
	ctx, span := s.tracer.Start(ctx, "diagnosis.Analyze",
		trace.WithAttributes(attribute.String("diagnosis.mode", string(in.Mode))))
	defer span.End()

	d, ev, err := s.analyze(ctx, in)
	elapsed := s.now().Sub(started)
	outcome := outcomeOf(err)
	if s.metrics != nil {
		s.metrics.ObserveAnalysis(string(in.Mode), outcome, elapsed)
	}
	span.SetAttributes(attribute.String("diagnosis.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.log.Warn("diagnosis failed", map[string]interface{}{
			"mode":    string(in.Mode),
			"outcome": outcome,
			"error":   err.Error(),
		})
		return nil, err
	}

	ev.Duration = elapsed
	ev.At = started.UTC()
	s.log.Info("diagnosis completed", map[string]interface{}{
		"mode":        string(ev.Mode),
		"provider":    ev.Provider,
		"model":       ev.Model,
		"cached":      ev.Cached,
		"duration_ms": elapsed.Milliseconds(),
	})
	if s.bus != nil {
		s.bus.Publish(TopicCompleted, *ev)
	}
	return d, nil
}

func (s *Service) analyze(ctx context.Context, in Input) (*Diagnosis, *CompletedEvent, error) {
	valid, err := ValidateInput(in, s.limits)
	if err != nil {
		return nil, nil, err
	}

	provider, err := s.providers.Route(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}
	meta := provider.ModelInfo()
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("llm.provider", meta.Provider), attribute.String("llm.model", meta.ID))

	digest := InputDigest(valid, meta.ID)
	ev := &CompletedEvent{
		Mode:        valid.Mode,
		Text:        valid.Text,
		MIMEType:    valid.MIMEType,
		ImageBytes:  len(valid.Image),
		InputDigest: digest,
		Provider:    meta.Provider,
		Model:       meta.ID,
	}

	if d, ok := s.lookup(ctx, digest); ok {
		ev.Diagnosis = *d
		ev.Cached = true
		return d, ev, nil
	}

	resp, err := provider.Generate(ctx, BuildRequest(valid))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}
	d, err := ParseDiagnosis(resp.Text)
	if err != nil {
		return nil, nil, err
	}

	s.store(ctx, digest, d)
	ev.Diagnosis = *d
	return d, ev, nil
}

// lookup treats cache errors and entries that fail the response schema as
// misses.
func (s *Service) lookup(ctx context.Context, key string) (*Diagnosis, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("diagnosis cache get failed", map[string]interface{}{"error": err.Error()})
	}
	if err != nil || !ok {
		s.observeCache(false)
		return nil, false
	}
	d, err := ParseDiagnosis(string(raw))
	if err != nil {
		s.log.Warn("diagnosis cache entry rejected", map[string]interface{}{"error": err.Error()})
		s.observeCache(false)
		return nil, false
	}
	s.observeCache(true)
	return d, true
}

func (s *Service) store(ctx context.Context, key string, d *Diagnosis) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw); err != nil {
		s.log.Warn("diagnosis cache set failed", map[string]interface{}{"error": err.Error()})
	}
}

func (s *Service) observeCache(hit bool) {
	if s.metrics != nil {
		s.metrics.ObserveCache(hit)
	}
}

// InputDigest is a stable key for a validated input analysed by model.
func InputDigest(in Input, model string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(in.Mode))
	h.Write([]byte{0})
	switch in.Mode {
	case ModeImage:
		h.Write([]byte(in.MIMEType))
		h.Write([]byte{0})
		h.Write(in.Image)
	default:
		h.Write([]byte(in.Text))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case IsInputError(err):
		return OutcomeInvalidInput
	case errors.Is(err, ErrInvalidResponse):
		return OutcomeInvalidResponse
	default:
		return OutcomeProviderError
	}
}
