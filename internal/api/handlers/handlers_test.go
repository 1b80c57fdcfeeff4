package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/matiasleandrokruk/cropdoctor/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/llm"
)

// ===== HELPERS =====

// fakeService validates input with the real rules and returns a canned result.
type fakeService struct {
	mu     sync.Mutex
	inputs []diagnosis.Input
	result *diagnosis.Diagnosis
	err    error
	limits diagnosis.Limits
}

func newFakeService() *fakeService {
	return &fakeService{result: sampleDiagnosis(), limits: diagnosis.DefaultLimits()}
}

func (f *fakeService) Analyze(_ context.Context, in diagnosis.Input) (*diagnosis.Diagnosis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if _, err := diagnosis.ValidateInput(in, f.limits); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeService) Limits() diagnosis.Limits { return f.limits }

func (f *fakeService) lastInput(t *testing.T) diagnosis.Input {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		t.Fatal("service was not called")
	}
	return f.inputs[len(f.inputs)-1]
}

// customBundle carries one English table with its own wording.
func customBundle(t *testing.T) *i18n.Bundle {
	t.Helper()
	b, err := i18n.Load(fstest.MapFS{
		"locales/en.yaml": {Data: []byte("errorDescription: Tell us what the plant looks like.\nerrorNotFound: Nothing here.\n")},
	})
	if err != nil {
		t.Fatalf("i18n.Load: %v", err)
	}
	return b
}

func sampleDiagnosis() *diagnosis.Diagnosis {
	return &diagnosis.Diagnosis{
		Crop:             "Tomato",
		IssueName:        "Early Blight",
		Cause:            "Fungus (Alternaria solani)",
		OrganicTreatment: []string{"Remove infected leaves", "Spray neem oil"},
		PreventionTips:   []string{"Rotate crops"},
		ExpertHelp:       "Consult an extension officer.",
	}
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func withLocale(r *http.Request, locale string) *http.Request {
	return r.WithContext(ctxkeys.WithValue(r.Context(), ctxkeys.Locale, locale))
}

func decodeErrorBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json unmarshal error = %v; body = %s", err, rr.Body.String())
	}
	return body
}

type fakeProvider struct{ healthErr error }

func (p *fakeProvider) Generate(context.Context, llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return nil, nil
}
func (p *fakeProvider) ModelInfo() llm.ModelMeta          { return llm.ModelMeta{ID: "m", Provider: "fake"} }
func (p *fakeProvider) HealthCheck(context.Context) error { return p.healthErr }
