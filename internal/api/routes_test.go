// Wiring tests for NewRouter: health checks, pages, optional features and the
// middleware order on /api/v1.
package api

import (
	"context"
	"encoding/json"
	"html"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	apmiddleware "github.com/matiasleandrokruk/cropdoctor/internal/api/middleware"
	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/domain/history"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/llm"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/logger"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/metrics"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/sqlite"
	"github.com/matiasleandrokruk/cropdoctor/internal/web"
	pkgauth "github.com/matiasleandrokruk/cropdoctor/pkg/auth"
)

const validResponse = `{"crop":"Tomato","issueName":"Early Blight","cause":"Fungus","organicTreatment":["Neem oil"],"preventionTips":["Rotate crops"],"expertHelp":"Ask an extension officer."}`

type stubProvider struct{}

func (stubProvider) Generate(context.Context, llm.GenerateRequest) (*llm.GenerateResponse, error) {
	return &llm.GenerateResponse{Text: validResponse}, nil
}
func (stubProvider) ModelInfo() llm.ModelMeta {
	return llm.ModelMeta{ID: "stub-model", Provider: "stub"}
}
func (stubProvider) HealthCheck(context.Context) error { return nil }

// newTestDeps wires the real diagnosis service over a stub provider.
func newTestDeps(t *testing.T) Deps {
	t.Helper()
	router := llm.NewRouter(map[string]llm.Provider{"stub": stubProvider{}}, "stub")
	renderer, err := web.NewRenderer(i18n.Default())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return Deps{
		Diagnosis: diagnosis.NewService(router),
		Providers: router,
		Renderer:  renderer,
		Logger:    logger.NewTestLogger(t),
	}
}

func serve(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestNewRouter_HealthEndpoints(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	if rr := serve(router, http.MethodGet, "/health", "", nil); rr.Code != http.StatusOK {
		t.Errorf("/health = %d", rr.Code)
	}
	if rr := serve(router, http.MethodGet, "/ready", "", nil); rr.Code != http.StatusOK {
		t.Errorf("/ready = %d", rr.Code)
	}
	if rr := serve(router, http.MethodGet, "/metrics", "", nil); rr.Code != http.StatusNotFound {
		t.Errorf("/metrics without metrics = %d; want 404", rr.Code)
	}
}

func TestNewRouter_PagesAndStatic(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	rr := serve(router, http.MethodGet, "/?lang=es", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), i18n.Default().T("es", "diagnosePlantButton")) {
		t.Errorf("landing in Spanish = %d", rr.Code)
	}
	if rr := serve(router, http.MethodGet, "/diagnose", "", nil); rr.Code != http.StatusOK {
		t.Errorf("/diagnose = %d", rr.Code)
	}
	if rr := serve(router, http.MethodGet, "/static/style.css", "", nil); rr.Code != http.StatusOK {
		t.Errorf("/static/style.css = %d", rr.Code)
	}
	if rr := serve(router, http.MethodGet, "/history", "", nil); rr.Code != http.StatusNotFound {
		t.Errorf("/history without history = %d; want 404", rr.Code)
	}
}

func TestNewRouter_AnalyzeForm(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	rr := serve(router, http.MethodPost, "/analyze", "mode=text&text=brown+rings",
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Early Blight") {
		t.Errorf("/analyze = %d %s", rr.Code, rr.Body.String())
	}
}

var spanishLink = regexp.MustCompile(`href="([^"]*lang=es[^"]*)"`)

func TestNewRouter_LanguageSwitcherAfterAnalyze(t *testing.T) {
	router := NewRouter(newTestDeps(t))
	formCT := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}

	for name, body := range map[string]string{
		"result":      "mode=text&text=yellow+spots",
		"input error": "mode=text&text=+",
	} {
		rr := serve(router, http.MethodPost, "/analyze", body, formCT)
		m := spanishLink.FindStringSubmatch(rr.Body.String())
		if m == nil {
			t.Fatalf("%s: no Spanish switcher link in %s", name, rr.Body.String())
		}
		link := html.UnescapeString(m[1])
		if strings.HasPrefix(link, "/analyze") {
			t.Errorf("%s: switcher links to %s", name, link)
		}

		next := serve(router, http.MethodGet, link, "", nil)
		if next.Code != http.StatusOK {
			t.Errorf("%s: GET %s = %d; want 200", name, link, next.Code)
		}
		if next.Header().Get("Content-Language") != "es" {
			t.Errorf("%s: GET %s Content-Language = %q; want es", name, link, next.Header().Get("Content-Language"))
		}
	}
}

func TestNewRouter_LanguageSwitcherKeepsTab(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	rr := serve(router, http.MethodGet, "/diagnose?tab=upload", "", nil)
	m := spanishLink.FindStringSubmatch(rr.Body.String())
	if m == nil {
		t.Fatal("no Spanish switcher link")
	}
	link := html.UnescapeString(m[1])
	if !strings.Contains(link, "tab=upload") {
		t.Fatalf("switcher link %s lost the tab", link)
	}
	if next := serve(router, http.MethodGet, link, "", nil); !strings.Contains(next.Body.String(), `type="file"`) {
		t.Error("following the switcher link should keep the upload tab")
	}
}

func TestNewRouter_DiagnosesAPI(t *testing.T) {
	router := NewRouter(newTestDeps(t))

	rr := serve(router, http.MethodPost, "/api/v1/diagnoses", `{"mode":"text","text":"brown rings"}`,
		map[string]string{"Content-Type": "application/json"})
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /api/v1/diagnoses = %d %s", rr.Code, rr.Body.String())
	}
	var d diagnosis.Diagnosis
	if err := json.Unmarshal(rr.Body.Bytes(), &d); err != nil || d.Crop != "Tomato" {
		t.Errorf("diagnosis = %+v err = %v", d, err)
	}

	rr = serve(router, http.MethodPost, "/api/v1/diagnoses", `{"mode":"text"}`,
		map[string]string{"Content-Type": "application/json", "Accept-Language": "te"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty text = %d; want 422", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "errorDescription") {
		t.Errorf("body = %s", rr.Body.String())
	}

	if rr := serve(router, http.MethodGet, "/api/v1/nope", "", nil); rr.Code != http.StatusNotFound {
		t.Errorf("unknown api route = %d", rr.Code)
	}
}

func TestNewRouter_AuthProtectsAPIOnly(t *testing.T) {
	signer, err := pkgauth.NewSigner("test-secret-key-32-chars-min!!!", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	deps := newTestDeps(t)
	deps.Auth = signer
	router := NewRouter(deps)

	body := `{"mode":"text","text":"brown rings"}`
	jsonCT := map[string]string{"Content-Type": "application/json"}
	if rr := serve(router, http.MethodPost, "/api/v1/diagnoses", body, jsonCT); rr.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d; want 401", rr.Code)
	}

	token, err := signer.GenerateJWT("field-app", "diagnose")
	if err != nil {
		t.Fatal(err)
	}
	withToken := map[string]string{"Content-Type": "application/json", "Authorization": "Bearer " + token}
	if rr := serve(router, http.MethodPost, "/api/v1/diagnoses", body, withToken); rr.Code != http.StatusOK {
		t.Errorf("valid token = %d; want 200", rr.Code)
	}

	if rr := serve(router, http.MethodGet, "/", "", nil); rr.Code != http.StatusOK {
		t.Errorf("pages must stay public, got %d", rr.Code)
	}

	unscoped, err := signer.GenerateJWT("field-app", "history")
	if err != nil {
		t.Fatal(err)
	}
	withUnscoped := map[string]string{"Content-Type": "application/json", "Authorization": "Bearer " + unscoped}
	if rr := serve(router, http.MethodPost, "/api/v1/diagnoses", body, withUnscoped); rr.Code != http.StatusForbidden {
		t.Errorf("token without diagnose scope = %d; want 403", rr.Code)
	}
}

func TestNewRouter_RateLimitAndMetrics(t *testing.T) {
	deps := newTestDeps(t)
	deps.Metrics = metrics.New()
	deps.Limiter = apmiddleware.NewLimiter(0.001, 1, time.Minute)
	router := NewRouter(deps)

	body := `{"mode":"text","text":"brown rings"}`
	jsonCT := map[string]string{"Content-Type": "application/json"}
	if rr := serve(router, http.MethodPost, "/api/v1/diagnoses", body, jsonCT); rr.Code != http.StatusOK {
		t.Fatalf("first = %d", rr.Code)
	}
	if rr := serve(router, http.MethodPost, "/api/v1/diagnoses", body, jsonCT); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d; want 429", rr.Code)
	}
	if rr := serve(router, http.MethodGet, "/diagnose", "", nil); rr.Code != http.StatusOK {
		t.Errorf("form page must not be rate limited, got %d", rr.Code)
	}

	rr := serve(router, http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics = %d", rr.Code)
	}
	for _, want := range []string{"cropdoctor_rate_limited_total 1", `route="/api/v1/diagnoses/"`} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("/metrics missing %q", want)
		}
	}
}

func TestNewRouter_RateLimitedFormRendersPage(t *testing.T) {
	deps := newTestDeps(t)
	deps.Limiter = apmiddleware.NewLimiter(0.001, 1, time.Minute)
	router := NewRouter(deps)

	formCT := map[string]string{"Content-Type": "application/x-www-form-urlencoded", "Accept-Language": "es"}
	if rr := serve(router, http.MethodPost, "/analyze", "mode=text&text=spots", formCT); rr.Code != http.StatusOK {
		t.Fatalf("first = %d", rr.Code)
	}
	rr := serve(router, http.MethodPost, "/analyze", "mode=text&text=spots", formCT)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second = %d; want 429", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q; want html", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Body.String(), i18n.Default().T("es", "errorRateLimited")) {
		t.Error("form page should carry the localized rate-limit message")
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
}

func TestNewRouter_ForwardedForIgnoredWithoutTrustedProxy(t *testing.T) {
	deps := newTestDeps(t)
	deps.Limiter = apmiddleware.NewLimiter(0.001, 1, time.Minute)
	router := NewRouter(deps)

	body := `{"mode":"text","text":"brown rings"}`
	first := serve(router, http.MethodPost, "/api/v1/diagnoses", body,
		map[string]string{"Content-Type": "application/json", "X-Forwarded-For": "203.0.113.1"})
	if first.Code != http.StatusOK {
		t.Fatalf("first = %d", first.Code)
	}
	second := serve(router, http.MethodPost, "/api/v1/diagnoses", body,
		map[string]string{"Content-Type": "application/json", "X-Forwarded-For": "203.0.113.2"})
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("rotating X-Forwarded-For = %d; want 429", second.Code)
	}
}

func TestNewRouter_ForwardedForHonouredBehindTrustedProxy(t *testing.T) {
	deps := newTestDeps(t)
	deps.Limiter = apmiddleware.NewLimiter(0.001, 1, time.Minute)
	deps.TrustProxy = true
	router := NewRouter(deps)

	body := `{"mode":"text","text":"brown rings"}`
	for _, ip := range []string{"203.0.113.1", "203.0.113.2"} {
		rr := serve(router, http.MethodPost, "/api/v1/diagnoses", body,
			map[string]string{"Content-Type": "application/json", "X-Forwarded-For": ip})
		if rr.Code != http.StatusOK {
			t.Errorf("client %s = %d; want 200", ip, rr.Code)
		}
	}
}

func TestNewRouter_HistoryEnabled(t *testing.T) {
	db, err := sqlite.Open(sqlite.MemoryPath)
	if err != nil {
		t.Fatalf("sqlite.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := history.NewStore(db)

	saved, err := store.Save(context.Background(), history.Record{
		Mode:      diagnosis.ModeText,
		InputText: "spots",
		Diagnosis: diagnosis.Diagnosis{Crop: "Rice", IssueName: "Blast", OrganicTreatment: []string{}, PreventionTips: []string{}},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	deps := newTestDeps(t)
	deps.History = store
	router := NewRouter(deps)

	if rr := serve(router, http.MethodGet, "/api/v1/diagnoses", "", nil); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), saved.ID) {
		t.Errorf("list = %d %s", rr.Code, rr.Body.String())
	}
	if rr := serve(router, http.MethodGet, "/api/v1/diagnoses/"+saved.ID, "", nil); rr.Code != http.StatusOK {
		t.Errorf("get = %d", rr.Code)
	}
	if rr := serve(router, http.MethodGet, "/history", "", nil); rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Blast") {
		t.Errorf("/history = %d", rr.Code)
	}
}
