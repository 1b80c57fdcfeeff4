package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/matiasleandrokruk/cropdoctor/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/cropdoctor/internal/api/middleware"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
)

func TestNewLimiter_DisabledWhenNotPositive(t *testing.T) {
	t.Parallel()

	if l := middleware.NewLimiter(0, 5, 0); l != nil {
		t.Error("rps=0 should disable the limiter")
	}
	if l := middleware.NewLimiter(1, 0, 0); l != nil {
		t.Error("burst=0 should disable the limiter")
	}

	var l *middleware.Limiter
	if !l.Allow("anyone", time.Now()) {
		t.Error("nil limiter should allow")
	}
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	t.Parallel()

	l := middleware.NewLimiter(1, 2, time.Minute)
	now := time.Unix(1_700_000_000, 0)

	if !l.Allow("ip:10.0.0.1", now) || !l.Allow("ip:10.0.0.1", now) {
		t.Fatal("burst of 2 should be allowed")
	}
	if l.Allow("ip:10.0.0.1", now) {
		t.Fatal("third request in the same instant should be limited")
	}
	if !l.Allow("ip:10.0.0.2", now) {
		t.Error("keys must have independent buckets")
	}
	if !l.Allow("ip:10.0.0.1", now.Add(time.Second)) {
		t.Error("one token should refill after a second")
	}
}

func TestRateLimit_Returns429AndCallsOnReject(t *testing.T) {
	t.Parallel()

	rejected := 0
	l := middleware.NewLimiter(0.5, 1, time.Minute)
	handler := middleware.RateLimit(l, func() { rejected++ }, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnoses", nil)
		req.RemoteAddr = "192.0.2.7:4242"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	if rr := do(); rr.Code != http.StatusOK {
		t.Fatalf("first status = %d; want 200", rr.Code)
	}
	rr := do()
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status = %d; want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "2" {
		t.Errorf("Retry-After = %q; want %q", rr.Header().Get("Retry-After"), "2")
	}
	if rejected != 1 {
		t.Errorf("onReject called %d times; want 1", rejected)
	}
}

func TestRateLimit_CustomRejectHandler(t *testing.T) {
	t.Parallel()

	l := middleware.NewLimiter(1, 1, time.Minute)
	reject := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	called := false
	handler := middleware.RateLimit(l, nil, reject)(nextHandler(&called, nil))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/analyze", nil))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/analyze", nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d; want 429", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q; want the reject handler's", rr.Header().Get("Content-Type"))
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q; want 1", rr.Header().Get("Retry-After"))
	}
}

func TestJSONError_UsesBundle(t *testing.T) {
	t.Parallel()

	b, err := i18n.Load(fstest.MapFS{
		"locales/en.yaml": {Data: []byte("errorRateLimited: Slow down.\n")},
	})
	if err != nil {
		t.Fatalf("i18n.Load: %v", err)
	}
	rr := httptest.NewRecorder()
	middleware.JSONError(b, http.StatusTooManyRequests, "errorRateLimited").
		ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/diagnoses", nil))

	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if rr.Code != http.StatusTooManyRequests || body["error"] != "Slow down." || body["code"] != "errorRateLimited" {
		t.Errorf("got %d %v", rr.Code, body)
	}
}

func TestRateLimit_NilLimiterPassesThrough(t *testing.T) {
	t.Parallel()

	called := false
	handler := middleware.RateLimit(nil, nil, nil)(nextHandler(&called, nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("next handler should be called")
	}
}

func TestClientKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		remote   string
		clientID string
		want     string
	}{
		{"ipv4 with port", "192.0.2.1:1234", "", "ip:192.0.2.1"},
		{"ipv6 with port", "[2001:db8::1]:443", "", "ip:2001:db8::1"},
		{"no port", "192.0.2.1", "", "ip:192.0.2.1"},
		{"empty", "", "", "ip:unknown"},
		{"authenticated client wins", "192.0.2.1:1234", "field-app", "client:field-app"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.clientID != "" {
				req = req.WithContext(ctxkeys.WithValue(context.Background(), ctxkeys.ClientID, tc.clientID))
			}
			if got := middleware.ClientKey(req); got != tc.want {
				t.Errorf("ClientKey = %q; want %q", got, tc.want)
			}
		})
	}
}
