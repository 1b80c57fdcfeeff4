// Shared response helpers and the error-to-status mapping used by both the
// JSON API and the HTML pages.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/matiasleandrokruk/cropdoctor/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"

	msgBadRequest = "errorBadRequest"
	msgNotFound   = "errorNotFound"
)

// requestError is a problem with the HTTP request itself, found before the
// domain is called.
type requestError struct {
	status int
	key    string
}

func (e requestError) Error() string { return e.key }

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// writeError writes {"error": <localized message>, "code": <message key>}.
// A nil bundle uses the embedded tables.
func writeError(w http.ResponseWriter, r *http.Request, bundle *i18n.Bundle, status int, key string) {
	if bundle == nil {
		bundle = i18n.Default()
	}
	writeJSON(w, status, map[string]string{
		"error": bundle.T(localeOf(r.Context()), key),
		"code":  key,
	})
}

func localeOf(ctx context.Context) string {
	return ctxkeys.String(ctx, ctxkeys.Locale, i18n.Fallback)
}

// statusAndKey maps an error from decoding or analysis to an HTTP status
// and a message key.
func statusAndKey(err error) (int, string) {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr.status, reqErr.key
	}
	key := diagnosis.UserMessageKey(err)
	switch {
	case diagnosis.IsInputError(err):
		return http.StatusUnprocessableEntity, key
	case errors.Is(err, diagnosis.ErrProviderFailed), errors.Is(err, diagnosis.ErrInvalidResponse):
		return http.StatusBadGateway, key
	default:
		return http.StatusInternalServerError, key
	}
}

// parseLimit reads ?limit=, ignoring values that are not positive integers.
func parseLimit(r *http.Request, fallback, max int) int {
	limit := fallback
	if lim, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && lim > 0 {
		limit = lim
	}
	if limit > max {
		limit = max
	}
	return limit
}
