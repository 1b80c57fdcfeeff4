package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/matiasleandrokruk/cropdoctor/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
)

// writeError writes {"error": <localized message>, "code": <key>}.
// Same shape as the handlers package. A nil bundle uses the embedded tables.
func writeError(w http.ResponseWriter, r *http.Request, bundle *i18n.Bundle, status int, key string) {
	if bundle == nil {
		bundle = i18n.Default()
	}
	locale := ctxkeys.String(r.Context(), ctxkeys.Locale, i18n.Fallback)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{ //nolint:errcheck
		"error": bundle.T(locale, key),
		"code":  key,
	})
}

// JSONError answers every request with the localized error for key.
func JSONError(bundle *i18n.Bundle, status int, key string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, bundle, status, key)
	})
}
