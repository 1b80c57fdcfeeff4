package middleware

import (
	"net/http"
	"time"

	"github.com/matiasleandrokruk/cropdoctor/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
)

// Locale resolves the request locale (?lang, then the lang cookie, then
// Accept-Language) and stores it as ctxkeys.Locale. A valid ?lang also sets
// the cookie so later pages keep the choice.
func Locale(bundle *i18n.Bundle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query := r.URL.Query().Get(i18n.QueryParam)
			cookie := ""
			if c, err := r.Cookie(i18n.CookieName); err == nil {
				cookie = c.Value
			}
			locale := bundle.Match(query, cookie, r.Header.Get("Accept-Language"))

			if chosen, ok := bundle.Lookup(query); ok && chosen != cookie {
				http.SetCookie(w, &http.Cookie{
					Name:     i18n.CookieName,
					Value:    locale,
					Path:     "/",
					MaxAge:   int((365 * 24 * time.Hour).Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set("Content-Language", locale)
			ctx := ctxkeys.WithValue(r.Context(), ctxkeys.Locale, locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
