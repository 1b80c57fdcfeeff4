// Bearer JWT authentication for the JSON API. Only mounted when a JWT secret
// is configured.
package middleware

import (
	"net/http"
	"strings"

	"github.com/matiasleandrokruk/cropdoctor/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
	pkgauth "github.com/matiasleandrokruk/cropdoctor/pkg/auth"
)

// TokenParser validates a bearer token. *pkgauth.Signer satisfies it.
type TokenParser interface {
	ParseJWT(token string) (*pkgauth.Claims, error)
}

// Auth validates "Authorization: Bearer <token>" and stores the token
// subject as ctxkeys.ClientID. Missing, malformed, invalid or expired tokens
// get 401. A valid token without scope gets 403; an empty scope skips that
// check.
func Auth(parser TokenParser, scope string, bundle *i18n.Bundle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="cropdoctor"`)
				writeError(w, r, bundle, http.StatusUnauthorized, "errorUnauthorized")
				return
			}

			claims, err := parser.ParseJWT(tokenString)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="cropdoctor", error="invalid_token"`)
				writeError(w, r, bundle, http.StatusUnauthorized, "errorUnauthorized")
				return
			}
			if scope != "" && !claims.HasScope(scope) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="cropdoctor", error="insufficient_scope", scope="`+scope+`"`)
				writeError(w, r, bundle, http.StatusForbidden, "errorForbidden")
				return
			}

			ctx := ctxkeys.WithValue(r.Context(), ctxkeys.ClientID, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken returns the token from "Authorization: Bearer <token>",
// or "" when the header is missing or uses another scheme.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
