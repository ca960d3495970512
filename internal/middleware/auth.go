package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"query-scheduler/internal/domain"
)

// Authenticate resolves the bearer token into a principal stored with
// domain.WithPrincipal. Requests without a token pass through anonymously;
// handlers that mutate state reject them. A token that no validator accepts
// is answered with 401.
func Authenticate(validators []TokenValidator, nameClaim string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w, "malformed Authorization header")
				return
			}

			for _, v := range validators {
				claims, err := v.Validate(r.Context(), token)
				if err != nil {
					logger.Debug("token rejected", "request_id", RequestIDFromContext(r.Context()), "error", err)
					continue
				}
				name := claims.Principal(nameClaim)
				if name == "" {
					continue
				}
				ctx := domain.WithPrincipal(r.Context(), domain.Principal{
					Name:    name,
					Subject: claims.Subject,
					Issuer:  claims.Issuer,
				})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			writeUnauthorized(w, "invalid bearer token")
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="qsched"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    http.StatusUnauthorized,
		"message": "unauthorized: " + msg,
	})
}
