package identity

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Attach puts the operator from a valid bearer token on the request context.
// Requests without a token pass through anonymously; a malformed or expired
// token is rejected.
func (a *Authenticator) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			unauthorized(w, "Malformed Authorization header")
			return
		}
		email, err := a.Verify(strings.TrimSpace(token))
		if err != nil {
			unauthorized(w, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), email)))
	})
}

// Require rejects requests that carry no operator.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := Operator(r.Context()); !ok {
			unauthorized(w, "Operator login required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
