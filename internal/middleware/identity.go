package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// clientIPHeaders is the precedence chain for client IP extraction: the
// first hop of a forwarded-for chain, then the real-ip header, then known
// CDN headers. No match means the caller is unidentifiable by IP and ends
// up in the anonymous bucket.
var clientIPHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
}

// ClientIP extracts the best-effort client IP from request headers.
func ClientIP(r *http.Request) string {
	for _, header := range clientIPHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		if header == "X-Forwarded-For" {
			// first hop of the chain
			value = strings.TrimSpace(strings.Split(value, ",")[0])
		}
		if value != "" {
			return value
		}
	}
	return ""
}

// UserHint extracts an unverified user identifier from the session cookie
// or bearer token. The token signature is deliberately not checked: this
// value buckets rate limit quota and must never influence authorization.
func UserHint(r *http.Request) string {
	token := ""
	if cookie, err := r.Cookie("session"); err == nil {
		token = cookie.Value
	}
	if token == "" {
		auth := r.Header.Get("Authorization")
		if strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
	}
	if token == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}

	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if userID, ok := claims["userId"].(string); ok && userID != "" {
		return userID
	}
	return ""
}
