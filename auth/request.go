package auth

import (
	"net/http"
	"strings"
)

// TokenFromRequest reads the token of a WebSocket handshake.
// Browsers cannot set headers on upgrade requests, so the query parameter is accepted too.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	// Expecting the standard "Bearer <token>" format
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
