package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// codeUnauthorized is sent with a 401 so JSON-RPC clients get a parseable
// error object instead of a bare HTTP body.
const codeUnauthorized = -32600

// requireToken rejects requests whose Authorization header does not carry
// "Bearer <secret>". An empty secret rejects everything.
func requireToken(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !validToken(secret, r.Header.Get("Authorization")) {
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"error": map[string]any{
			"code":    codeUnauthorized,
			"message": "Unauthorized",
		},
		"id": nil,
	})
}

func validToken(secret, authHeader string) bool {
	if secret == "" {
		return false
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
