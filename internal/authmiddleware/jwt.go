// Package authmiddleware gates the manual trigger endpoint behind a
// bearer-token check: an HS256 compact JWS verified against the
// process-wide key, with expiry enforcement. Deliberately thin — no
// claims-based authorization, since the trigger surface needs none.
package authmiddleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

type claims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"`
}

// VerifyToken checks an HS256 compact JWS against key and returns the
// subject claim.
func VerifyToken(token string, key []byte) (string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", false
	}

	var header struct {
		Alg string `json:"alg"`
	}
	headerRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil || json.Unmarshal(headerRaw, &header) != nil || header.Alg != "HS256" {
		return "", false
	}

	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", false
	}
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	if !hmac.Equal(signature, mac.Sum(nil)) {
		return "", false
	}

	payloadRaw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", false
	}
	var payload claims
	if json.Unmarshal(payloadRaw, &payload) != nil {
		return "", false
	}
	if payload.Exp != 0 && payload.Exp <= time.Now().Unix() {
		return "", false
	}
	return payload.Sub, true
}

// Middleware rejects requests without a valid bearer token. The error
// payload is generic on purpose.
func Middleware(key []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authorization, "Bearer ")
			if !ok {
				unauthorized(w)
				return
			}
			if _, valid := VerifyToken(token, key); !valid {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Invalid token"}`))
}
