package authmiddleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func signToken(t *testing.T, key []byte, sub string, exp int64) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"sub":%q,"exp":%d}`, sub, exp)))
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(header + "." + payload))
	signature := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return header + "." + payload + "." + signature
}

func TestVerifyToken(t *testing.T) {
	key := []byte("verification-key")
	future := time.Now().Add(time.Hour).Unix()

	sub, ok := VerifyToken(signToken(t, key, "user-1", future), key)
	if !ok || sub != "user-1" {
		t.Fatalf("valid token rejected: sub=%q ok=%v", sub, ok)
	}

	if _, ok := VerifyToken(signToken(t, []byte("other-key"), "user-1", future), key); ok {
		t.Fatal("token signed with a different key accepted")
	}

	if _, ok := VerifyToken(signToken(t, key, "user-1", time.Now().Add(-time.Minute).Unix()), key); ok {
		t.Fatal("expired token accepted")
	}

	if _, ok := VerifyToken("not-a-jwt", key); ok {
		t.Fatal("malformed token accepted")
	}
}

func TestMiddleware(t *testing.T) {
	key := []byte("verification-key")
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Middleware(key)(next)

	request := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d", recorder.Code)
	}

	request = httptest.NewRequest(http.MethodPost, "/trigger", nil)
	request.Header.Set("Authorization", "Bearer "+signToken(t, key, "user-1", time.Now().Add(time.Hour).Unix()))
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("valid token: status = %d", recorder.Code)
	}
}
