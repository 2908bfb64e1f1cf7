package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := TokenFromContext(r.Context())
		if token.Zero() {
			t.Fatal("token missing from context behind middleware")
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(token.User))
	})
}

func TestRequireTokenAcceptsLiveSession(t *testing.T) {
	sessions := NewTokenTable(time.Minute)
	if err := sessions.Put(context.Background(), "key-1", AuthToken{User: "alice", IssuedAt: time.Now()}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	handler := RequireToken(sessions)(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer key-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "alice" {
		t.Fatalf("expected identity alice, got %q", rec.Body.String())
	}
}

func TestRequireTokenMissingHeader(t *testing.T) {
	handler := RequireToken(NewTokenTable(time.Minute))(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireTokenUnknownKey(t *testing.T) {
	handler := RequireToken(NewTokenTable(time.Minute))(protectedEcho(t))

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestTokenFromContextWithoutMiddleware(t *testing.T) {
	token := TokenFromContext(context.Background())
	if !token.Zero() {
		t.Fatal("expected zero token")
	}
}
