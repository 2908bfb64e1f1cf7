package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conceptforge/conceptforge/internal/auth"
	"github.com/conceptforge/conceptforge/internal/metaproject"
)

// newTestRouters mounts both surfaces behind a token table holding one admin
// session keyed "admin-key".
func newTestRouters(t *testing.T) (primary, admin chi.Router, f *Facade) {
	t.Helper()
	f, _ = newTestFacade(t)
	sessions := auth.NewTokenTable(time.Minute)
	if err := sessions.Put(context.Background(), "admin-key",
		auth.AuthToken{User: "admin", IssuedAt: time.Now()}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	handler := NewHandler(nil, f, nil)

	primary = chi.NewRouter()
	primary.Group(func(r chi.Router) {
		r.Use(auth.RequireToken(sessions))
		handler.MountRoutes(r)
	})
	admin = chi.NewRouter()
	admin.Group(func(r chi.Router) {
		r.Use(auth.RequireToken(sessions))
		handler.MountAdminRoutes(r)
	})
	return primary, admin, f
}

func doJSON(t *testing.T, router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer admin-key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRoutesRequireSession(t *testing.T) {
	primary, admin, _ := newTestRouters(t)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	rec := httptest.NewRecorder()
	primary.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on primary, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"id":"x","name":"X"}`))
	rec = httptest.NewRecorder()
	admin.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on admin, got %d", rec.Code)
	}
}

func TestUserLifecycleOverHTTP(t *testing.T) {
	primary, admin, _ := newTestRouters(t)

	rec := doJSON(t, admin, http.MethodPost, "/users", `{"id":"alice","name":"Alice","password":"s3cret"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Duplicate create conflicts.
	rec = doJSON(t, admin, http.MethodPost, "/users", `{"id":"alice","name":"Alice"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate user: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, primary, http.MethodGet, "/users", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", rec.Code)
	}
	var users []metaproject.User
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	rec = doJSON(t, admin, http.MethodDelete, "/users/alice", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete user: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, admin, http.MethodDelete, "/users/alice", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete missing user: expected 404, got %d", rec.Code)
	}
}

func TestProjectAndCommitOverHTTP(t *testing.T) {
	primary, admin, _ := newTestRouters(t)

	rec := doJSON(t, admin, http.MethodPost, "/projects", `{"id":"onto","name":"Proj A","owner":"admin"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created ServerDocument
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if created.HistoryFilePath == "" {
		t.Fatal("expected a history file path")
	}

	rec = doJSON(t, primary, http.MethodPost, "/projects/onto/open", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("open project: expected 200, got %d", rec.Code)
	}
	var opened ServerDocument
	if err := json.Unmarshal(rec.Body.Bytes(), &opened); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if opened != created {
		t.Fatalf("open returned %+v, create returned %+v", opened, created)
	}

	rec = doJSON(t, primary, http.MethodPost, "/projects/onto/commit",
		`{"base_revision":0,"commits":[{"metadata":{"author":"admin","timestamp":"2026-01-02T12:00:00Z"},"changes":[{"op":"add"}]}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("commit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Same bundle again is stale.
	rec = doJSON(t, primary, http.MethodPost, "/projects/onto/commit",
		`{"base_revision":0,"commits":[{"metadata":{"author":"admin","timestamp":"2026-01-02T12:00:00Z"}}]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("stale commit: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, primary, http.MethodGet, "/projects/onto/head", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("head: expected 200, got %d", rec.Code)
	}
	var head map[string]int64
	if err := json.Unmarshal(rec.Body.Bytes(), &head); err != nil {
		t.Fatalf("decode head: %v", err)
	}
	if head["head"] != 1 {
		t.Fatalf("expected head 1, got %d", head["head"])
	}

	rec = doJSON(t, primary, http.MethodGet, "/projects/missing/history", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("history of missing project: expected 404, got %d", rec.Code)
	}
}

func TestPolicyAndAllowedOverHTTP(t *testing.T) {
	primary, admin, _ := newTestRouters(t)

	doJSON(t, admin, http.MethodPost, "/users", `{"id":"alice","name":"Alice"}`)
	doJSON(t, admin, http.MethodPost, "/projects", `{"id":"onto","name":"onto","owner":"alice"}`)
	doJSON(t, admin, http.MethodPost, "/operations", `{"id":"write","name":"Write","kind":"write"}`)
	doJSON(t, admin, http.MethodPost, "/roles", `{"id":"editor","name":"Editor","operations":["write"]}`)

	rec := doJSON(t, admin, http.MethodPost, "/policy", `{"user":"alice","project":"onto","role":"editor"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("assign role: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, primary, http.MethodGet, "/allowed?operation=write&project=onto&user=alice", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("allowed: expected 200, got %d", rec.Code)
	}
	var verdict map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if !verdict["allowed"] {
		t.Fatal("expected allowed=true")
	}

	rec = doJSON(t, admin, http.MethodDelete, "/policy", `{"user":"alice","project":"onto","role":"editor"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("retract role: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, primary, http.MethodGet, "/allowed?operation=write&project=onto&user=alice", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if verdict["allowed"] {
		t.Fatal("expected allowed=false after retraction")
	}

	rec = doJSON(t, admin, http.MethodPost, "/policy", `{"user":"ghost","project":"onto","role":"editor"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("assign to unknown user: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, primary, http.MethodGet, "/allowed?operation=write", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("allowed without params: expected 400, got %d", rec.Code)
	}
}

func TestConfigurationOverHTTP(t *testing.T) {
	_, admin, _ := newTestRouters(t)

	rec := doJSON(t, admin, http.MethodPut, "/host", `{"uri":"https://onto.example.org"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set host: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, admin, http.MethodPut, "/host/secondary-port", `{"port":9090}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set port: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, admin, http.MethodGet, "/host", "")
	var host metaproject.Host
	if err := json.Unmarshal(rec.Body.Bytes(), &host); err != nil {
		t.Fatalf("decode host: %v", err)
	}
	if host.URI != "https://onto.example.org" || host.SecondaryPort != 9090 {
		t.Fatalf("unexpected host %+v", host)
	}

	rec = doJSON(t, admin, http.MethodPut, "/properties/motd", `{"value":"hello"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set property: expected 204, got %d", rec.Code)
	}
	rec = doJSON(t, admin, http.MethodGet, "/properties", "")
	var props map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &props); err != nil {
		t.Fatalf("decode properties: %v", err)
	}
	if props["motd"] != "hello" {
		t.Fatalf("expected motd=hello, got %q", props["motd"])
	}
	rec = doJSON(t, admin, http.MethodDelete, "/properties/motd", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unset property: expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, admin, http.MethodPut, "/host", `{"uri":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty host uri: expected 400, got %d", rec.Code)
	}
}
