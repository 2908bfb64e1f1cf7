package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONSetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]string{"ok": "yes"})

	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestProblemShape(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, http.StatusConflict, "Conflict", "id already in use")

	var detail ProblemDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if detail.Status != http.StatusConflict || detail.Title != "Conflict" {
		t.Fatalf("unexpected problem %+v", detail)
	}
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"alice"}`))
	var body struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(req, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Name != "alice" {
		t.Fatalf("expected alice, got %q", body.Name)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	if err := DecodeJSON(req, &body); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}
