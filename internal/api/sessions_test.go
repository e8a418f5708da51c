package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestListSessions_RequiresTenant(t *testing.T) {
	srv := testServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)

	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("GET /sessions without tenant status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorEnvelope(t, w); body.Code != "missing_tenant" {
		t.Errorf("error code = %q, want %q", body.Code, "missing_tenant")
	}
}

func TestGetSession_InvalidID(t *testing.T) {
	srv := testServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/banana?tenant=acme", nil)

	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("GET /sessions/{bad id} status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorEnvelope(t, w); body.Code != "invalid_id" {
		t.Errorf("error code = %q, want %q", body.Code, "invalid_id")
	}
}

func TestListTurns_RequiresTenant(t *testing.T) {
	srv := testServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+uuid.New().String()+"/turns", nil)

	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("GET /sessions/{id}/turns without tenant status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorEnvelope(t, w); body.Code != "missing_tenant" {
		t.Errorf("error code = %q, want %q", body.Code, "missing_tenant")
	}
}

func TestDeleteSession_RequiresTenant(t *testing.T) {
	srv := testServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+uuid.New().String(), nil)

	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("DELETE /sessions without tenant status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorEnvelope(t, w); body.Code != "missing_tenant" {
		t.Errorf("error code = %q, want %q", body.Code, "missing_tenant")
	}
}

func TestEnsureIndex_RequiresTenant(t *testing.T) {
	srv := testServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/indexes", strings.NewReader(`{}`))

	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("POST /indexes without tenant status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorEnvelope(t, w); body.Code != "invalid_input" {
		t.Errorf("error code = %q, want %q", body.Code, "invalid_input")
	}
}

func TestStats_RequiresTenant(t *testing.T) {
	srv := testServer(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)

	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("GET /stats without tenant status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorEnvelope(t, w); body.Code != "missing_tenant" {
		t.Errorf("error code = %q, want %q", body.Code, "missing_tenant")
	}
}
