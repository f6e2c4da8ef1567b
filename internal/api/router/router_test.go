package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthz(t *testing.T) {
	r := New(&Config{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("expected ok body, got %q", rec.Body.String())
	}
}

func TestUnwiredRoutesAre404(t *testing.T) {
	r := New(&Config{})

	paths := []string{
		"/webhooks/paystack",
		"/metrics",
		"/api/payments/initialize",
	}
	for _, path := range paths {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
		if rec.Code != http.StatusNotFound && rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected unwired %s to miss, got %d", path, rec.Code)
		}
	}
}
