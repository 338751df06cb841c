package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthRoutes(t *testing.T) {
	router := NewRouter(RouterServices{})

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/health", healthResponse},
		{http.MethodGet, "/healthz", healthResponse},
		{http.MethodHead, "/health", ""},
		{http.MethodHead, "/healthz", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Fatalf("expected content-type application/json, got %q", ct)
			}
			if cc := rec.Header().Get("Cache-Control"); cc != "no-store" {
				t.Fatalf("expected no-store cache control, got %q", cc)
			}
			if got := rec.Body.String(); got != tt.body {
				t.Fatalf("unexpected body: %q", got)
			}
		})
	}
}

func TestHealthRoutes_RejectPost(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(RouterServices{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
