package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyCheck(t *testing.T) {
	handler := APIKeyCheck("frontend-key")(okHandler())

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong key", "other-key", http.StatusUnauthorized},
		{"correct key", "frontend-key", http.StatusOK},
	}

	for _, c := range cases {
		req := httptest.NewRequest("GET", "/api/v1/health", nil)
		if c.header != "" {
			req.Header.Set("API-KEY", c.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != c.want {
			t.Errorf("%s: expected %d, got %d", c.name, c.want, rec.Code)
		}
	}
}

func TestAPIKeyCheck_DisabledWhenUnconfigured(t *testing.T) {
	handler := APIKeyCheck("")(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected pass-through with no configured key, got %d", rec.Code)
	}
}
