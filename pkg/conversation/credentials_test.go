package conversation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchAPIKey(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"apiKey": "secret-key"}`))
		}))
		defer srv.Close()

		key, err := FetchAPIKey(context.Background(), srv.URL+"/api/get-api-key")
		if err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		if key != "secret-key" {
			t.Errorf("expected secret-key, got %q", key)
		}
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not configured", http.StatusInternalServerError)
		}))
		defer srv.Close()

		if _, err := FetchAPIKey(context.Background(), srv.URL); err == nil {
			t.Error("expected error for 500 response")
		}
	})

	t.Run("empty key", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		if _, err := FetchAPIKey(context.Background(), srv.URL); !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("expected ErrMissingAPIKey, got %v", err)
		}
	})
}
