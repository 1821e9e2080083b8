package igdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gametrack/pkg/cachestore"
)

func TestTokenSource_ExchangeAndCache(t *testing.T) {
	exchanges := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", got)
		}
		if got := r.Form.Get("client_id"); got != "id" {
			t.Errorf("client_id = %q, want id", got)
		}
		w.Write([]byte(`{"access_token": "abc123", "expires_in": 5000}`))
	}))
	defer server.Close()

	store := cachestore.NewMemoryStore()
	source := NewTokenSource(server.URL, "id", "secret", store, nil)

	token, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if token != "abc123" {
		t.Errorf("Token = %q, want abc123", token)
	}

	// Second call must come from the cache
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatalf("second Token returned error: %v", err)
	}
	if exchanges != 1 {
		t.Errorf("token endpoint saw %d exchanges, want 1", exchanges)
	}
}

func TestTokenSource_RefreshAfterExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token": "fresh", "expires_in": 3600}`))
	}))
	defer server.Close()

	store := cachestore.NewMemoryStore()
	source := NewTokenSource(server.URL, "id", "secret", store, nil)

	// Simulate an expired cache entry by removing the key
	if _, err := source.Token(context.Background()); err != nil {
		t.Fatalf("Token returned error: %v", err)
	}
	if err := store.Delete("igdb:token"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	token, err := source.Token(context.Background())
	if err != nil {
		t.Fatalf("Token after expiry returned error: %v", err)
	}
	if token != "fresh" {
		t.Errorf("Token = %q, want fresh", token)
	}
}

func TestTokenSource_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "invalid client"}`))
	}))
	defer server.Close()

	source := NewTokenSource(server.URL, "id", "bad-secret", cachestore.NewMemoryStore(), nil)

	if _, err := source.Token(context.Background()); err == nil {
		t.Error("Token returned nil error for 403 response")
	}
}
