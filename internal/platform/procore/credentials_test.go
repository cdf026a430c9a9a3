package procore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tiergate/internal/platform/config"
)

func tokenServer(t *testing.T, wantGrant string, grants *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("Bad form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != wantGrant {
			t.Errorf("Expected grant_type %q, got %q", wantGrant, got)
		}
		*grants++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-new",
			"refresh_token": "refresh-new",
			"expires_in":    7200,
		})
	}))
}

func credsConfig(tokenURL string) config.ProcoreConfig {
	return config.ProcoreConfig{
		TokenURL:       tokenURL,
		ClientID:       "client",
		ClientSecret:   "secret",
		RedirectURI:    "http://localhost/oauth/callback",
		RequestTimeout: 5 * time.Second,
	}
}

func TestCredentials_Authenticate(t *testing.T) {
	grants := 0
	server := tokenServer(t, "authorization_code", &grants)
	defer server.Close()

	creds := NewCredentials(credsConfig(server.URL))
	if err := creds.Authenticate(context.Background(), "the-code"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if grants != 1 {
		t.Errorf("Expected 1 grant call, got %d", grants)
	}
	if creds.Token() != "access-new" {
		t.Errorf("Expected access-new, got %q", creds.Token())
	}
	if !creds.EnsureValid(context.Background()) {
		t.Error("Expected fresh token to be valid without refresh")
	}
	if grants != 1 {
		t.Errorf("EnsureValid on a fresh token must not hit the token endpoint, got %d calls", grants)
	}
}

func TestCredentials_EnsureValidRefreshesExpiredToken(t *testing.T) {
	grants := 0
	server := tokenServer(t, "refresh_token", &grants)
	defer server.Close()

	creds := NewCredentials(credsConfig(server.URL))
	creds.SetTokens("stale", "refresh-old", time.Now().Add(-time.Minute))

	if !creds.EnsureValid(context.Background()) {
		t.Fatal("Expected refresh to succeed")
	}
	if grants != 1 {
		t.Errorf("Expected 1 refresh call, got %d", grants)
	}
	if creds.Token() != "access-new" {
		t.Errorf("Expected refreshed token, got %q", creds.Token())
	}
}

func TestCredentials_RefreshFailureKeepsStaleToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	creds := NewCredentials(credsConfig(server.URL))
	creds.SetTokens("stale", "refresh-old", time.Now().Add(-time.Minute))

	if creds.EnsureValid(context.Background()) {
		t.Fatal("Expected EnsureValid to fail when the token endpoint rejects")
	}
	if creds.Token() != "stale" {
		t.Errorf("Expected the prior token left in place, got %q", creds.Token())
	}
	if !creds.HasToken() {
		t.Error("Expected HasToken to still report the stale token")
	}
}

func TestCredentials_EnsureValidWithoutAnyToken(t *testing.T) {
	creds := NewCredentials(credsConfig("http://unused"))
	if creds.EnsureValid(context.Background()) {
		t.Error("Expected no token to be invalid")
	}
	if creds.HasToken() {
		t.Error("Expected HasToken false with no token")
	}
}

func TestCredentials_RefreshSkipsWhenAlreadyReplaced(t *testing.T) {
	grants := 0
	server := tokenServer(t, "refresh_token", &grants)
	defer server.Close()

	creds := NewCredentials(credsConfig(server.URL))
	creds.SetTokens("replacement", "refresh", time.Now().Add(time.Hour))

	// The failed request used "old"; a concurrent handler already swapped
	// the token, so no second refresh call should fire.
	if !creds.Refresh(context.Background(), "old") {
		t.Fatal("Expected Refresh to succeed by reusing the replacement token")
	}
	if grants != 0 {
		t.Errorf("Expected no token endpoint calls, got %d", grants)
	}
	if creds.Token() != "replacement" {
		t.Errorf("Expected replacement token kept, got %q", creds.Token())
	}
}
