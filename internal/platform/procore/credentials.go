package procore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"tiergate/internal/platform/config"
)

// expirySkew is subtracted from the reported token lifetime so a token is
// refreshed before it actually lapses mid-request.
const expirySkew = 60 * time.Second

// Credentials holds the OAuth2 access/refresh token pair for the Procore API
// and refreshes it through the refresh-token grant. All state is guarded by a
// single mutex: a refresh fully completes (or fails) before any dependent
// request proceeds, and concurrent webhook handlers sharing one instance
// serialize their refresh attempts instead of racing.
type Credentials struct {
	mu sync.Mutex

	tokenURL     string
	clientID     string
	clientSecret string
	redirectURI  string
	httpClient   *http.Client

	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func NewCredentials(cfg config.ProcoreConfig) *Credentials {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Credentials{
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// SetTokens seeds a token pair directly, e.g. from config or a test.
func (c *Credentials) SetTokens(access, refresh string, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	c.refreshToken = refresh
	c.expiresAt = expiresAt
}

// Authenticate exchanges an authorization code for the initial token pair.
func (c *Credentials) Authenticate(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.redirectURI},
	}
	return c.grantLocked(ctx, form)
}

// EnsureValid reports whether a usable access token is held, refreshing it
// first if it has expired. On refresh failure the prior (stale) token is left
// in place and false is returned; callers must abort the current decision
// rather than proceed unauthenticated.
func (c *Credentials) EnsureValid(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt) {
		return true
	}
	if c.refreshToken == "" {
		return false
	}
	if err := c.refreshLocked(ctx); err != nil {
		log.Error().Err(err).Msg("token refresh failed")
		return false
	}
	return true
}

// Token returns the current access token. It does not refresh; pair with
// EnsureValid or Refresh.
func (c *Credentials) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// HasToken reports whether any access token is held, expired or not.
func (c *Credentials) HasToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != ""
}

// Refresh forces a refresh after an unauthorized response. staleToken is the
// token the failed request used: if another goroutine already replaced it,
// the refresh is skipped and the newer token is reused.
func (c *Credentials) Refresh(ctx context.Context, staleToken string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.accessToken != staleToken {
		return true
	}
	if c.refreshToken == "" {
		return false
	}
	if err := c.refreshLocked(ctx); err != nil {
		log.Error().Err(err).Msg("token refresh failed")
		return false
	}
	return true
}

func (c *Credentials) refreshLocked(ctx context.Context) error {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.refreshToken},
	}
	return c.grantLocked(ctx, form)
}

// grantLocked performs a token-endpoint grant and swaps the stored pair on
// success. Callers hold c.mu.
func (c *Credentials) grantLocked(ctx context.Context, form url.Values) error {
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("token endpoint returned HTTP %d", resp.StatusCode)
	}

	var grant struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return err
	}
	if grant.AccessToken == "" {
		return fmt.Errorf("token endpoint returned empty access token")
	}

	c.accessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		c.refreshToken = grant.RefreshToken
	}
	lifetime := time.Duration(grant.ExpiresIn) * time.Second
	if lifetime > expirySkew {
		lifetime -= expirySkew
	}
	c.expiresAt = time.Now().Add(lifetime)

	return nil
}
