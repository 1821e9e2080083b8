package igdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"gametrack/pkg/cachestore"
	"gametrack/pkg/logging"
)

const (
	tokenCacheKey      = "igdb:token"
	defaultTokenExpiry = 3600 // seconds, when the provider omits expires_in
)

// TokenSource lazily exchanges client credentials for a bearer token and
// caches it in the shared store until expiry. Concurrent callers may race to
// refresh; the duplicate exchange is wasted work, not a correctness problem,
// so no lock is taken across processes.
type TokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	store        cachestore.Store
	httpClient   *http.Client
	logger       *logging.Logger
}

// NewTokenSource creates a token source backed by the shared cache store.
func NewTokenSource(tokenURL, clientID, clientSecret string, store cachestore.Store, logger *logging.Logger) *TokenSource {
	if logger == nil {
		logger = logging.NewLogger("error", "json")
	}
	return &TokenSource{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		store:        store,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       logger,
	}
}

// Token returns a cached token if one is still valid, refreshing otherwise.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	cached, err := t.store.Get(tokenCacheKey)
	if err == nil {
		return string(cached), nil
	}
	if !errors.Is(err, cachestore.ErrNotFound) {
		return "", fmt.Errorf("reading cached token: %w", err)
	}

	return t.refresh(ctx)
}

func (t *TokenSource) refresh(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {t.clientID},
		"client_secret": {t.clientSecret},
		"grant_type":    {"client_credentials"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access_token")
	}

	expiresIn := token.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultTokenExpiry
	}

	if err := t.store.Set(tokenCacheKey, []byte(token.AccessToken), time.Duration(expiresIn)*time.Second); err != nil {
		// Failing to cache only costs an extra exchange next time
		t.logger.WithIGDB().WithError(err).Warn("failed to cache token")
	}

	t.logger.WithIGDB().WithField("expires_in", expiresIn).Debug("refreshed IGDB token")
	return token.AccessToken, nil
}
