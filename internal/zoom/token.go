package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/angelajfisher/call-logger/internal/metrics"
	"github.com/angelajfisher/call-logger/internal/types"
	glog "github.com/goliatone/go-logger/glog"
)

const DefaultOAuthURL = "https://zoom.us"

// Subtracted from the server-reported token lifetime
const expirySafetyMargin = 60 * time.Second

type TokenCacheConfig struct {
	AccountID    string
	ClientID     string
	ClientSecret string
	OAuthURL     string
	HTTPClient   *http.Client
	Now          func() time.Time
	Logger       glog.Logger
	Metrics      *metrics.Metrics
}

// TokenCache holds the single server-to-server OAuth token shared by every request.
//
// The lock only guards the cached pair, never the exchange itself, so concurrent callers that all see an
// expired token may each perform an exchange. The last one to finish is kept.
type TokenCache struct {
	accountID    string
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client
	now          func() time.Time
	logger       glog.Logger
	metrics      *metrics.Metrics

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

func NewTokenCache(cfg TokenCacheConfig) *TokenCache {
	oauthURL := strings.TrimRight(strings.TrimSpace(cfg.OAuthURL), "/")
	if oauthURL == "" {
		oauthURL = DefaultOAuthURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = glog.Nop()
	}

	return &TokenCache{
		accountID:    strings.TrimSpace(cfg.AccountID),
		clientID:     strings.TrimSpace(cfg.ClientID),
		clientSecret: strings.TrimSpace(cfg.ClientSecret),
		tokenURL:     oauthURL + "/oauth/token",
		httpClient:   httpClient,
		now:          now,
		logger:       logger,
		metrics:      cfg.Metrics,
	}
}

// Get returns the cached token while it is valid, exchanging client credentials for a new one otherwise
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}
	return c.ForceRefresh(ctx)
}

// ForceRefresh exchanges client credentials regardless of the cached token's validity
func (c *TokenCache) ForceRefresh(ctx context.Context) (string, error) {
	switch {
	case c.accountID == "":
		return "", types.ConfigurationError("ZOOM_ACCOUNT_ID")
	case c.clientID == "":
		return "", types.ConfigurationError("ZOOM_CLIENT_ID")
	case c.clientSecret == "":
		return "", types.ConfigurationError("ZOOM_CLIENT_SECRET")
	}

	issued, err := c.exchange(ctx)
	if err != nil {
		c.metrics.TokenExchange(metrics.ResultFailure)
		return "", err
	}
	c.metrics.TokenExchange(metrics.ResultSuccess)

	expiresAt := c.now().Add(time.Duration(issued.ExpiresIn)*time.Second - expirySafetyMargin)

	c.mu.Lock()
	c.token = issued.AccessToken
	c.expiresAt = expiresAt
	c.mu.Unlock()

	c.logger.Debug("zoom access token refreshed", "expires_at", expiresAt.UTC().Format(time.RFC3339))
	return issued.AccessToken, nil
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == "" || !c.now().Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

func (c *TokenCache) exchange(ctx context.Context) (tokenResponse, error) {
	query := url.Values{}
	query.Set("grant_type", "account_credentials")
	query.Set("account_id", c.accountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL+"?"+query.Encode(), nil)
	if err != nil {
		return tokenResponse{}, fmt.Errorf("could not build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tokenResponse{}, types.UpstreamAuthError(err, "zoom token exchange failed", nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tokenResponse{}, types.UpstreamAuthError(err, "could not read zoom token response", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return tokenResponse{}, types.UpstreamAuthError(
			nil,
			fmt.Sprintf("zoom token exchange failed: status=%d message=%s", resp.StatusCode, strings.TrimSpace(string(body))),
			map[string]any{"status": resp.StatusCode},
		)
	}

	var issued tokenResponse
	if err = json.Unmarshal(body, &issued); err != nil {
		return tokenResponse{}, types.UpstreamAuthError(err, "could not decode zoom token response", nil)
	}
	if strings.TrimSpace(issued.AccessToken) == "" {
		return tokenResponse{}, types.UpstreamAuthError(nil, "zoom token response did not include an access token", nil)
	}

	return issued, nil
}
