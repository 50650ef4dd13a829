package zoom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelajfisher/call-logger/internal/metrics"
	"github.com/angelajfisher/call-logger/internal/types"
	glog "github.com/goliatone/go-logger/glog"
)

const DefaultAPIURL = "https://api.zoom.us"

type ClientConfig struct {
	APIURL     string
	Tokens     *TokenCache
	HTTPClient *http.Client
	Logger     glog.Logger
	Metrics    *metrics.Metrics
}

// Client looks up Zoom users to turn opaque host IDs into readable identities
type Client struct {
	apiURL     string
	tokens     *TokenCache
	httpClient *http.Client
	logger     glog.Logger
	metrics    *metrics.Metrics
}

type user struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

func NewClient(cfg ClientConfig) *Client {
	apiURL := strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = glog.Nop()
	}

	return &Client{
		apiURL:     apiURL,
		tokens:     cfg.Tokens,
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// ResolveActor returns the email (or display name) of the given Zoom user.
// Lookup is best-effort: any failure is logged and hostID is returned unchanged.
func (c *Client) ResolveActor(ctx context.Context, hostID string) string {
	if c == nil || strings.TrimSpace(hostID) == "" {
		return hostID
	}

	identity, err := c.lookup(ctx, hostID)
	if err != nil {
		c.metrics.IdentityLookup(metrics.ResultFailure)
		c.logger.Warn("could not resolve zoom host, using raw id", "host_id", hostID, "error", err)
		return hostID
	}
	if identity == "" {
		c.metrics.IdentityLookup(metrics.ResultSkipped)
		c.logger.Debug("zoom user has no identity field, using raw id", "host_id", hostID)
		return hostID
	}

	c.metrics.IdentityLookup(metrics.ResultSuccess)
	return identity
}

func (c *Client) lookup(ctx context.Context, hostID string) (string, error) {
	if c.tokens == nil {
		return "", types.ConfigurationError("ZOOM_CLIENT_ID")
	}
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/v2/users/"+url.PathEscape(hostID), nil)
	if err != nil {
		return "", fmt.Errorf("could not build user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", types.UpstreamLookupError(err, "zoom user lookup failed", map[string]any{"host_id": hostID})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.UpstreamLookupError(err, "could not read zoom user response", map[string]any{"host_id": hostID})
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", types.UpstreamLookupError(
			nil,
			fmt.Sprintf("zoom user lookup failed: status=%d message=%s", resp.StatusCode, strings.TrimSpace(string(body))),
			map[string]any{"host_id": hostID, "status": resp.StatusCode},
		)
	}

	var found user
	if err = json.Unmarshal(body, &found); err != nil {
		return "", types.UpstreamLookupError(err, "could not decode zoom user response", map[string]any{"host_id": hostID})
	}

	if email := strings.TrimSpace(found.Email); email != "" {
		return email, nil
	}
	return strings.TrimSpace(found.DisplayName), nil
}
