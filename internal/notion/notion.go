package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/angelajfisher/call-logger/internal/metrics"
	"github.com/angelajfisher/call-logger/internal/types"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	DefaultBaseURL    = "https://api.notion.com"
	DefaultAPIVersion = "2022-06-28"
)

// PropertyNames are the database column names each record field is written to
type PropertyNames struct {
	Title     string
	Subject   string
	Duration  string
	Type      string
	Date      string
	Recording string
}

func DefaultPropertyNames() PropertyNames {
	return PropertyNames{
		Title:     "Caller",
		Subject:   "Phone Number",
		Duration:  "Duration",
		Type:      "Type",
		Date:      "Date",
		Recording: "Recording",
	}
}

// withDefaults fills any blank name from DefaultPropertyNames
func (p PropertyNames) withDefaults() PropertyNames {
	defaults := DefaultPropertyNames()
	pick := func(value string, fallback string) string {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
		return fallback
	}
	return PropertyNames{
		Title:     pick(p.Title, defaults.Title),
		Subject:   pick(p.Subject, defaults.Subject),
		Duration:  pick(p.Duration, defaults.Duration),
		Type:      pick(p.Type, defaults.Type),
		Date:      pick(p.Date, defaults.Date),
		Recording: pick(p.Recording, defaults.Recording),
	}
}

type Config struct {
	APIKey     string
	DatabaseID string
	BaseURL    string
	APIVersion string
	Properties PropertyNames
	HTTPClient *http.Client
	Logger     glog.Logger
	Metrics    *metrics.Metrics
}

// Sink writes canonical records as pages in a Notion database. Writes are attempted once.
type Sink struct {
	apiKey     string
	databaseID string
	baseURL    string
	apiVersion string
	properties PropertyNames
	httpClient *http.Client
	logger     glog.Logger
	metrics    *metrics.Metrics
}

func NewSink(cfg Config) *Sink {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	apiVersion := strings.TrimSpace(cfg.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = glog.Nop()
	}

	return &Sink{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		databaseID: strings.TrimSpace(cfg.DatabaseID),
		baseURL:    baseURL,
		apiVersion: apiVersion,
		properties: cfg.Properties.withDefaults(),
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// Deliver writes record and logs the outcome. It never fails to the caller.
func (s *Sink) Deliver(ctx context.Context, record types.CanonicalRecord) {
	err := s.CreatePage(ctx, record)
	switch {
	case err == nil:
		s.metrics.RecordDelivered(metrics.ResultSuccess)
		s.logger.Info("record delivered", "category", record.Category, "subject", record.Subject)
	case types.IsTextCode(err, types.ErrorConfiguration):
		s.metrics.RecordDelivered(metrics.ResultSkipped)
		s.logger.Error("record not delivered, destination is not configured", "error", err)
	default:
		s.metrics.RecordDelivered(metrics.ResultFailure)
		s.logger.Error("could not deliver record", "category", record.Category, "subject", record.Subject, "error", err)
	}
}

// CreatePage performs a single page-creation request for record
func (s *Sink) CreatePage(ctx context.Context, record types.CanonicalRecord) error {
	if s.databaseID == "" {
		return types.ConfigurationError("NOTION_DATABASE_ID")
	}
	if s.apiKey == "" {
		return types.ConfigurationError("NOTION_API_KEY")
	}

	body, err := json.Marshal(s.BuildPage(record))
	if err != nil {
		return fmt.Errorf("could not encode page: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, "/v1/pages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return types.DeliveryError(err, "notion write failed", nil)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.DeliveryError(err, "could not read notion response", nil)
	}
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	return types.DeliveryError(nil, describeFailure(resp.StatusCode, respBody), map[string]any{"status": resp.StatusCode})
}

// BuildPage maps record onto the page-creation body. The recording property is left out entirely when
// the record has no media URL.
func (s *Sink) BuildPage(record types.CanonicalRecord) map[string]any {
	properties := map[string]any{
		s.properties.Title: map[string]any{
			"title": []any{textContent(record.Actor)},
		},
		s.properties.Subject: map[string]any{
			"rich_text": []any{textContent(record.Subject)},
		},
		s.properties.Duration: map[string]any{
			"number": record.DurationMinutes,
		},
		s.properties.Type: map[string]any{
			"select": map[string]any{"name": record.Category.Label()},
		},
		s.properties.Date: map[string]any{
			"date": map[string]any{"start": record.OccurredAt},
		},
	}
	if record.MediaURL != "" {
		properties[s.properties.Recording] = map[string]any{"url": record.MediaURL}
	}

	return map[string]any{
		"parent":     map[string]any{"database_id": s.databaseID},
		"properties": properties,
	}
}

// VerifyResult is Notion's raw answer to a database read
type VerifyResult struct {
	StatusCode int
	Body       []byte
}

// Verify reads the configured database to check the credentials
func (s *Sink) Verify(ctx context.Context) (VerifyResult, error) {
	if s.databaseID == "" {
		return VerifyResult{}, types.ConfigurationError("NOTION_DATABASE_ID")
	}
	if s.apiKey == "" {
		return VerifyResult{}, types.ConfigurationError("NOTION_API_KEY")
	}

	req, err := s.newRequest(ctx, http.MethodGet, "/v1/databases/"+s.databaseID, nil)
	if err != nil {
		return VerifyResult{}, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return VerifyResult{}, types.DeliveryError(err, "notion verify request failed", nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return VerifyResult{}, types.DeliveryError(err, "could not read notion response", nil)
	}
	return VerifyResult{StatusCode: resp.StatusCode, Body: body}, nil
}

func (s *Sink) newRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("could not build notion request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Notion-Version", s.apiVersion)
	return req, nil
}

func textContent(content string) map[string]any {
	return map[string]any{"text": map[string]any{"content": content}}
}

func describeFailure(status int, body []byte) string {
	errCode := ""
	errMessage := strings.TrimSpace(string(body))
	var parsed map[string]any
	if json.Unmarshal(body, &parsed) == nil {
		if code, ok := parsed["code"].(string); ok {
			errCode = code
		}
		if message, ok := parsed["message"].(string); ok && strings.TrimSpace(message) != "" {
			errMessage = message
		}
	}
	if errCode != "" {
		return fmt.Sprintf("notion write failed: status=%d code=%s message=%s", status, errCode, errMessage)
	}
	return fmt.Sprintf("notion write failed: status=%d message=%s", status, errMessage)
}
