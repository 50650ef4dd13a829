package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/angelajfisher/call-logger/internal/types"
)

var sampleRecord = types.CanonicalRecord{
	Actor:           "+15551234567",
	Subject:         "+15557654321",
	DurationMinutes: 42,
	Category:        types.CategoryCallEnded,
	OccurredAt:      "2024-01-01T00:00:00.000Z",
}

func TestCreatePageSendsExpectedRequest(t *testing.T) {
	var capturedAuth string
	var capturedVersion string
	var capturedPath string
	var capturedBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedAuth = r.Header.Get("Authorization")
		capturedVersion = r.Header.Get("Notion-Version")
		capturedPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&capturedBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := NewSink(Config{
		APIKey:     "secret_abc",
		DatabaseID: "db_1",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
	if err := sink.CreatePage(context.Background(), sampleRecord); err != nil {
		t.Fatalf("create page failed: %v", err)
	}

	if capturedPath != "/v1/pages" {
		t.Fatalf("expected pages path, got %s", capturedPath)
	}
	if capturedAuth != "Bearer secret_abc" {
		t.Fatalf("expected bearer auth, got %q", capturedAuth)
	}
	if capturedVersion != DefaultAPIVersion {
		t.Fatalf("expected Notion-Version %s, got %q", DefaultAPIVersion, capturedVersion)
	}

	parent := capturedBody["parent"].(map[string]any)
	if parent["database_id"] != "db_1" {
		t.Fatalf("expected database parent, got %+v", parent)
	}
	properties := capturedBody["properties"].(map[string]any)
	title := properties["Caller"].(map[string]any)["title"].([]any)[0].(map[string]any)["text"].(map[string]any)["content"]
	if title != "+15551234567" {
		t.Fatalf("expected caller title, got %v", title)
	}
	if properties["Duration"].(map[string]any)["number"] != float64(42) {
		t.Fatalf("expected duration number, got %+v", properties["Duration"])
	}
	if properties["Type"].(map[string]any)["select"].(map[string]any)["name"] != "Phone Call" {
		t.Fatalf("expected Phone Call select, got %+v", properties["Type"])
	}
	if properties["Date"].(map[string]any)["date"].(map[string]any)["start"] != "2024-01-01T00:00:00.000Z" {
		t.Fatalf("expected date start, got %+v", properties["Date"])
	}
}

func TestBuildPageOmitsRecordingWithoutMedia(t *testing.T) {
	sink := NewSink(Config{APIKey: "k", DatabaseID: "db_1"})

	encoded, err := json.Marshal(sink.BuildPage(sampleRecord))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(encoded), `"Recording"`) {
		t.Fatalf("expected no recording key, got %s", encoded)
	}
	if strings.Contains(string(encoded), "null") {
		t.Fatalf("expected no null values, got %s", encoded)
	}

	withMedia := sampleRecord
	withMedia.MediaURL = "https://zoom.us/rec/1"
	properties := sink.BuildPage(withMedia)["properties"].(map[string]any)
	recording, ok := properties["Recording"].(map[string]any)
	if !ok || recording["url"] != "https://zoom.us/rec/1" {
		t.Fatalf("expected recording url property, got %+v", properties["Recording"])
	}
}

func TestBuildPageUsesPropertyOverrides(t *testing.T) {
	sink := NewSink(Config{
		APIKey:     "k",
		DatabaseID: "db_1",
		Properties: PropertyNames{Title: "Who", Recording: "Media", Type: "  "},
	})
	record := sampleRecord
	record.MediaURL = "https://zoom.us/rec/1"

	properties := sink.BuildPage(record)["properties"].(map[string]any)
	for _, name := range []string{"Who", "Phone Number", "Duration", "Type", "Date", "Media"} {
		if _, ok := properties[name]; !ok {
			t.Fatalf("expected property %q, got %v", name, properties)
		}
	}
	if _, ok := properties["Caller"]; ok {
		t.Fatalf("overridden title should replace default name")
	}
}

func TestCreatePageReturnsDeliveryErrorOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"object":"error","status":400,"code":"validation_error","message":"Caller is not a property"}`))
	}))
	defer server.Close()

	sink := NewSink(Config{APIKey: "k", DatabaseID: "db_1", BaseURL: server.URL, HTTPClient: server.Client()})
	err := sink.CreatePage(context.Background(), sampleRecord)
	if err == nil {
		t.Fatalf("expected delivery error")
	}
	if !types.IsTextCode(err, types.ErrorDelivery) {
		t.Fatalf("expected delivery text code, got %v", err)
	}
	if !strings.Contains(err.Error(), "validation_error") {
		t.Fatalf("expected error to include response code, got %v", err)
	}
}

func TestDeliverDoesNotRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	sink := NewSink(Config{APIKey: "k", DatabaseID: "db_1", BaseURL: server.URL, HTTPClient: server.Client()})
	sink.Deliver(context.Background(), sampleRecord)

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", atomic.LoadInt32(&calls))
	}
}

func TestDeliverSkipsWithoutDatabase(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	sink := NewSink(Config{APIKey: "k", BaseURL: server.URL, HTTPClient: server.Client()})
	sink.Deliver(context.Background(), sampleRecord)

	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("expected no request without a database id, got %d", atomic.LoadInt32(&calls))
	}
	if err := sink.CreatePage(context.Background(), sampleRecord); !types.IsTextCode(err, types.ErrorConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestVerifyProxiesDatabaseRead(t *testing.T) {
	var capturedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized"}`))
	}))
	defer server.Close()

	sink := NewSink(Config{APIKey: "k", DatabaseID: "db_1", BaseURL: server.URL, HTTPClient: server.Client()})
	result, err := sink.Verify(context.Background())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if capturedPath != "/v1/databases/db_1" {
		t.Fatalf("expected database read, got %s", capturedPath)
	}
	if result.StatusCode != http.StatusUnauthorized || string(result.Body) != `{"code":"unauthorized"}` {
		t.Fatalf("expected proxied status and body, got %d %s", result.StatusCode, result.Body)
	}
}
