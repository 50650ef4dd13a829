// Mapping of Zoom webhook payloads onto the canonical record shape
package normalizer

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/angelajfisher/call-logger/internal/timestamps"
	"github.com/angelajfisher/call-logger/internal/types"
)

// ActorResolver turns an opaque host ID into a readable identity, returning the ID itself on failure
type ActorResolver interface {
	ResolveActor(ctx context.Context, hostID string) string
}

type Normalizer struct {
	resolver ActorResolver
	now      func() time.Time
}

// New builds a Normalizer. resolver may be nil, in which case host IDs are used as-is.
func New(resolver ActorResolver, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{resolver: resolver, now: now}
}

// Fields tried, in order, for a call's occurrence time
var callTimeFields = []string{
	"call_start_time",
	"start_time",
	"answer_start_time",
	"ringing_start_time",
	"call_end_time",
	"end_time",
	"date_time",
	"timestamp",
}

// Normalize maps one event's payload object onto a CanonicalRecord.
// The second result is false for event types with no mapping; those are not errors.
func (n *Normalizer) Normalize(ctx context.Context, eventType string, object map[string]any) (*types.CanonicalRecord, bool) {
	if object == nil {
		object = map[string]any{}
	}

	switch eventType {
	case types.ZoomPhoneCallerEnded, types.ZoomPhoneCalleeEnded:
		return n.callEnded(object), true
	case types.ZoomMeetingCreated:
		return n.meetingScheduled(object), true
	case types.ZoomMeetingEnd:
		return n.meetingEnded(ctx, object), true
	case types.ZoomRecordingCompleted:
		return n.recordingCompleted(object), true
	}
	return nil, false
}

func (n *Normalizer) callEnded(object map[string]any) *types.CanonicalRecord {
	actor := firstString(
		stringField(object, "caller_number"),
		stringField(object, "from"),
		stringField(nestedObject(object, "caller"), "phone_number"),
	)
	if actor == "" {
		actor = types.UnknownActor
	}
	subject := firstString(
		stringField(object, "callee_number"),
		stringField(object, "to"),
		stringField(nestedObject(object, "callee"), "phone_number"),
	)

	occurredAt, ok := firstInstant(object, callTimeFields...)

	return &types.CanonicalRecord{
		Actor:           actor,
		Subject:         subject,
		DurationMinutes: durationField(object),
		Category:        types.CategoryCallEnded,
		OccurredAt:      timestamps.FormatOrNow(occurredAt, ok, n.now),
		MediaURL:        stringField(object, "recording_url"),
	}
}

func (n *Normalizer) meetingScheduled(object map[string]any) *types.CanonicalRecord {
	actor := firstString(stringField(object, "host_email"), stringField(object, "host_id"))
	if actor == "" {
		actor = types.UnknownHost
	}

	occurredAt, ok := firstInstant(object, "start_time", "created_at")

	return &types.CanonicalRecord{
		Actor:           actor,
		Subject:         stringField(object, "id"),
		DurationMinutes: 0,
		Category:        types.CategoryMeetingScheduled,
		OccurredAt:      timestamps.FormatOrNow(occurredAt, ok, n.now),
	}
}

func (n *Normalizer) meetingEnded(ctx context.Context, object map[string]any) *types.CanonicalRecord {
	actor := stringField(object, "host_email")
	if actor == "" {
		if hostID := stringField(object, "host_id"); hostID != "" {
			actor = hostID
			if n.resolver != nil {
				actor = n.resolver.ResolveActor(ctx, hostID)
			}
		}
	}
	if actor == "" {
		actor = types.UnknownHost
	}

	duration, ok := numericDuration(object)
	if !ok {
		duration = elapsedMinutes(object)
	}

	occurredAt, found := firstInstant(object, "start_time")

	return &types.CanonicalRecord{
		Actor:           actor,
		Subject:         stringField(object, "id"),
		DurationMinutes: duration,
		Category:        types.CategoryMeetingEnded,
		OccurredAt:      timestamps.FormatOrNow(occurredAt, found, n.now),
		MediaURL:        firstRecordingURL(object),
	}
}

func (n *Normalizer) recordingCompleted(object map[string]any) *types.CanonicalRecord {
	actor := stringField(object, "host_email")
	if actor == "" {
		actor = types.UnknownHost
	}

	occurredAt, ok := firstInstant(object, "start_time")

	return &types.CanonicalRecord{
		Actor:           actor,
		Subject:         recordingSubject(object),
		DurationMinutes: durationField(object),
		Category:        types.CategoryRecordingCompleted,
		OccurredAt:      timestamps.FormatOrNow(occurredAt, ok, n.now),
		MediaURL:        firstRecordingURL(object),
	}
}

// elapsedMinutes derives a duration from start_time and end_time, or 0 when either is missing
func elapsedMinutes(object map[string]any) int {
	start, ok := timestamps.Parse(object["start_time"])
	if !ok {
		return 0
	}
	end, ok := timestamps.Parse(object["end_time"])
	if !ok {
		return 0
	}

	minutes := math.Round(float64(end.Sub(start).Milliseconds()) / 60000)
	if minutes < 0 {
		return 0
	}
	return int(minutes)
}

func durationField(object map[string]any) int {
	duration, _ := numericDuration(object)
	return duration
}

// numericDuration reads a numeric duration field, rounded and clamped to zero
func numericDuration(object map[string]any) (int, bool) {
	value, ok := number(object["duration"])
	if !ok {
		return 0, false
	}
	if value < 0 {
		return 0, true
	}
	return int(math.Round(value)), true
}

func number(raw any) (float64, bool) {
	var value float64
	switch v := raw.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		value = f
	case float64:
		value = v
	case float32:
		value = float64(v)
	case int:
		value = float64(v)
	case int64:
		value = float64(v)
	default:
		return 0, false
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func firstRecordingURL(object map[string]any) string {
	return stringField(firstRecordingFile(object), "download_url")
}

// recordingSubject identifies a recording by its first file's id, then the meeting instance uuid,
// then the meeting id
func recordingSubject(object map[string]any) string {
	return firstString(
		stringField(firstRecordingFile(object), "id"),
		stringField(object, "uuid"),
		stringField(object, "id"),
	)
}

func firstRecordingFile(object map[string]any) map[string]any {
	files, ok := object["recording_files"].([]any)
	if !ok || len(files) == 0 {
		return nil
	}
	first, _ := files[0].(map[string]any)
	return first
}

func firstInstant(object map[string]any, fields ...string) (time.Time, bool) {
	for _, field := range fields {
		if parsed, ok := timestamps.Parse(object[field]); ok {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func nestedObject(object map[string]any, field string) map[string]any {
	nested, _ := object[field].(map[string]any)
	return nested
}

// stringField returns the field as a string, formatting numeric IDs without exponent notation
func stringField(object map[string]any, field string) string {
	switch v := object[field].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

func firstString(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
