package types

// Category is the normalized kind of a logged call or meeting event
type Category string

const (
	CategoryCallEnded          Category = "call-ended"
	CategoryMeetingScheduled   Category = "meeting-scheduled"
	CategoryMeetingEnded       Category = "meeting-ended"
	CategoryRecordingCompleted Category = "recording-completed"
)

// Label is the human-readable name written to the destination's select property
func (c Category) Label() string {
	switch c {
	case CategoryCallEnded:
		return "Phone Call"
	case CategoryMeetingScheduled:
		return "Meeting Scheduled"
	case CategoryMeetingEnded:
		return "Zoom Meeting"
	case CategoryRecordingCompleted:
		return "Recording"
	}
	return string(c)
}

// CanonicalRecord is the destination-agnostic summary of one call, meeting, or recording event.
// MediaURL is empty when no recording exists.
type CanonicalRecord struct {
	Actor           string   `json:"actor"`
	Subject         string   `json:"subject"`
	DurationMinutes int      `json:"durationMinutes"`
	Category        Category `json:"category"`
	OccurredAt      string   `json:"occurredAt"`
	MediaURL        string   `json:"mediaUrl,omitempty"`
}

// WebhookEvent is an inbound Zoom notification handed off for background processing
type WebhookEvent struct {
	ID      string
	Event   string
	EventTS int64
	Object  map[string]any
}

const (
	ZoomEndpointValidation = "endpoint.url_validation"
	ZoomPhoneCallerEnded   = "phone.caller_ended"
	ZoomPhoneCalleeEnded   = "phone.callee_ended"
	ZoomMeetingCreated     = "meeting.created"
	ZoomMeetingEnd         = "meeting.ended"
	ZoomRecordingCompleted = "recording.completed"
	UnknownActor           = "Unknown"
	UnknownHost            = "Unknown Host"
)
