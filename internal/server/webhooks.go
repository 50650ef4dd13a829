package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/angelajfisher/call-logger/internal/types"
	"github.com/angelajfisher/call-logger/internal/zoom"
)

// Webhook bodies larger than this are treated as malformed
const maxBodyBytes = 1 << 20

type ZoomData struct {
	Payload json.RawMessage `json:"payload"`
	EventTS int64           `json:"event_ts"`
	Event   string          `json:"event"`
}

type URLValidation struct {
	PlainToken string `json:"plainToken"`
}

// Wrapper to handle extracting nested data from Zoom webhook
type ObjectWrapper struct {
	Object map[string]any `json:"object"`
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (sc *Config) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := sc.logger()

	reqBody, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn("could not read webhook body", "error", types.MalformedPayloadError(err, "unreadable body"))
		acknowledge(w)
		return
	}

	var eventData ZoomData
	if err = json.Unmarshal(reqBody, &eventData); err != nil {
		logger.Warn("ignoring webhook", "error", types.MalformedPayloadError(err, "body is not a zoom event"))
		acknowledge(w)
		return
	}
	sc.Metrics.WebhookReceived(eventData.Event)

	if eventData.Event == types.ZoomEndpointValidation {
		logger.Info("webhook received: URL validation request")
		sc.respondToValidation(w, eventData.Payload)
		return
	}

	var wrapper ObjectWrapper
	if len(eventData.Payload) > 0 {
		decoder := json.NewDecoder(bytes.NewReader(eventData.Payload))
		decoder.UseNumber()
		if err = decoder.Decode(&wrapper); err != nil {
			logger.Warn("ignoring webhook", "event", eventData.Event, "error", types.MalformedPayloadError(err, "payload is not an object"))
			acknowledge(w)
			return
		}
	}

	acknowledge(w)

	id := sc.Dispatcher.Dispatch(types.WebhookEvent{
		Event:   eventData.Event,
		EventTS: eventData.EventTS,
		Object:  wrapper.Object,
	})
	logger.Debug("webhook received", "event", eventData.Event, "event_id", id)
}

func (sc *Config) respondToValidation(w http.ResponseWriter, payload json.RawMessage) {
	var payloadData URLValidation
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &payloadData); err != nil {
			sc.logger().Warn("could not decode validation payload", "error", err)
		}
	}

	response, err := zoom.RespondToChallenge(payloadData.PlainToken, sc.Secret)
	if err != nil {
		sc.logger().Error("could not answer URL validation", "error", err)
		writeError(w, err)
		return
	}

	retBody, err := json.Marshal(response)
	if err != nil {
		sc.logger().Error("could not encode validation response", "error", err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(retBody)
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	for _, code := range []string{types.ErrorConfiguration, types.ErrorDelivery} {
		if types.IsTextCode(err, code) {
			body.Code = code
		}
	}

	encoded, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(types.StatusCode(err))
	_, _ = w.Write(encoded)
}
