package types

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfiguration    = "CONFIGURATION_ERROR"
	ErrorUpstreamAuth     = "UPSTREAM_AUTH_ERROR"
	ErrorUpstreamLookup   = "UPSTREAM_LOOKUP_ERROR"
	ErrorDelivery         = "DELIVERY_ERROR"
	ErrorMalformedPayload = "MALFORMED_PAYLOAD"
)

func newError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return newError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// ConfigurationError reports a required setting that is missing
func ConfigurationError(setting string) error {
	return newError(
		"required setting "+setting+" is not configured",
		goerrors.CategoryValidation,
		http.StatusInternalServerError,
		ErrorConfiguration,
		map[string]any{"setting": setting},
	)
}

// UpstreamAuthError reports a failed client-credentials token exchange
func UpstreamAuthError(source error, message string, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryAuth, message, http.StatusBadGateway, ErrorUpstreamAuth, metadata)
}

// UpstreamLookupError reports a failed identity lookup
func UpstreamLookupError(source error, message string, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryExternal, message, http.StatusBadGateway, ErrorUpstreamLookup, metadata)
}

// DeliveryError reports a failed or rejected destination write
func DeliveryError(source error, message string, metadata map[string]any) error {
	return wrapError(source, goerrors.CategoryExternal, message, http.StatusBadGateway, ErrorDelivery, metadata)
}

// MalformedPayloadError reports a webhook body that could not be interpreted
func MalformedPayloadError(source error, message string) error {
	return wrapError(source, goerrors.CategoryBadInput, message, http.StatusBadRequest, ErrorMalformedPayload, nil)
}

// IsTextCode reports whether err carries the given text code
func IsTextCode(err error, textCode string) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

// StatusCode returns the HTTP status attached to err, or 500 when none is attached
func StatusCode(err error) int {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code != 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}
