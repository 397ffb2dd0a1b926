package cache

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-dashboard-cache/internal/cacheinfra"
)

// Text codes attached to errors raised by the dashboard data layer.
const (
	TextCodeTransport      = "TRANSPORT_ERROR"
	TextCodeRemote         = "REMOTE_ERROR"
	TextCodeMalformed      = "MALFORMED_RESPONSE"
	TextCodeDurableStorage = cacheinfra.TextCodeDurableStorage
	TextCodeUnknownTarget  = "UNKNOWN_TARGET"
	TextCodeInvalidParam   = "INVALID_PARAMETER"
)

// NewTransportError wraps a failure to reach the analytics API.
func NewTransportError(err error, operation string) error {
	return goerrors.Wrap(err, goerrors.CategoryExternal, fmt.Sprintf("could not reach analytics api: %s", operation)).
		WithTextCode(TextCodeTransport).
		WithMetadata(map[string]any{"operation": operation})
}

// NewLogicError describes a non-success response returned by the analytics API.
// detail is the server supplied message, when present.
func NewLogicError(status int, detail, operation string) error {
	if detail == "" {
		detail = fmt.Sprintf("analytics api returned status %d", status)
	}
	return goerrors.New(detail, goerrors.CategoryExternal).
		WithCode(status).
		WithTextCode(TextCodeRemote).
		WithMetadata(map[string]any{"operation": operation, "status": status})
}

// NewMalformedResponseError reports a success response whose body is not valid JSON.
func NewMalformedResponseError(err error, operation string) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, fmt.Sprintf("malformed response from %s", operation)).
		WithTextCode(TextCodeMalformed).
		WithMetadata(map[string]any{"operation": operation})
}

// NewUnknownTargetError reports a request for an operation or endpoint that does not exist.
func NewUnknownTargetError(kind, name string) error {
	return goerrors.New(fmt.Sprintf("unsupported %s: %s", kind, name), goerrors.CategoryValidation).
		WithTextCode(TextCodeUnknownTarget).
		WithMetadata(map[string]any{kind: name})
}

// NewInvalidParamError reports a request parameter that failed validation.
func NewInvalidParamError(field, message string) error {
	return goerrors.New(fmt.Sprintf("invalid %s: %s", field, message), goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidParam).
		WithMetadata(map[string]any{"field": field})
}

// IsTransportError reports whether err means the analytics API could not be reached.
func IsTransportError(err error) bool {
	return hasTextCode(err, TextCodeTransport)
}

// IsLogicError reports whether err is a non-success response from the analytics API.
func IsLogicError(err error) bool {
	return hasTextCode(err, TextCodeRemote)
}

// IsMalformedResponse reports whether err is a success response that could not be parsed.
func IsMalformedResponse(err error) bool {
	return hasTextCode(err, TextCodeMalformed)
}

// TextCode returns the text code attached to err, or "".
func TextCode(err error) string {
	var ge *goerrors.Error
	if errors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// IsDurableStorageError reports whether err came from the durable tier.
func IsDurableStorageError(err error) bool {
	return hasTextCode(err, TextCodeDurableStorage)
}

// IsValidationError reports whether err was caused by an invalid request.
func IsValidationError(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryValidation)
}

// StatusCode returns the upstream HTTP status carried by a logic error, or 0.
func StatusCode(err error) int {
	var ge *goerrors.Error
	if errors.As(err, &ge) && ge.TextCode == TextCodeRemote {
		return ge.Code
	}
	return 0
}

func hasTextCode(err error, code string) bool {
	var ge *goerrors.Error
	if !errors.As(err, &ge) {
		return false
	}
	return ge.TextCode == code
}
