package cache

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	transport := NewTransportError(errors.New("connection refused"), "sales.getDailySales")
	logic := NewLogicError(http.StatusNotFound, "store not found", "sales.getDailySales")
	malformed := NewMalformedResponseError(errors.New("unexpected EOF"), "kpi.getSummary")
	unknown := NewUnknownTargetError("operation", "sales.getEverything")

	tests := []struct {
		name       string
		err        error
		transport  bool
		logic      bool
		validation bool
		malformed  bool
		status     int
		code       string
	}{
		{name: "transport", err: transport, transport: true, code: TextCodeTransport},
		{name: "logic", err: logic, logic: true, status: http.StatusNotFound, code: TextCodeRemote},
		{name: "malformed", err: malformed, malformed: true, code: TextCodeMalformed},
		{name: "unknown target", err: unknown, validation: true, code: TextCodeUnknownTarget},
		{name: "invalid param", err: NewInvalidParamError(ParamEndDate, "must not be before start_date"), validation: true, code: TextCodeInvalidParam},
		{name: "wrapped transport", err: fmt.Errorf("fetch: %w", transport), transport: true, code: TextCodeTransport},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransportError(tt.err); got != tt.transport {
				t.Errorf("IsTransportError() = %v, want %v", got, tt.transport)
			}
			if got := IsLogicError(tt.err); got != tt.logic {
				t.Errorf("IsLogicError() = %v, want %v", got, tt.logic)
			}
			if got := IsValidationError(tt.err); got != tt.validation {
				t.Errorf("IsValidationError() = %v, want %v", got, tt.validation)
			}
			if got := IsMalformedResponse(tt.err); got != tt.malformed {
				t.Errorf("IsMalformedResponse() = %v, want %v", got, tt.malformed)
			}
			if got := StatusCode(tt.err); got != tt.status {
				t.Errorf("StatusCode() = %d, want %d", got, tt.status)
			}
			if got := TextCode(tt.err); got != tt.code {
				t.Errorf("TextCode() = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestNewLogicError_DefaultDetail(t *testing.T) {
	err := NewLogicError(http.StatusInternalServerError, "", "kpi.getSummary")
	if !IsLogicError(err) {
		t.Fatal("expected logic error")
	}
	if StatusCode(err) != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", StatusCode(err))
	}
}
