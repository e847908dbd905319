package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFound("Seller"), CodeNotFound, http.StatusNotFound},
		{"not found with id", NotFoundWithID("Seller", "abc"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("missing title"), CodeInvalidInput, http.StatusBadRequest},
		{"unauthorized", Unauthorized("no session"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("buyers only"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("slot taken"), CodeConflict, http.StatusConflict},
		{"internal", Internal("boom", nil), CodeInternal, http.StatusInternalServerError},
		{"persistence", Persistence("create appointment", nil), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("too slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("Calendar"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.wantCode)
			}
			if tt.err.StatusCode() != tt.wantStatus {
				t.Errorf("StatusCode() = %d, want %d", tt.err.StatusCode(), tt.wantStatus)
			}
		})
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			appErr:   &AppError{Code: CodeNotFound, Message: "Seller not found"},
			expected: "NOT_FOUND: Seller not found",
		},
		{
			name:     "with underlying error",
			appErr:   &AppError{Code: CodeInternal, Message: "failed to create appointment", Err: errors.New("connection reset")},
			expected: "INTERNAL_ERROR: failed to create appointment (caused by: connection reset)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := Wrap(originalErr, CodeInternal, "wrapped", http.StatusInternalServerError)

	if !errors.Is(appErr, originalErr) {
		t.Errorf("errors.Is should see the original error")
	}
}

func TestPersistence_HidesCause(t *testing.T) {
	err := Persistence("create appointment", errors.New("E11000 duplicate key on appointments"))

	if got := err.PublicMessage(); got != GenericInternalMessage {
		t.Errorf("PublicMessage() = %q, want %q", got, GenericInternalMessage)
	}
	if strings.Contains(string(err.ToJSON()), "E11000") {
		t.Errorf("ToJSON() leaked the internal cause: %s", err.ToJSON())
	}
}

func TestPublicMessage_ClientErrorsKeepMessage(t *testing.T) {
	err := InvalidInput("title is required")
	if got := err.PublicMessage(); got != "title is required" {
		t.Errorf("PublicMessage() = %q", got)
	}
}

func TestAsAppError(t *testing.T) {
	appErr := NotFound("Seller")
	wrapped := fmt.Errorf("lookup: %w", appErr)
	regularErr := errors.New("regular error")

	if AsAppError(wrapped) != appErr {
		t.Errorf("AsAppError() should unwrap to the same AppError")
	}

	result := AsAppError(regularErr)
	if result.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap regular error as internal error")
	}
	if result.Err != regularErr {
		t.Errorf("AsAppError() should wrap the original error")
	}
}

func TestIsAppErrorAndHasCode(t *testing.T) {
	wrapped := fmt.Errorf("book: %w", Conflict("slot taken"))

	if !IsAppError(wrapped) {
		t.Errorf("IsAppError() should return true for a wrapped AppError")
	}
	if IsAppError(errors.New("plain")) {
		t.Errorf("IsAppError() should return false for regular error")
	}
	if !HasCode(wrapped, CodeConflict) {
		t.Errorf("HasCode() should match CONFLICT")
	}
	if HasCode(wrapped, CodeNotFound) {
		t.Errorf("HasCode() should not match NOT_FOUND")
	}
}

func TestAppError_WithDetails(t *testing.T) {
	err := InvalidInput("invalid availability").WithDetails(map[string]any{"dayOfWeek": 7})

	if err.Details["dayOfWeek"] != 7 {
		t.Errorf("expected dayOfWeek detail, got %v", err.Details["dayOfWeek"])
	}
	if !strings.Contains(string(err.ToJSON()), "dayOfWeek") {
		t.Errorf("ToJSON() should include details")
	}
}
