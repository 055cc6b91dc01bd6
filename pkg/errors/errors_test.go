package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
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
			appErr:   &AppError{Code: CodeNotFound, Message: "reservation not found"},
			expected: "NOT_FOUND: reservation not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeGateway,
				Message: "invoice creation failed",
				Err:     errors.New("connection reset"),
			},
			expected: "GATEWAY_ERROR: invoice creation failed (caused by: connection reset)",
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
		t.Errorf("errors.Is should find the original error")
	}
}

func TestConstructors_StatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"validation", Validation("bad", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad"), CodeInvalidInput, http.StatusBadRequest},
		{"conflict", Conflict("taken"), CodeConflict, http.StatusConflict},
		{"state transition", StateTransition("paid", "cancelled"), CodeStateTransition, http.StatusConflict},
		{"gateway", Gateway("down", nil), CodeGateway, http.StatusBadGateway},
		{"internal", Internal("boom", nil), CodeInternal, http.StatusInternalServerError},
		{"not found", NotFoundWithID("Reservation", "abc"), CodeNotFound, http.StatusNotFound},
		{"unavailable", Unavailable("gateway"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.StatusCode() != tt.status {
				t.Errorf("status = %d, want %d", tt.err.StatusCode(), tt.status)
			}
		})
	}
}

func TestRecoverable(t *testing.T) {
	if !Gateway("down", nil).Recoverable() {
		t.Error("gateway errors should be recoverable")
	}
	if Conflict("taken").Recoverable() {
		t.Error("conflicts should not be recoverable")
	}
	if StateTransition("paid", "cancelled").Recoverable() {
		t.Error("state transition errors should not be recoverable")
	}
}

func TestIsCode_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("commit failed: %w", ConflictWithIDs("overlap", []string{"r1", "r2"}))

	if !IsCode(err, CodeConflict) {
		t.Fatal("expected wrapped conflict to be detected")
	}
	if IsCode(err, CodeGateway) {
		t.Fatal("did not expect gateway code")
	}

	ids := ConflictingIDs(err)
	if len(ids) != 2 || ids[0] != "r1" || ids[1] != "r2" {
		t.Errorf("ConflictingIDs = %v, want [r1 r2]", ids)
	}
}

func TestAsAppError(t *testing.T) {
	plain := errors.New("plain")
	got := AsAppError(plain)
	if got.Code != CodeInternal {
		t.Errorf("expected internal code for plain error, got %s", got.Code)
	}

	appErr := NotFound("Studio")
	if AsAppError(appErr) != appErr {
		t.Error("AsAppError should return the same AppError")
	}
}

func TestToJSON(t *testing.T) {
	err := StateTransition("paid", "cancelled")

	var resp ErrorResponse
	if jsonErr := json.Unmarshal(err.ToJSON(), &resp); jsonErr != nil {
		t.Fatalf("failed to unmarshal: %v", jsonErr)
	}
	if resp.Code != CodeStateTransition {
		t.Errorf("code = %s, want %s", resp.Code, CodeStateTransition)
	}
	if resp.Details["from"] != "paid" || resp.Details["to"] != "cancelled" {
		t.Errorf("unexpected details: %v", resp.Details)
	}
}
