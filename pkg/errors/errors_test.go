package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestConstructors_CodeAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFound("Reservation"), CodeNotFound, http.StatusNotFound},
		{"validation", Validation("bad", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"invalid input", InvalidInput("bad"), CodeInvalidInput, http.StatusBadRequest},
		{"forbidden", Forbidden("no"), CodeForbidden, http.StatusForbidden},
		{"conflict", Conflict("taken"), CodeConflict, http.StatusConflict},
		{"internal", Internal("boom", errors.New("db")), CodeInternal, http.StatusInternalServerError},
		{"timeout", Timeout("slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("Mongo"), CodeUnavailable, http.StatusServiceUnavailable},
		{"invalid interval", InvalidInterval("to <= from"), CodeInvalidInterval, http.StatusBadRequest},
		{"invalid state", InvalidState("not pending"), CodeInvalidState, http.StatusConflict},
		{"ttl expired", TTLExpired("late"), CodeTTLExpired, http.StatusConflict},
		{"too early", TooEarly("wait"), CodeTooEarly, http.StatusConflict},
		{"account not found", AccountNotFound("unknown payment"), CodeAccountNotFound, http.StatusNotFound},
		{"invalid amount", InvalidAmount("mismatch"), CodeInvalidAmount, http.StatusBadRequest},
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
	plain := &AppError{Code: CodeNotFound, Message: "reservation not found"}
	if got := plain.Error(); got != "NOT_FOUND: reservation not found" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := Internal("internal error", errors.New("connection reset"))
	if got := wrapped.Error(); got != "INTERNAL_ERROR: internal error (caused by: connection reset)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("write conflict")
	err := Wrap(cause, CodeInternal, "wrapped", http.StatusInternalServerError)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is should find the cause through Unwrap")
	}
}

func TestNotFoundWithID_Details(t *testing.T) {
	err := NotFoundWithID("Reservation", "r-1")

	if err.Details["id"] != "r-1" {
		t.Errorf("expected id 'r-1', got %v", err.Details["id"])
	}
	if err.Details["resource"] != "Reservation" {
		t.Errorf("expected resource 'Reservation', got %v", err.Details["resource"])
	}
}

func TestHasCode(t *testing.T) {
	wrapped := fmt.Errorf("confirm: %w", TTLExpired("hold expired"))

	if !HasCode(wrapped, CodeTTLExpired) {
		t.Errorf("HasCode should see through fmt.Errorf wrapping")
	}
	if HasCode(wrapped, CodeConflict) {
		t.Errorf("HasCode should not match a different code")
	}
	if HasCode(errors.New("plain"), CodeInternal) {
		t.Errorf("HasCode should be false for non-AppError")
	}
}

func TestAsAppError(t *testing.T) {
	appErr := Conflict("overlap")
	if got := AsAppError(fmt.Errorf("wrap: %w", appErr)); got != appErr {
		t.Errorf("AsAppError() should unwrap to the same AppError")
	}

	plain := errors.New("plain")
	got := AsAppError(plain)
	if got.Code != CodeInternal {
		t.Errorf("AsAppError() should wrap plain errors as internal, got %s", got.Code)
	}
	if got.Err != plain {
		t.Errorf("AsAppError() should keep the original error")
	}
	if !IsAppError(got) || IsAppError(plain) {
		t.Errorf("IsAppError() misclassified errors")
	}
}

func TestAppError_ToJSON(t *testing.T) {
	body := string(InvalidAmount("amount mismatch").ToJSON())

	if !strings.Contains(body, CodeInvalidAmount) {
		t.Errorf("ToJSON() should contain error code, got %s", body)
	}
	if !strings.Contains(body, "amount mismatch") {
		t.Errorf("ToJSON() should contain error message, got %s", body)
	}
}
