package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err: &AppError{
				Code:    ErrCodeNotFound,
				Message: "job not found",
			},
			want: "job not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeStorage,
				Message: "persist screenshot",
				Cause:   errors.New("disk full"),
			},
			want: "persist screenshot: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("AppError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AppError{
		Code:    ErrCodeInternal,
		Message: "wrapped error",
		Cause:   cause,
	}

	if unwrapped := err.Unwrap(); !errors.Is(unwrapped, cause) {
		t.Errorf("AppError.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      *AppError
		wantCode ErrorCode
		wantMsg  string
		check    func(error) bool
	}{
		{"NotFound", NotFound("job not found"), ErrCodeNotFound, "job not found", IsNotFound},
		{"NotFoundf", NotFoundf("job %s not found", "abc"), ErrCodeNotFound, "job abc not found", IsNotFound},
		{"Validation", Validation("missing task"), ErrCodeValidation, "missing task", IsValidation},
		{"Unavailable", Unavailable("queue full"), ErrCodeUnavailable, "queue full", IsUnavailable},
		{"Internal", Internal("oops"), ErrCodeInternal, "oops", IsInternal},
		{"Internalf", Internalf("oops %d", 2), ErrCodeInternal, "oops 2", IsInternal},
		{"Storage", Storage(cause, "persist %s", "a.png"), ErrCodeStorage, "persist a.png", IsStorage},
		{"Execution", Execution(cause, "agent call"), ErrCodeExecution, "agent call", IsExecution},
		{"Wrap", Wrap(cause, ErrCodeConflict, "dup"), ErrCodeConflict, "dup", IsConflict},
		{"Wrapf timeout", Wrapf(cause, ErrCodeTimeout, "after %s", "1s"), ErrCodeTimeout, "after 1s", IsTimeout},
		{"Wrap canceled", Wrap(cause, ErrCodeCanceled, "stop"), ErrCodeCanceled, "stop", IsCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.wantMsg)
			}
			if !tt.check(fmt.Errorf("outer: %w", tt.err)) {
				t.Errorf("predicate should match through wrapping")
			}
		})
	}
}

func TestNotFound_FormatVerbsInPlainMessage(t *testing.T) {
	err := NotFound("100% missing")
	if err.Message != "100% missing" {
		t.Errorf("NotFound() should not format plain messages, got %q", err.Message)
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("task", "Missing 'task' parameter")
	if err.Field != "task" {
		t.Errorf("ValidationField().Field = %v, want task", err.Field)
	}
	if GetField(err) != "task" {
		t.Errorf("GetField() = %v, want task", GetField(err))
	}
}

func TestWrap_NilError(t *testing.T) {
	if Wrap(nil, ErrCodeInternal, "x") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, ErrCodeInternal, "x %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestPredicates_NonAppError(t *testing.T) {
	err := errors.New("plain")
	if IsNotFound(err) || IsValidation(err) || IsUnavailable(err) || IsInternal(err) {
		t.Error("predicates should be false for non-AppError")
	}
	if GetCode(err) != "" {
		t.Errorf("GetCode() = %v, want empty", GetCode(err))
	}
	if GetField(err) != "" {
		t.Errorf("GetField() = %v, want empty", GetField(err))
	}
}

func TestGetCode_Outermost(t *testing.T) {
	inner := NotFound("inner")
	outer := Wrap(inner, ErrCodeStorage, "outer")
	if GetCode(outer) != ErrCodeStorage {
		t.Errorf("GetCode() = %v, want %v", GetCode(outer), ErrCodeStorage)
	}
	if !errors.Is(outer, inner) {
		t.Error("outer error should wrap inner")
	}
}
