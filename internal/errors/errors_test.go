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
				Message: "task not found",
			},
			want: "task not found",
		},
		{
			name: "error with cause",
			err: &AppError{
				Code:    ErrCodeInternal,
				Message: "failed to enqueue task",
				Cause:   errors.New("underlying error"),
			},
			want: "failed to enqueue task: underlying error",
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
	tests := []struct {
		name     string
		err      *AppError
		wantCode ErrorCode
		wantMsg  string
	}{
		{
			name:     "NotFound",
			err:      NotFound("shop not found"),
			wantCode: ErrCodeNotFound,
			wantMsg:  "shop not found",
		},
		{
			name:     "NotFoundf",
			err:      NotFoundf("task %s not found", "TASK-1-0001"),
			wantCode: ErrCodeNotFound,
			wantMsg:  "task TASK-1-0001 not found",
		},
		{
			name:     "Conflict",
			err:      Conflict("shop already exists"),
			wantCode: ErrCodeConflict,
			wantMsg:  "shop already exists",
		},
		{
			name:     "Conflictf",
			err:      Conflictf("browser %s already registered", "browser-1"),
			wantCode: ErrCodeConflict,
			wantMsg:  "browser browser-1 already registered",
		},
		{
			name:     "Validation",
			err:      Validation("invalid payload"),
			wantCode: ErrCodeValidation,
			wantMsg:  "invalid payload",
		},
		{
			name:     "Validationf",
			err:      Validationf("invalid priority %d", 150),
			wantCode: ErrCodeValidation,
			wantMsg:  "invalid priority 150",
		},
		{
			name:     "ForeignKey",
			err:      ForeignKey("shop is in use"),
			wantCode: ErrCodeForeignKey,
			wantMsg:  "shop is in use",
		},
		{
			name:     "Internal",
			err:      Internal("database error"),
			wantCode: ErrCodeInternal,
			wantMsg:  "database error",
		},
		{
			name:     "Internalf",
			err:      Internalf("claim failed after %d attempts", 3),
			wantCode: ErrCodeInternal,
			wantMsg:  "claim failed after 3 attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.wantCode)
			}
			if tt.err.Message != tt.wantMsg {
				t.Errorf("Message = %v, want %v", tt.err.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidationField(t *testing.T) {
	err := ValidationField("shop_id", "not a valid UUID")
	if err.Code != ErrCodeValidation {
		t.Errorf("ValidationField().Code = %v, want %v", err.Code, ErrCodeValidation)
	}
	if err.Field != "shop_id" {
		t.Errorf("ValidationField().Field = %v, want %v", err.Field, "shop_id")
	}
	if err.Message != "not a valid UUID" {
		t.Errorf("ValidationField().Message = %v, want %v", err.Message, "not a valid UUID")
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternal, "wrapped error")

	if err.Code != ErrCodeInternal {
		t.Errorf("Wrap().Code = %v, want %v", err.Code, ErrCodeInternal)
	}
	if err.Message != "wrapped error" {
		t.Errorf("Wrap().Message = %v, want %v", err.Message, "wrapped error")
	}
	if !errors.Is(err, cause) {
		t.Errorf("Wrap() should preserve the cause for errors.Is")
	}
}

func TestWrap_NilError(t *testing.T) {
	if err := Wrap(nil, ErrCodeInternal, "wrapped error"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestWrapf(t *testing.T) {
	cause := errors.New("dial refused")
	err := Wrapf(cause, ErrCodeTimeout, "connect to shop %s", "browser-1")

	if err.Code != ErrCodeTimeout {
		t.Errorf("Wrapf().Code = %v, want %v", err.Code, ErrCodeTimeout)
	}
	if err.Message != "connect to shop browser-1" {
		t.Errorf("Wrapf().Message = %v, want %v", err.Message, "connect to shop browser-1")
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "not found error",
			err:  NotFound("task not found"),
			want: true,
		},
		{
			name: "wrapped not found error",
			err:  fmt.Errorf("get task: %w", NotFound("task not found")),
			want: true,
		},
		{
			name: "other error",
			err:  Conflict("conflict"),
			want: false,
		},
		{
			name: "standard error",
			err:  errors.New("standard error"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.want {
				t.Errorf("IsNotFound() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "conflict error",
			err:  Conflict("conflict"),
			want: true,
		},
		{
			name: "other error",
			err:  NotFound("not found"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConflict(tt.err); got != tt.want {
				t.Errorf("IsConflict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValidation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "validation error",
			err:  Validation("invalid"),
			want: true,
		},
		{
			name: "validation field error",
			err:  ValidationField("shop_id", "invalid"),
			want: true,
		},
		{
			name: "other error",
			err:  NotFound("not found"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.want {
				t.Errorf("IsValidation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{
			name: "app error",
			err:  NotFound("not found"),
			want: ErrCodeNotFound,
		},
		{
			name: "wrapped app error",
			err:  fmt.Errorf("delete shop: %w", ForeignKey("shop is in use")),
			want: ErrCodeForeignKey,
		},
		{
			name: "standard error",
			err:  errors.New("standard error"),
			want: "",
		},
		{
			name: "nil error",
			err:  nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}
