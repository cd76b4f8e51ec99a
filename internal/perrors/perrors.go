package perrors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
)

type ErrCode struct {
	Code   string `json:"code"`
	Status int    `json:"status"`
}

var (
	ErrCodeValidationFailure  ErrCode = ErrCode{"validation_failure", http.StatusBadRequest}
	ErrCodeUnauthenticated            = ErrCode{"unauthenticated", http.StatusUnauthorized}
	ErrCodeForbidden                  = ErrCode{"forbidden", http.StatusForbidden}
	ErrCodeNotFound                   = ErrCode{"not_found", http.StatusNotFound}
	ErrCodeInternalServer             = ErrCode{"internal_server_error", http.StatusInternalServerError}
	ErrCodeServiceUnavailable         = ErrCode{"service_unavailable", http.StatusServiceUnavailable}
)

// Err is the error type rendered to clients. Message is the client-facing text;
// Err carries the underlying cause and is only ever logged.
type Err struct {
	Message    string                   `json:"message"`
	Err        string                   `json:"-"`
	Code       ErrCode                  `json:"-"`
	Stacktrace []string                 `json:"-"`
	Args       []map[string]interface{} `json:"-"`
	cause      error
}

func (e Err) Error() string {
	return e.Err
}

func (e Err) Unwrap() error {
	return e.cause
}

func (e Err) HttpStatus() int {
	return e.Code.Status
}

func (e Err) Print(ctx context.Context) {
	args := []any{slog.Any("error", e.Error()), slog.String("code", e.Code.Code)}
	if len(e.Args) > 0 {
		for k, v := range e.Args[0] {
			args = append(args, slog.Any(k, v))
		}
	}

	if e.Code.Status < http.StatusInternalServerError {
		slog.WarnContext(ctx, e.Message, args...)
		return
	}

	args = append(args, slog.Any("stacktrace", e.Stacktrace))
	slog.ErrorContext(ctx, e.Message, args...)
}

func New(code ErrCode, msg string, err error, args ...map[string]interface{}) error {
	pc := make([]uintptr, 20)
	count := runtime.Callers(2, pc)
	frames := runtime.CallersFrames(pc[:count])

	var stacktrace []string
	for frame, hasMore := frames.Next(); hasMore; frame, hasMore = frames.Next() {
		stacktrace = append(stacktrace, fmt.Sprintf("%s:%d", frame.File, frame.Line))
	}

	errString := "error missing"
	if err != nil {
		errString = err.Error()
	}

	return Err{
		Code:       code,
		Message:    msg,
		Err:        errString,
		Stacktrace: stacktrace,
		Args:       args,
		cause:      err,
	}
}

// As extracts an Err from err, wrapping unknown errors as internal server errors.
func As(err error) Err {
	var perr Err
	if errors.As(err, &perr) {
		return perr
	}
	return New(ErrCodeInternalServer, "server error", err).(Err)
}

func NewErrValidation(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeValidationFailure, msg, err, args...)
}

func NewErrUnauthenticated(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeUnauthenticated, msg, err, args...)
}

func NewErrForbidden(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeForbidden, msg, err, args...)
}

func NewErrNotFound(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeNotFound, msg, err, args...)
}

func NewErrInternalServerError(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeInternalServer, msg, err, args...)
}

func NewErrServiceUnavailable(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeServiceUnavailable, msg, err, args...)
}
