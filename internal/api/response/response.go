package response

import (
	"context"
	"log/slog"
	"net/http"

	json "github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"github.com/curaious/fabricqr/internal/perrors"
)

// ErrorBody is what clients see for a failed request. Error is only set for
// server-side failures and carries the error code, never the cause.
type ErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type Response[T any] struct {
	ctx    context.Context
	err    *perrors.Err
	Data   T
	Status int
}

func NewResponse[T any](ctx context.Context, data T) *Response[T] {
	return &Response[T]{
		ctx:    ctx,
		Data:   data,
		Status: http.StatusOK,
	}
}

// WithError sets the error for the response. Errors that are not a
// perrors.Err become a 500 with a generic message.
func (r *Response[T]) WithError(err error) *Response[T] {
	perr := perrors.As(err)
	perr.Print(r.ctx)

	r.err = &perr
	r.Status = perr.HttpStatus()

	return r
}

// WithStatus will set the HTTP response status code.
//
// This is not a preferred way of setting status code.
//   - Try to use perrors.Err embedded with a status code whenever possible.
//   - Default is http.StatusOK and it need not be set explicitly.
func (r *Response[T]) WithStatus(code int) *Response[T] {
	r.Status = code

	return r
}

// Write sets the `content-type` to `application/json` and writes either Data
// or the error body to the fasthttp context.
func (r *Response[T]) Write(ctx *fasthttp.RequestCtx) {
	var payload any = r.Data
	if r.err != nil {
		body := ErrorBody{Message: r.err.Message}
		if r.Status >= http.StatusInternalServerError {
			body.Error = r.err.Code.Code
		}
		payload = body
	}

	ctx.Response.Header.Set("content-type", "application/json")
	ctx.SetStatusCode(r.Status)

	body, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(r.ctx, "Unable to json encode response", slog.Any("error", err))
		ctx.SetStatusCode(http.StatusInternalServerError)
		return
	}

	ctx.SetBody(body)
}

// Error writes err as the response.
func Error(ctx *fasthttp.RequestCtx, stdCtx context.Context, err error) {
	NewResponse[any](stdCtx, nil).WithError(err).Write(ctx)
}

// OK writes data with status 200.
func OK(ctx *fasthttp.RequestCtx, stdCtx context.Context, data any) {
	NewResponse(stdCtx, data).Write(ctx)
}
