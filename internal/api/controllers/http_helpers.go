package controllers

import (
	"context"
	"errors"
	"fmt"

	json "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/valyala/fasthttp"

	"github.com/curaious/fabricqr/internal/api/authenticator"
	"github.com/curaious/fabricqr/internal/api/response"
	"github.com/curaious/fabricqr/internal/services/user"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// requestContext returns the context the tracing middleware stored on the
// request, or Background. Store calls are not cancelled when the client goes away.
func requestContext(ctx *fasthttp.RequestCtx) context.Context {
	if c, ok := ctx.UserValue(authenticator.TraceCtxKey).(context.Context); ok {
		return c
	}
	return context.Background()
}

func parseBody(ctx *fasthttp.RequestCtx, target any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("request body is empty")
	}

	return json.Unmarshal(body, target)
}

func writeError(ctx *fasthttp.RequestCtx, stdCtx context.Context, err error) {
	response.Error(ctx, stdCtx, err)
}

func writeOK(ctx *fasthttp.RequestCtx, stdCtx context.Context, data any) {
	response.OK(ctx, stdCtx, data)
}

func pathParam(ctx *fasthttp.RequestCtx, key string) (string, error) {
	val := ctx.UserValue(key)
	if val == nil {
		return "", fmt.Errorf("%s is required", key)
	}

	return fmt.Sprint(val), nil
}

func identityOf(u *user.User) authenticator.Identity {
	return authenticator.Identity{UserID: u.ID, IsAdmin: u.IsAdmin, CanScanQr: u.CanScanQr}
}
