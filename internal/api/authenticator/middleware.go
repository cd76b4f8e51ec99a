package authenticator

import (
	"context"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/curaious/fabricqr/internal/api/response"
	"github.com/curaious/fabricqr/internal/perrors"
)

// TraceCtxKey is the user value under which the request middleware stores
// the request's context.Context.
const TraceCtxKey = "traceCtx"

const (
	bearerPrefix = "Bearer "
	claimsKey    = "userClaims"
)

// AuthedHandler is a handler that can only run behind Authenticate.
type AuthedHandler func(ctx *fasthttp.RequestCtx, claims *Claims)

type Verifier interface {
	Verify(raw string) (*Claims, error)
}

// Authenticate requires an `Authorization: Bearer <token>` header and calls
// next with the verified claims. The claims are also kept on the request for
// the access log.
func Authenticate(v Verifier, next AuthedHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		header := string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))
		raw, ok := strings.CutPrefix(header, bearerPrefix)
		if !ok || raw == "" {
			response.Error(ctx, stdContext(ctx), perrors.NewErrUnauthenticated("authentication token required", nil))
			return
		}

		claims, err := v.Verify(raw)
		if err != nil {
			response.Error(ctx, stdContext(ctx), perrors.NewErrUnauthenticated("invalid token", err))
			return
		}

		ctx.SetUserValue(claimsKey, claims)
		next(ctx, claims)
	}
}

// RequireAdmin rejects non-admin claims with 403. It takes and returns an
// AuthedHandler, so it can only be mounted inside Authenticate.
func RequireAdmin(next AuthedHandler) AuthedHandler {
	return func(ctx *fasthttp.RequestCtx, claims *Claims) {
		if !claims.IsAdmin {
			response.Error(ctx, stdContext(ctx), perrors.NewErrForbidden("administrator privilege required", nil,
				map[string]interface{}{"user_id": claims.UserID}))
			return
		}
		next(ctx, claims)
	}
}

// ClaimsFromRequest returns the claims stored by Authenticate, if any.
func ClaimsFromRequest(ctx *fasthttp.RequestCtx) (*Claims, bool) {
	claims, ok := ctx.UserValue(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

func stdContext(ctx *fasthttp.RequestCtx) context.Context {
	if c, ok := ctx.UserValue(TraceCtxKey).(context.Context); ok {
		return c
	}
	return context.Background()
}
