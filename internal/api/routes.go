package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/fasthttp/router"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/curaious/fabricqr/internal/api/authenticator"
	"github.com/curaious/fabricqr/internal/api/controllers"
	"github.com/curaious/fabricqr/internal/api/response"
	"github.com/curaious/fabricqr/internal/perrors"
)

const requestIDHeader = "X-Request-ID"

var tracePropagator = propagation.TraceContext{}

func (s *Server) initRoutes() fasthttp.RequestHandler {
	r := router.New()
	r.SaveMatchedRoutePath = true

	controllers.RegisterSystemRoutes(r, s.services, s.metrics)
	controllers.RegisterMaterialRoutes(r, s.services)
	controllers.RegisterAuthRoutes(r, s.services, s.tokens, s.google, s.metrics)
	controllers.RegisterUserRoutes(r, s.services, s.tokens)

	return s.withMiddlewares(r.Handler)
}

func (s *Server) withMiddlewares(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	tracer := otel.Tracer("fabricqr/http")

	return func(ctx *fasthttp.RequestCtx) {
		s.applyCORS(ctx)
		if string(ctx.Method()) == fasthttp.MethodOptions {
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}

		start := time.Now()
		method := string(ctx.Method())
		requestURI := string(ctx.RequestURI())

		requestID := string(ctx.Request.Header.Peek(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Response.Header.Set(requestIDHeader, requestID)

		h := http.Header{}
		ctx.Request.Header.VisitAll(func(k, v []byte) {
			h[string(k)] = []string{string(v)}
		})
		traceCtx := tracePropagator.Extract(context.Background(), propagation.HeaderCarrier(h))
		traceCtx, span := tracer.Start(traceCtx, method+" "+string(ctx.Path()), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		ctx.SetUserValue(authenticator.TraceCtxKey, traceCtx)

		l := slog.With(slog.String("request_id", requestID), slog.String("method", method), slog.String("request_uri", requestURI))
		l.InfoContext(traceCtx, "Started processing")

		func() {
			defer func() {
				if rec := recover(); rec != nil {
					response.Error(ctx, traceCtx, perrors.NewErrInternalServerError("server error", fmt.Errorf("panic: %v", rec)))
				}
			}()
			next(ctx)
		}()

		route := "unmatched"
		if p, ok := ctx.UserValue(router.MatchedRoutePathParam).(string); ok {
			route = p
		}
		status := ctx.Response.StatusCode()
		elapsed := time.Since(start)

		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)
		s.metrics.ObserveRequest(method, route, status, elapsed)

		attrs := []any{slog.Int("status", status), slog.Duration("duration", elapsed)}
		if claims, ok := authenticator.ClaimsFromRequest(ctx); ok {
			attrs = append(attrs, slog.String("user_id", claims.UserID))
		}
		l.InfoContext(traceCtx, "Finished processing", attrs...)
	}
}

// applyCORS allows every origin when ALLOWED_ORIGINS contains "*", otherwise
// echoes the request origin only if it is listed.
func (s *Server) applyCORS(ctx *fasthttp.RequestCtx) {
	headers := &ctx.Response.Header
	origin := string(ctx.Request.Header.Peek("Origin"))

	switch {
	case slices.Contains(s.conf.ALLOWED_ORIGINS, "*"):
		headers.Set("Access-Control-Allow-Origin", "*")
	case origin != "" && slices.Contains(s.conf.ALLOWED_ORIGINS, origin):
		headers.Set("Access-Control-Allow-Origin", origin)
		headers.Add("Vary", "Origin")
	default:
		return
	}

	headers.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE")
	headers.Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
}
