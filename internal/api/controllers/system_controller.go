package controllers

import (
	"log/slog"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/curaious/fabricqr/internal/api/response"
	"github.com/curaious/fabricqr/internal/metrics"
	"github.com/curaious/fabricqr/internal/services"
)

type IndexResponse struct {
	Message string            `json:"message"`
	Routes  map[string]string `json:"routes"`
}

var indexRoutes = map[string]string{
	"getMaterialById": "/materials/:qrCodeId",
	"login":           "/auth/login",
	"googleLogin":     "/auth/google-login",
	"me":              "/auth/me",
	"listUsers":       "/users",
	"health":          "/health",
}

func RegisterSystemRoutes(r *router.Router, svc *services.Services, m *metrics.Metrics) {
	r.GET("/", func(ctx *fasthttp.RequestCtx) {
		writeOK(ctx, requestContext(ctx), IndexResponse{
			Message: "Fabric QR Server API is running!",
			Routes:  indexRoutes,
		})
	})

	r.GET("/health", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		if err := svc.Ping(stdCtx); err != nil {
			slog.WarnContext(stdCtx, "Health check failed", slog.Any("error", err))
			response.NewResponse(stdCtx, map[string]string{"status": "unavailable"}).
				WithStatus(fasthttp.StatusServiceUnavailable).
				Write(ctx)
			return
		}

		writeOK(ctx, stdCtx, map[string]string{"status": "ok"})
	})

	if m != nil {
		r.GET("/metrics", m.Handler())
	}
}
