package controllers

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/curaious/fabricqr/internal/api/authenticator"
	"github.com/curaious/fabricqr/internal/services"
	"github.com/curaious/fabricqr/internal/services/user"
)

func RegisterUserRoutes(r *router.Router, svc *services.Services, tokens *authenticator.TokenIssuer) {
	r.GET("/users", authenticator.Authenticate(tokens, authenticator.RequireAdmin(func(ctx *fasthttp.RequestCtx, _ *authenticator.Claims) {
		stdCtx := requestContext(ctx)

		users, err := svc.User.List(stdCtx)
		if err != nil {
			writeError(ctx, stdCtx, errServer(err))
			return
		}

		out := make([]user.PublicUser, 0, len(users))
		for _, u := range users {
			out = append(out, u.Public())
		}
		writeOK(ctx, stdCtx, out)
	})))
}
