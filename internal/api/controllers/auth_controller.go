package controllers

import (
	"errors"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/curaious/fabricqr/internal/api/authenticator"
	"github.com/curaious/fabricqr/internal/metrics"
	"github.com/curaious/fabricqr/internal/perrors"
	"github.com/curaious/fabricqr/internal/services"
	"github.com/curaious/fabricqr/internal/services/user"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type GoogleLoginRequest struct {
	GoogleID string `json:"googleId" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name"`
	IDToken  string `json:"idToken,omitempty"`
}

type LoginResponse struct {
	Token string          `json:"token"`
	User  user.PublicUser `json:"user"`
}

func errInvalidCredentials(err error) error {
	return perrors.NewErrUnauthenticated("invalid credentials", err)
}

func errServer(err error) error {
	return perrors.NewErrInternalServerError("server error", err)
}

func RegisterAuthRoutes(r *router.Router, svc *services.Services, tokens *authenticator.TokenIssuer, google *authenticator.GoogleAuthenticator, m *metrics.Metrics) {
	// Login with username/password
	r.POST("/auth/login", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		// A malformed body gets the same answer as a wrong password.
		var req LoginRequest
		if err := parseBody(ctx, &req); err != nil {
			m.ObserveAuth("password", "invalid")
			writeError(ctx, stdCtx, errInvalidCredentials(err))
			return
		}
		if err := validate.Struct(req); err != nil {
			m.ObserveAuth("password", "invalid")
			writeError(ctx, stdCtx, errInvalidCredentials(err))
			return
		}

		u, err := svc.User.Authenticate(stdCtx, req.Username, req.Password)
		if err != nil {
			if errors.Is(err, user.ErrInvalidCredentials) {
				m.ObserveAuth("password", "invalid")
				writeError(ctx, stdCtx, errInvalidCredentials(err))
				return
			}
			m.ObserveAuth("password", "error")
			writeError(ctx, stdCtx, errServer(err))
			return
		}

		token, err := tokens.IssueLogin(identityOf(u))
		if err != nil {
			writeError(ctx, stdCtx, errServer(err))
			return
		}

		m.ObserveAuth("password", "success")
		writeOK(ctx, stdCtx, LoginResponse{Token: token, User: u.Public()})
	})

	// Login with a Google profile posted by the client
	r.POST("/auth/google-login", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		var req GoogleLoginRequest
		if err := parseBody(ctx, &req); err != nil {
			writeError(ctx, stdCtx, perrors.NewErrValidation("invalid request body", err))
			return
		}

		switch {
		case req.IDToken != "" && google.Enabled():
			id, err := google.VerifyIDToken(stdCtx, req.IDToken)
			if err != nil {
				m.ObserveAuth("google", "invalid")
				writeError(ctx, stdCtx, perrors.NewErrUnauthenticated("invalid token", err))
				return
			}
			req.GoogleID, req.Email = id.Subject, id.Email
			if id.Name != "" {
				req.Name = id.Name
			}
		case google.RequireIDToken():
			m.ObserveAuth("google", "invalid")
			writeError(ctx, stdCtx, perrors.NewErrUnauthenticated("authentication token required", nil))
			return
		}

		if err := validate.Struct(req); err != nil {
			writeError(ctx, stdCtx, perrors.NewErrValidation("googleId and a valid email are required", err))
			return
		}

		federatedLogin(ctx, svc, tokens, m, user.FederatedProfile{
			FederatedID: req.GoogleID,
			Email:       req.Email,
			Name:        req.Name,
		})
	})

	// Current user
	r.GET("/auth/me", authenticator.Authenticate(tokens, func(ctx *fasthttp.RequestCtx, claims *authenticator.Claims) {
		stdCtx := requestContext(ctx)

		u, err := svc.User.GetByID(stdCtx, claims.UserID)
		if err != nil {
			if errors.Is(err, user.ErrUserNotFound) {
				writeError(ctx, stdCtx, perrors.NewErrNotFound("user not found", err))
				return
			}
			writeError(ctx, stdCtx, errServer(err))
			return
		}

		writeOK(ctx, stdCtx, u.Public())
	}))

	if !google.Enabled() {
		return
	}

	r.GET("/auth/google", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		state, err := google.NewState()
		if err != nil {
			writeError(ctx, stdCtx, errServer(err))
			return
		}

		ctx.Redirect(google.AuthCodeURL(state), fasthttp.StatusTemporaryRedirect)
	})

	r.GET("/auth/google/callback", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		encodedState := ctx.QueryArgs().Peek("state")
		code := ctx.QueryArgs().Peek("code")

		if len(encodedState) == 0 || len(code) == 0 {
			writeError(ctx, stdCtx, perrors.NewErrValidation("state and code are required", errors.New("missing parameters")))
			return
		}

		if _, err := google.VerifyState(string(encodedState)); err != nil {
			writeError(ctx, stdCtx, perrors.NewErrUnauthenticated("invalid state", err))
			return
		}

		id, err := google.ExchangeCode(stdCtx, string(code))
		if err != nil {
			m.ObserveAuth("google", "invalid")
			writeError(ctx, stdCtx, perrors.NewErrUnauthenticated("invalid token", err))
			return
		}

		federatedLogin(ctx, svc, tokens, m, user.FederatedProfile{
			FederatedID: id.Subject,
			Email:       id.Email,
			Name:        id.Name,
		})
	})
}

func federatedLogin(ctx *fasthttp.RequestCtx, svc *services.Services, tokens *authenticator.TokenIssuer, m *metrics.Metrics, profile user.FederatedProfile) {
	stdCtx := requestContext(ctx)

	u, err := svc.User.FederatedLogin(stdCtx, profile)
	if err != nil {
		m.ObserveAuth("google", "error")
		writeError(ctx, stdCtx, errServer(err))
		return
	}

	token, err := tokens.IssueFederated(identityOf(u))
	if err != nil {
		writeError(ctx, stdCtx, errServer(err))
		return
	}

	m.ObserveAuth("google", "success")
	writeOK(ctx, stdCtx, LoginResponse{Token: token, User: u.Public()})
}
