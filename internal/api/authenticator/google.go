package authenticator

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/curaious/fabricqr/internal/config"
)

const (
	GoogleIssuer = "https://accounts.google.com"
	stateTTL     = 5 * time.Minute
)

var (
	ErrGoogleDisabled = errors.New("google login is not configured")
	ErrInvalidState   = errors.New("invalid oauth state")
)

// GoogleIdentity is what a verified Google ID token says about its holder.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// GoogleAuthenticator verifies Google ID tokens and drives the OAuth code
// flow. The zero value is a disabled authenticator.
type GoogleAuthenticator struct {
	oauth          oauth2.Config
	verifier       *oidc.IDTokenVerifier
	stateSecret    []byte
	requireIDToken bool
	now            func() time.Time
}

func NewGoogleAuthenticator(ctx context.Context, conf *config.Config) (*GoogleAuthenticator, error) {
	if !conf.GoogleEnabled() {
		return &GoogleAuthenticator{}, nil
	}

	provider, err := oidc.NewProvider(ctx, GoogleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover google oidc provider: %w", err)
	}

	oauthConf := oauth2.Config{
		ClientID:     conf.GOOGLE_CLIENT_ID,
		ClientSecret: conf.GOOGLE_CLIENT_SECRET,
		RedirectURL:  conf.GOOGLE_CALLBACK_URL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	verifier := provider.Verifier(&oidc.Config{ClientID: conf.GOOGLE_CLIENT_ID})

	return newGoogleAuthenticator(oauthConf, verifier, conf.STATE_SECRET, conf.GOOGLE_REQUIRE_ID_TOKEN), nil
}

func newGoogleAuthenticator(oauthConf oauth2.Config, verifier *oidc.IDTokenVerifier, stateSecret string, requireIDToken bool) *GoogleAuthenticator {
	return &GoogleAuthenticator{
		oauth:          oauthConf,
		verifier:       verifier,
		stateSecret:    []byte(stateSecret),
		requireIDToken: requireIDToken,
		now:            time.Now,
	}
}

func (g *GoogleAuthenticator) Enabled() bool {
	return g != nil && g.verifier != nil
}

// RequireIDToken reports whether /auth/google-login must carry an ID token.
func (g *GoogleAuthenticator) RequireIDToken() bool {
	return g.Enabled() && g.requireIDToken
}

// VerifyIDToken checks signature, issuer, audience and expiry of a raw ID token.
func (g *GoogleAuthenticator) VerifyIDToken(ctx context.Context, rawIDToken string) (*GoogleIdentity, error) {
	if !g.Enabled() {
		return nil, ErrGoogleDisabled
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}

	var profile struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&profile); err != nil {
		return nil, fmt.Errorf("failed to read id token claims: %w", err)
	}

	return &GoogleIdentity{Subject: idToken.Subject, Email: profile.Email, Name: profile.Name}, nil
}

// ExchangeCode trades an authorization code for tokens and verifies the
// returned ID token.
func (g *GoogleAuthenticator) ExchangeCode(ctx context.Context, code string) (*GoogleIdentity, error) {
	if !g.Enabled() {
		return nil, ErrGoogleDisabled
	}

	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("no id_token field in oauth2 token")
	}
	return g.VerifyIDToken(ctx, rawIDToken)
}

func (g *GoogleAuthenticator) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

type OAuthState struct {
	CSRF      string `json:"csrf"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// NewState returns a signed state valid for five minutes.
func (g *GoogleAuthenticator) NewState() (string, error) {
	csrf := make([]byte, 16)
	if _, err := rand.Read(csrf); err != nil {
		return "", err
	}

	now := g.now()
	return g.SignState(OAuthState{
		CSRF:      base64.RawURLEncoding.EncodeToString(csrf),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(stateTTL).Unix(),
	})
}

// SignState encodes state as base64url(payload || HMAC-SHA256(payload)).
func (g *GoogleAuthenticator) SignState(state OAuthState) (string, error) {
	payload, err := sonic.Marshal(state)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, g.stateSecret)
	mac.Write(payload)
	sig := mac.Sum(nil)

	combined := append(payload, sig...)
	return base64.RawURLEncoding.EncodeToString(combined), nil
}

func (g *GoogleAuthenticator) VerifyState(encodedState string) (*OAuthState, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encodedState)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64", ErrInvalidState)
	}

	if len(raw) < sha256.Size {
		return nil, fmt.Errorf("%w: state too short", ErrInvalidState)
	}

	payload := raw[:len(raw)-sha256.Size]
	sig := raw[len(raw)-sha256.Size:]

	mac := hmac.New(sha256.New, g.stateSecret)
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return nil, fmt.Errorf("%w: bad signature", ErrInvalidState)
	}

	var state OAuthState
	if err := sonic.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("%w: bad payload", ErrInvalidState)
	}

	if g.now().Unix() > state.ExpiresAt {
		return nil, fmt.Errorf("%w: expired", ErrInvalidState)
	}

	return &state, nil
}
