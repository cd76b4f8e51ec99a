package authenticator

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/curaious/fabricqr/internal/config"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload: {userId, isAdmin, canScanQr, iat, exp, iss, sub}.
type Claims struct {
	UserID    string `json:"userId"`
	IsAdmin   bool   `json:"isAdmin"`
	CanScanQr bool   `json:"canScanQr"`
	jwt.RegisteredClaims
}

// Identity is the subject of a token and its capability flags at issue time.
type Identity struct {
	UserID    string
	IsAdmin   bool
	CanScanQr bool
}

// TokenIssuer signs and verifies HS256 bearer tokens. Tokens are stateless:
// flags changed after issue are not seen until the holder logs in again.
type TokenIssuer struct {
	secret       []byte
	issuer       string
	loginTTL     time.Duration
	federatedTTL time.Duration
	now          func() time.Time
}

type Option func(*TokenIssuer)

func WithClock(now func() time.Time) Option {
	return func(t *TokenIssuer) { t.now = now }
}

func NewTokenIssuer(conf *config.Config, opts ...Option) *TokenIssuer {
	t := &TokenIssuer{
		secret:       []byte(conf.JWT_SECRET),
		issuer:       conf.JWT_ISSUER,
		loginTTL:     conf.LOGIN_TOKEN_TTL,
		federatedTTL: conf.GOOGLE_TOKEN_TTL,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IssueLogin issues the short-lived token handed out by password login.
func (t *TokenIssuer) IssueLogin(id Identity) (string, error) {
	return t.issue(id, t.loginTTL)
}

// IssueFederated issues the long-lived token handed out by Google login.
func (t *TokenIssuer) IssueFederated(id Identity) (string, error) {
	return t.issue(id, t.federatedTTL)
}

func (t *TokenIssuer) issue(id Identity, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		UserID:    id.UserID,
		IsAdmin:   id.IsAdmin,
		CanScanQr: id.CanScanQr,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer and expiry. Every failure wraps
// ErrInvalidToken.
func (t *TokenIssuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(t.issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrInvalidToken)
	}
	return claims, nil
}
