package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidCredentials covers both an unknown username and a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// maxUsernameAttempts bounds how many suffixed usernames a federated signup tries.
const maxUsernameAttempts = 20

type UserService struct {
	repo   UserRepo
	verify func(c Credentials, candidate string) bool
	tracer trace.Tracer
}

func NewUserService(repo UserRepo) *UserService {
	return &UserService{repo: repo, verify: VerifyPassword, tracer: otel.Tracer("fabricqr/user")}
}

// Authenticate looks the user up by username and checks the password. An
// unknown username still runs the password compare.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Authenticate")
	defer span.End()

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.verify(nil, password)
			return nil, ErrInvalidCredentials
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if !s.verify(user.Credentials, password) {
		return nil, ErrInvalidCredentials
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	return user, nil
}

// FederatedLogin finds the user for profile.FederatedID, refreshing its email,
// or creates a federated-only account when none exists.
func (s *UserService) FederatedLogin(ctx context.Context, profile FederatedProfile) (*User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.FederatedLogin")
	defer span.End()

	// A concurrent signup for the same id makes our insert fail on the unique
	// index; the second pass then finds and refreshes that user instead.
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.repo.GetByFederatedID(ctx, profile.FederatedID)
		switch {
		case err == nil:
			return s.refreshFederated(ctx, existing, profile)
		case !errors.Is(err, ErrUserNotFound):
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		created, err := s.createFederated(ctx, profile)
		if errors.Is(err, ErrDuplicateFederatedID) {
			slog.InfoContext(ctx, "Federated signup raced, retrying as update", slog.String("federated_id", profile.FederatedID))
			continue
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		return created, err
	}

	return nil, fmt.Errorf("federated login for %s: %w", profile.FederatedID, ErrDuplicateFederatedID)
}

func (s *UserService) refreshFederated(ctx context.Context, u *User, profile FederatedProfile) (*User, error) {
	u.Email = profile.Email
	if u.Username != "" {
		if err := s.repo.Update(ctx, u); err != nil {
			return nil, fmt.Errorf("failed to refresh user: %w", err)
		}
		return u, nil
	}

	err := withUniqueUsername(DefaultUsername(profile.Email), func(candidate string) error {
		u.Username = candidate
		return s.repo.Update(ctx, u)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh user: %w", err)
	}
	return u, nil
}

func (s *UserService) createFederated(ctx context.Context, profile FederatedProfile) (*User, error) {
	u := &User{
		Email:       profile.Email,
		Credentials: FederatedAccount{FederatedID: profile.FederatedID},
	}

	err := withUniqueUsername(DefaultUsername(profile.Email), func(candidate string) error {
		u.Username = candidate
		return s.repo.Create(ctx, u)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Created federated user", slog.String("user_id", u.ID), slog.String("username", u.Username))
	return u, nil
}

// withUniqueUsername calls save with base, then base2, base3, ... while the
// store reports a username collision.
func withUniqueUsername(base string, save func(candidate string) error) error {
	var err error
	for i := 1; i <= maxUsernameAttempts; i++ {
		candidate := base
		if i > 1 {
			candidate = fmt.Sprintf("%s%d", base, i)
		}

		err = save(candidate)
		if !errors.Is(err, ErrDuplicateUsername) {
			return err
		}
	}
	return err
}

// DefaultUsername derives a username from the local part of an email address.
func DefaultUsername(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.TrimSpace(local)
	if local == "" {
		return "user"
	}
	return local
}

func (s *UserService) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context) ([]*User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.List")
	defer span.End()

	users, err := s.repo.List(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return users, nil
}

// CreatePasswordUser creates an account that logs in with username and password.
func (s *UserService) CreatePasswordUser(ctx context.Context, username, email, password string, isAdmin, canScanQr bool) (*User, error) {
	creds, err := NewPasswordAccount(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &User{
		Username:    username,
		Email:       email,
		Credentials: creds,
		IsAdmin:     isAdmin,
		CanScanQr:   canScanQr,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Grant updates the capability flags of a user. Nil leaves a flag unchanged.
// Tokens issued before the change keep their old claims until they expire.
func (s *UserService) Grant(ctx context.Context, username string, isAdmin, canScanQr *bool) (*User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if isAdmin != nil {
		u.IsAdmin = *isAdmin
	}
	if canScanQr != nil {
		u.CanScanQr = *canScanQr
	}

	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
