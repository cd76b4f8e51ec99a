package user

import (
	"errors"
	"time"
)

var ErrNoCredentials = errors.New("user has neither a password nor a federated id")

// Credentials is the set of login methods an account supports. It is one of
// PasswordAccount, FederatedAccount or HybridAccount; an account with no login
// method cannot be represented.
type Credentials interface {
	credentials()
}

type PasswordAccount struct {
	PasswordHash string
}

type FederatedAccount struct {
	FederatedID string
}

type HybridAccount struct {
	PasswordHash string
	FederatedID  string
}

func (PasswordAccount) credentials()  {}
func (FederatedAccount) credentials() {}
func (HybridAccount) credentials()    {}

// credentialsFrom rebuilds Credentials from the optional columns a store keeps.
func credentialsFrom(passwordHash, federatedID string) (Credentials, error) {
	switch {
	case passwordHash != "" && federatedID != "":
		return HybridAccount{PasswordHash: passwordHash, FederatedID: federatedID}, nil
	case passwordHash != "":
		return PasswordAccount{PasswordHash: passwordHash}, nil
	case federatedID != "":
		return FederatedAccount{FederatedID: federatedID}, nil
	default:
		return nil, ErrNoCredentials
	}
}

func passwordHashOf(c Credentials) (string, bool) {
	switch v := c.(type) {
	case PasswordAccount:
		return v.PasswordHash, v.PasswordHash != ""
	case HybridAccount:
		return v.PasswordHash, v.PasswordHash != ""
	default:
		return "", false
	}
}

func federatedIDOf(c Credentials) (string, bool) {
	switch v := c.(type) {
	case FederatedAccount:
		return v.FederatedID, v.FederatedID != ""
	case HybridAccount:
		return v.FederatedID, v.FederatedID != ""
	default:
		return "", false
	}
}

type User struct {
	ID          string
	Username    string
	Email       string
	Credentials Credentials
	CanScanQr   bool
	IsAdmin     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (u *User) PasswordHash() (string, bool) {
	return passwordHashOf(u.Credentials)
}

func (u *User) FederatedID() (string, bool) {
	return federatedIDOf(u.Credentials)
}

// SetPassword hashes plain and attaches it to the account, keeping any federated id.
func (u *User) SetPassword(plain string) error {
	hash, err := HashPassword(plain)
	if err != nil {
		return err
	}

	if id, ok := u.FederatedID(); ok {
		u.Credentials = HybridAccount{PasswordHash: hash, FederatedID: id}
	} else {
		u.Credentials = PasswordAccount{PasswordHash: hash}
	}
	return nil
}

// LinkFederatedID attaches an external identity, keeping any password.
func (u *User) LinkFederatedID(id string) {
	if hash, ok := u.PasswordHash(); ok {
		u.Credentials = HybridAccount{PasswordHash: hash, FederatedID: id}
		return
	}
	u.Credentials = FederatedAccount{FederatedID: id}
}

// Validate checks the invariants every persisted user must satisfy.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Username == "" {
		return errors.New("username is required")
	}
	_, hasPassword := u.PasswordHash()
	_, hasFederated := u.FederatedID()
	if !hasPassword && !hasFederated {
		return ErrNoCredentials
	}
	return nil
}

// PublicUser is the only shape in which a user leaves the service.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	GoogleID  string    `json:"googleId,omitempty"`
	CanScanQr bool      `json:"canScanQr"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) Public() PublicUser {
	googleID, _ := u.FederatedID()
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		GoogleID:  googleID,
		CanScanQr: u.CanScanQr,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// FederatedProfile is what an identity provider tells us about a user.
type FederatedProfile struct {
	FederatedID string
	Email       string
	Name        string
}
