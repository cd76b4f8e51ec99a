package user

import (
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsFrom(t *testing.T) {
	c, err := credentialsFrom("hash", "")
	require.NoError(t, err)
	assert.Equal(t, PasswordAccount{PasswordHash: "hash"}, c)

	c, err = credentialsFrom("", "g-1")
	require.NoError(t, err)
	assert.Equal(t, FederatedAccount{FederatedID: "g-1"}, c)

	c, err = credentialsFrom("hash", "g-1")
	require.NoError(t, err)
	assert.Equal(t, HybridAccount{PasswordHash: "hash", FederatedID: "g-1"}, c)

	_, err = credentialsFrom("", "")
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestUser_LinkAndSetPassword(t *testing.T) {
	u := &User{Username: "kim", Email: "kim@example.com", Credentials: FederatedAccount{FederatedID: "g-1"}}

	require.NoError(t, u.SetPassword("secret-pass"))
	hybrid, ok := u.Credentials.(HybridAccount)
	require.True(t, ok)
	assert.Equal(t, "g-1", hybrid.FederatedID)
	assert.True(t, VerifyPassword(u.Credentials, "secret-pass"))

	p := &User{Username: "lee", Email: "lee@example.com", Credentials: PasswordAccount{PasswordHash: "h"}}
	p.LinkFederatedID("g-2")
	assert.Equal(t, HybridAccount{PasswordHash: "h", FederatedID: "g-2"}, p.Credentials)
}

func TestUser_Validate(t *testing.T) {
	assert.NoError(t, (&User{Username: "a", Email: "a@x", Credentials: FederatedAccount{FederatedID: "g"}}).Validate())
	assert.Error(t, (&User{Username: "a", Credentials: FederatedAccount{FederatedID: "g"}}).Validate())
	assert.Error(t, (&User{Email: "a@x", Credentials: FederatedAccount{FederatedID: "g"}}).Validate())
	assert.ErrorIs(t, (&User{Username: "a", Email: "a@x"}).Validate(), ErrNoCredentials)
}

func TestPublic_OmitsPasswordHash(t *testing.T) {
	u := &User{
		ID:          "u1",
		Username:    "kim",
		Email:       "kim@example.com",
		Credentials: HybridAccount{PasswordHash: "$2a$10$secret", FederatedID: "g-1"},
		IsAdmin:     true,
	}

	body, err := sonic.Marshal(u.Public())
	require.NoError(t, err)

	assert.NotContains(t, string(body), "$2a$10$secret")
	assert.NotContains(t, string(body), "password")
	assert.Contains(t, string(body), `"googleId":"g-1"`)
	assert.Contains(t, string(body), `"isAdmin":true`)
}
