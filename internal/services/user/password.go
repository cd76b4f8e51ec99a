package user

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor (2^10 rounds).
const PasswordCost = 10

// HashPassword is called once, when a password is set. Stores never rehash.
func HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// dummyHash stands in for accounts without a password so that a failed
// login costs one bcrypt compare whether or not the username exists.
var dummyHash = sync.OnceValue(func() []byte {
	hashed, err := bcrypt.GenerateFromPassword([]byte("fabricqr-no-password"), PasswordCost)
	if err != nil {
		panic(err)
	}
	return hashed
})

func NewPasswordAccount(plain string) (PasswordAccount, error) {
	hash, err := HashPassword(plain)
	if err != nil {
		return PasswordAccount{}, err
	}
	return PasswordAccount{PasswordHash: hash}, nil
}

// VerifyPassword reports whether candidate matches the stored hash. Accounts
// without a password, nil included, never match but still pay for a compare.
func VerifyPassword(c Credentials, candidate string) bool {
	hash, ok := passwordHashOf(c)
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(candidate))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) == nil
}
