package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/curaious/fabricqr/internal/services/material"
	"github.com/curaious/fabricqr/internal/services/user"
)

// memUsers is an in-memory user.UserRepo with the same uniqueness rules as
// the real stores.
type memUsers struct {
	mu     sync.Mutex
	byID   map[string]user.User
	nextID int
	err    error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]user.User{}}
}

func (r *memUsers) conflict(u *user.User) error {
	fid, hasFID := u.FederatedID()
	for id, other := range r.byID {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username {
			return user.ErrDuplicateUsername
		}
		if other.Email == u.Email {
			return user.ErrDuplicateEmail
		}
		if ofid, ok := other.FederatedID(); ok && hasFID && ofid == fid {
			return user.ErrDuplicateFederatedID
		}
	}
	return nil
}

func (r *memUsers) Create(_ context.Context, u *user.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	u.ID = ""
	if err := r.conflict(u); err != nil {
		return err
	}
	r.nextID++
	u.ID = fmt.Sprintf("u%d", r.nextID)
	u.CreatedAt, u.UpdatedAt = time.Now(), time.Now()
	r.byID[u.ID] = *u
	return nil
}

func (r *memUsers) Update(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.byID[u.ID]; !ok {
		return user.ErrUserNotFound
	}
	if err := r.conflict(u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now()
	r.byID[u.ID] = *u
	return nil
}

func (r *memUsers) find(match func(user.User) bool) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if match(u) {
			return &u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *memUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	return r.find(func(u user.User) bool { return u.ID == id })
}

func (r *memUsers) GetByUsername(_ context.Context, username string) (*user.User, error) {
	return r.find(func(u user.User) bool { return u.Username == username })
}

func (r *memUsers) GetByFederatedID(_ context.Context, federatedID string) (*user.User, error) {
	return r.find(func(u user.User) bool {
		fid, ok := u.FederatedID()
		return ok && fid == federatedID
	})
}

func (r *memUsers) List(context.Context) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*user.User, 0, len(r.byID))
	for i := 1; i <= r.nextID; i++ {
		if u, ok := r.byID[fmt.Sprintf("u%d", i)]; ok {
			out = append(out, &u)
		}
	}
	return out, nil
}

func (r *memUsers) Ping(context.Context) error { return r.err }

func (r *memUsers) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type memMaterials struct {
	items map[string]material.Material
	err   error
}

func (r *memMaterials) GetByQRCodeID(_ context.Context, id string) (*material.Material, error) {
	if r.err != nil {
		return nil, r.err
	}
	m, ok := r.items[id]
	if !ok {
		return nil, material.ErrMaterialNotFound
	}
	return &m, nil
}

func (r *memMaterials) Upsert(_ context.Context, m *material.Material) error {
	if r.err != nil {
		return r.err
	}
	r.items[m.QRCodeID] = *m
	return nil
}

func (r *memMaterials) Ping(context.Context) error { return r.err }
