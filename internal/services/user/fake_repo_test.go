package user

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memRepo is an in-memory UserRepo enforcing the same unique keys as the real stores.
type memRepo struct {
	mu     sync.Mutex
	users  map[string]User
	nextID int
	err    error
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[string]User{}}
}

func (r *memRepo) conflict(u *User) error {
	fid, hasFid := u.FederatedID()
	for id, other := range r.users {
		if id == u.ID {
			continue
		}
		if other.Username == u.Username {
			return ErrDuplicateUsername
		}
		if other.Email == u.Email {
			return ErrDuplicateEmail
		}
		if ofid, ok := other.FederatedID(); ok && hasFid && ofid == fid {
			return ErrDuplicateFederatedID
		}
	}
	return nil
}

func (r *memRepo) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if err := u.Validate(); err != nil {
		return err
	}
	u.ID = ""
	if err := r.conflict(u); err != nil {
		return err
	}
	r.nextID++
	u.ID = fmt.Sprintf("u%d", r.nextID)
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.users[u.ID] = *u
	return nil
}

func (r *memRepo) Update(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.users[u.ID]; !ok {
		return ErrUserNotFound
	}
	if err := r.conflict(u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now()
	r.users[u.ID] = *u
	return nil
}

func (r *memRepo) find(match func(User) bool) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *memRepo) GetByID(_ context.Context, id string) (*User, error) {
	return r.find(func(u User) bool { return u.ID == id })
}

func (r *memRepo) GetByUsername(_ context.Context, username string) (*User, error) {
	return r.find(func(u User) bool { return u.Username == username })
}

func (r *memRepo) GetByFederatedID(_ context.Context, federatedID string) (*User, error) {
	return r.find(func(u User) bool {
		id, ok := u.FederatedID()
		return ok && id == federatedID
	})
}

func (r *memRepo) List(context.Context) ([]*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		u := u
		out = append(out, &u)
	}
	return out, nil
}

func (r *memRepo) Ping(context.Context) error { return r.err }
