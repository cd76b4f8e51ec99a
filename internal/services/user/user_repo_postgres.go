package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const userColumns = `id, username, password_hash, google_id, email, can_scan_qr, is_admin, created_at, updated_at`

type userRow struct {
	ID           string         `db:"id"`
	Username     string         `db:"username"`
	PasswordHash sql.NullString `db:"password_hash"`
	GoogleID     sql.NullString `db:"google_id"`
	Email        string         `db:"email"`
	CanScanQr    bool           `db:"can_scan_qr"`
	IsAdmin      bool           `db:"is_admin"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (row *userRow) toUser() (*User, error) {
	creds, err := credentialsFrom(row.PasswordHash.String, row.GoogleID.String)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", row.ID, err)
	}
	return &User{
		ID:          row.ID,
		Username:    row.Username,
		Email:       row.Email,
		Credentials: creds,
		CanScanQr:   row.CanScanQr,
		IsAdmin:     row.IsAdmin,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func nullable(s string, ok bool) sql.NullString {
	return sql.NullString{String: s, Valid: ok}
}

// PostgresUserRepo handles database operations for users
type PostgresUserRepo struct {
	db *sqlx.DB
}

func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func (r *PostgresUserRepo) Create(ctx context.Context, u *User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	query := `
        INSERT INTO users (id, username, password_hash, google_id, email, can_scan_qr, is_admin)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at
    `

	id := uuid.NewString()
	err := r.db.QueryRowxContext(ctx, query,
		id,
		u.Username,
		nullable(u.PasswordHash()),
		nullable(u.FederatedID()),
		u.Email,
		u.CanScanQr,
		u.IsAdmin,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return pqDuplicate(err, "failed to create user")
	}

	u.ID = id
	return nil
}

func (r *PostgresUserRepo) Update(ctx context.Context, u *User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	query := `
        UPDATE users
        SET username = $2, password_hash = $3, google_id = $4, email = $5,
            can_scan_qr = $6, is_admin = $7, updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at
    `

	err := r.db.QueryRowxContext(ctx, query,
		u.ID,
		u.Username,
		nullable(u.PasswordHash()),
		nullable(u.FederatedID()),
		u.Email,
		u.CanScanQr,
		u.IsAdmin,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return pqDuplicate(err, "failed to update user")
	}
	return nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id string) (*User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *PostgresUserRepo) GetByFederatedID(ctx context.Context, federatedID string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE google_id = $1`, federatedID)
}

func (r *PostgresUserRepo) List(ctx context.Context) ([]*User, error) {
	var rows []userRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*User, 0, len(rows))
	for i := range rows {
		u, err := rows[i].toUser()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (r *PostgresUserRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresUserRepo) getOne(ctx context.Context, query string, arg any) (*User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return row.toUser()
}

// pqDuplicate maps unique_violation (23505) to the violated constraint.
func pqDuplicate(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return duplicateFor(pqErr.Constraint, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
