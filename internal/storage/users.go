package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ayunierto/ascencio-tax-api/internal/model"
	"github.com/ayunierto/ascencio-tax-api/libs/db"
)

type UsersRepository struct {
	pool *db.Pool
}

func NewUsersRepository(pool *db.Pool) *UsersRepository {
	return &UsersRepository{pool: pool}
}

// CreateWithPassword stores a user and its bcrypt password hash. A duplicate
// email fails the users_email_key unique index; callers map that with
// IsConflict.
func (r *UsersRepository) CreateWithPassword(ctx context.Context, u *model.User, passwordHash string) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, email, phone_number, role, password_hash)
		VALUES ($1, $2, $3, lower($4), $5, $6, $7)
	`, u.ID, u.FirstName, u.LastName, u.Email, u.PhoneNumber, u.Role, passwordHash)
	return err
}

func (r *UsersRepository) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, first_name, last_name, email, COALESCE(phone_number, ''), role
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber, &u.Role)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail returns the user and stored password hash for login.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (*model.User, string, error) {
	var u model.User
	var hash string
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, first_name, last_name, email, COALESCE(phone_number, ''), role, password_hash
		FROM users
		WHERE email = lower($1)
	`, email).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber, &u.Role, &hash)
	if err != nil {
		return nil, "", err
	}
	return &u, hash, nil
}

func (r *UsersRepository) Update(ctx context.Context, u *model.User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, phone_number = $4, updated_at = now()
		WHERE id = $1
	`, u.ID, u.FirstName, u.LastName, u.PhoneNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
