package postgres

import (
	"context"

	"github.com/dukerupert/ponto/internal/domain"
)

const userColumns = `id::text, email, name, password_hash, role, created_at, updated_at`

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, domain.ErrUserNotFound
	}
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByEmail returns a user by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, domain.NormalizeEmail(email))
}

// CreateUser inserts u and fills its id and timestamps.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id::text, created_at, updated_at`,
		domain.NormalizeEmail(u.Email), u.Name, u.PasswordHash, string(u.Role),
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if name, ok := constraintViolation(err, pgUniqueViolation); ok && name == "users_email_key" {
			return domain.ErrEmailTaken
		}
		return domain.Internal(err, "user.create", "failed to create user")
	}
	return nil
}

// UpdateUser writes the name, password hash and role.
func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	if !validID(u.ID) {
		return domain.ErrUserNotFound
	}
	err := s.db.QueryRow(ctx,
		`UPDATE users SET name = $2, password_hash = $3, role = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		u.ID, u.Name, u.PasswordHash, string(u.Role),
	).Scan(&u.UpdatedAt)
	if isNoRows(err) {
		return domain.ErrUserNotFound
	}
	if err != nil {
		return domain.Internal(err, "user.update", "failed to update user")
	}
	return nil
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var (
		u    domain.User
		role string
	)
	err := s.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Internal(err, "user.get", "failed to read user")
	}
	u.Role = domain.Role(role)
	return &u, nil
}
