package db

import (
	"context"

	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
)

func (s *DB) GetUserByEmail(ctx context.Context, email string) (_ *entity.User, err error) {
	ctx, span := s.startSpan(ctx, "GetUserByEmail")
	defer func() { s.endSpan(span, err) }()

	const q = `SELECT id, email, name, password_hash, role, email_verified, created_at, updated_at
		FROM identity_users WHERE email = $1`

	var (
		u    entity.User
		role string
	)
	if err := s.conn.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, s.mapError(err)
	}
	u.Role = entity.ParseRole(role)

	return &u, nil
}

func (s *DB) CreateUser(ctx context.Context, user entity.User) (err error) {
	ctx, span := s.startSpan(ctx, "CreateUser")
	defer func() { s.endSpan(span, err) }()

	const q = `INSERT INTO identity_users
		(id, email, name, password_hash, role, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.conn.Exec(ctx, q,
		user.ID, user.Email, user.Name, user.PasswordHash, user.Role.String(),
		user.EmailVerified, user.CreatedAt, user.UpdatedAt,
	)
	return s.mapError(err)
}

func (s *DB) UpdateUserPassword(ctx context.Context, email, passwordHash string) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateUserPassword")
	defer func() { s.endSpan(span, err) }()

	const q = `UPDATE identity_users SET password_hash = $2, updated_at = now() WHERE email = $1`

	tag, err := s.conn.Exec(ctx, q, email, passwordHash)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}
