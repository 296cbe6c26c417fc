package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/valueobject"
)

// CreateOTP inserts token, or replaces the existing row for (email, purpose)
// only when that row expired before now. The unique constraint makes the
// check and the write a single atomic statement.
func (s *DB) CreateOTP(ctx context.Context, token entity.OTPToken, now time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "CreateOTP")
	defer func() { s.endSpan(span, err) }()

	const q = `INSERT INTO identity_otp_tokens
		(id, email, code_digest, purpose, expires_at, attempts, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email, purpose) DO UPDATE SET
			id = EXCLUDED.id,
			code_digest = EXCLUDED.code_digest,
			expires_at = EXCLUDED.expires_at,
			attempts = EXCLUDED.attempts,
			metadata = EXCLUDED.metadata,
			created_at = EXCLUDED.created_at
		WHERE identity_otp_tokens.expires_at < $9
		RETURNING id`

	metadata := token.Metadata
	if metadata == nil {
		metadata = valueobject.JSONMap{}
	}

	var id int64
	err = s.conn.QueryRow(ctx, q,
		token.ID, token.Email, token.CodeDigest, token.Purpose.String(), token.ExpiresAt,
		token.Attempts, metadata, token.CreatedAt, now,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrConflict
	}

	return s.mapError(err)
}

func (s *DB) GetOTP(ctx context.Context, email string, purpose entity.OTPPurpose, codeDigest string) (_ *entity.OTPToken, err error) {
	ctx, span := s.startSpan(ctx, "GetOTP")
	defer func() { s.endSpan(span, err) }()

	const q = `SELECT id, email, code_digest, purpose, expires_at, attempts, metadata, created_at
		FROM identity_otp_tokens
		WHERE email = $1 AND purpose = $2 AND code_digest = $3`

	var (
		tok entity.OTPToken
		p   string
	)
	if err := s.conn.QueryRow(ctx, q, email, purpose.String(), codeDigest).Scan(
		&tok.ID, &tok.Email, &tok.CodeDigest, &p, &tok.ExpiresAt, &tok.Attempts, &tok.Metadata, &tok.CreatedAt,
	); err != nil {
		return nil, s.mapError(err)
	}
	tok.Purpose = entity.ParseOTPPurpose(p)

	return &tok, nil
}

func (s *DB) IncrementOTPAttempts(ctx context.Context, token *entity.OTPToken) (_ int, err error) {
	ctx, span := s.startSpan(ctx, "IncrementOTPAttempts")
	defer func() { s.endSpan(span, err) }()

	const q = `UPDATE identity_otp_tokens SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`

	var attempts int
	if err := s.conn.QueryRow(ctx, q, token.ID).Scan(&attempts); err != nil {
		return 0, s.mapError(err)
	}

	return attempts, nil
}

func (s *DB) DeleteOTP(ctx context.Context, token *entity.OTPToken) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteOTP")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM identity_otp_tokens WHERE id = $1`, token.ID)
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}

func (s *DB) SweepExpiredOTP(ctx context.Context, now time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "SweepExpiredOTP")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `DELETE FROM identity_otp_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, s.mapError(err)
	}

	return tag.RowsAffected(), nil
}
