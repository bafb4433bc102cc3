package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"scholarportal.org/internal/auth"
)

type verificationStore struct{ db *sql.DB }

func (s verificationStore) Put(ctx context.Context, v *auth.Verification) error {
	var verified sql.NullTime
	if v.VerifiedAt != nil {
		verified = sql.NullTime{Time: *v.VerifiedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		insert into verifications (email, purpose, code_hash, attempts, sent_at, expires_at, verified_at)
		values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (email, purpose) do update
		set code_hash = excluded.code_hash,
			attempts = excluded.attempts,
			sent_at = excluded.sent_at,
			expires_at = excluded.expires_at,
			verified_at = excluded.verified_at
	`, strings.ToLower(v.Email), string(v.Purpose), v.CodeHash, v.Attempts, v.SentAt, v.ExpiresAt, verified)
	return err
}

func (s verificationStore) Find(ctx context.Context, email string, purpose auth.Purpose) (*auth.Verification, error) {
	var (
		v        auth.Verification
		p        string
		verified sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select email, purpose, code_hash, attempts, sent_at, expires_at, verified_at
		from verifications
		where email = $1 and purpose = $2
	`, strings.ToLower(email), string(purpose)).Scan(&v.Email, &p, &v.CodeHash, &v.Attempts, &v.SentAt, &v.ExpiresAt, &verified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.Purpose = auth.Purpose(p)
	if verified.Valid {
		at := verified.Time
		v.VerifiedAt = &at
	}
	return &v, nil
}

func (s verificationStore) Delete(ctx context.Context, email string, purpose auth.Purpose) error {
	_, err := s.db.ExecContext(ctx,
		`delete from verifications where email = $1 and purpose = $2`, strings.ToLower(email), string(purpose))
	return err
}
