package pg

import (
	"context"
	"database/sql"
	"errors"

	"scholarportal.org/internal/auth"
)

type sessionStore struct{ db *sql.DB }

func (s sessionStore) Create(ctx context.Context, sess *auth.Session) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (id, user_id, created_at, expires_at, revoked)
		values ($1, $2, $3, $4, $5)
	`, sess.ID, sess.UserID, sess.CreatedAt, sess.ExpiresAt, sess.Revoked)
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return auth.ErrAlreadyExists
	}
	return err
}

func (s sessionStore) Find(ctx context.Context, id string) (*auth.Session, error) {
	var sess auth.Session
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, created_at, expires_at, revoked
		from sessions
		where id = $1
	`, id).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt, &sess.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s sessionStore) MarkRevoked(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `update sessions set revoked = true where id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s sessionStore) MarkRevokedByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update sessions set revoked = true where user_id = $1 and not revoked`, userID)
	return err
}
