package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"scholarportal.org/internal/auth"
)

const userColumns = `id, email, password_hash, role, name, surname, given_name, middle_name,
	nationality, has_passport, passport_number, created_at, updated_at`

type userStore struct{ db *sql.DB }

func scanUser(row scanner) (*auth.User, error) {
	var (
		u    auth.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.Name, &u.Surname, &u.GivenName,
		&u.MiddleName, &u.Nationality, &u.HasPassport, &u.PassportNumber, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

func (s userStore) Create(ctx context.Context, u *auth.User) error {
	role := u.Role
	if role == "" {
		role = auth.RoleCustomer
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, email, password_hash, role, name, surname, given_name, middle_name,
			nationality, has_passport, passport_number, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, u.ID, strings.ToLower(u.Email), u.PasswordHash, string(role), u.Name, u.Surname, u.GivenName,
		u.MiddleName, u.Nationality, u.HasPassport, u.PassportNumber, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s userStore) Find(ctx context.Context, id string) (*auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id))
}

func (s userStore) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where email = $1`, strings.ToLower(email)))
}

func (s userStore) UpdateProfile(ctx context.Context, id string, upd auth.ProfileUpdate) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		update users set
			name = coalesce($2, name),
			surname = coalesce($3, surname),
			given_name = coalesce($4, given_name),
			middle_name = coalesce($5, middle_name),
			nationality = coalesce($6, nationality),
			passport_number = coalesce($7, passport_number),
			has_passport = case when $7::text is null then has_passport else $7::text <> '' end,
			updated_at = now()
		where id = $1
		returning `+userColumns,
		id, nullString(upd.Name), nullString(upd.Surname), nullString(upd.GivenName),
		nullString(upd.MiddleName), nullString(upd.Nationality), nullString(upd.PassportNumber))
	return scanUser(row)
}

func (s userStore) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash = $2, updated_at = now() where id = $1`, userID, passwordHash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
