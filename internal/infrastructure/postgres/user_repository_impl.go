package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dzakira/authcore/internal/domain/entity"
	"github.com/dzakira/authcore/internal/domain/repository"
)

// uniqueViolation is the SQLSTATE raised by Postgres when an insert hits a
// unique constraint. Mapping it here is what makes Create atomic with
// respect to concurrent registrations: there is no pre-check.
const uniqueViolation = "23505"

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.UserRecord) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, face_template, auth_provider)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''))
		RETURNING id, created_at
	`, u.Username, u.Email, u.PasswordHash, u.FaceTemplate, u.AuthProvider)

	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.UserRecord, error) {
	return r.getBy(ctx, "username", username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.UserRecord, error) {
	return r.getBy(ctx, "email", email)
}

func (r *UserRepository) getBy(ctx context.Context, column, value string) (*entity.UserRecord, error) {
	u := &entity.UserRecord{}
	var passwordHash, authProvider *string

	row := r.pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, face_template, auth_provider, created_at
		FROM users
		WHERE `+column+` = $1
	`, value)

	if err := row.Scan(&u.ID, &u.Username, &u.Email, &passwordHash,
		&u.FaceTemplate, &authProvider, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}
	if authProvider != nil {
		u.AuthProvider = *authProvider
	}
	return u, nil
}

func (r *UserRepository) ListEnrolled(ctx context.Context) ([]*entity.UserRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, email, face_template, created_at
		FROM users
		WHERE face_template IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.UserRecord
	for rows.Next() {
		u := &entity.UserRecord{}
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.FaceTemplate, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepository) ReplaceFaceTemplate(ctx context.Context, username string, template []byte) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET face_template = $1 WHERE username = $2
	`, template, username)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
