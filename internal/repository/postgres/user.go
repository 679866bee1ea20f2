package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/xid"

	"github.com/sakif/chat-directory/internal/apperror"
	"github.com/sakif/chat-directory/internal/model"
	"github.com/sakif/chat-directory/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const (
	userColumns = `id, name, email, password_hash, avatar, avatar_type, is_admin, created_at, updated_at`

	uniqueViolationCode = "23505"
	nameConstraint      = "users_name_key"
	emailConstraint     = "users_email_key"
)

func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Name, user.Email, user.PasswordHash,
		nullableBlob(user.Avatar), user.AvatarType, user.IsAdmin,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("postgres: inserting user %q: %w", user.Name, err)
	}
	return nil
}

func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}
	return u, nil
}

func (db *DB) GetByName(ctx context.Context, name string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", name)
		}
		return nil, fmt.Errorf("postgres: getting user by name: %w", err)
	}
	return u, nil
}

func (db *DB) ExistsByName(ctx context.Context, name string) (bool, error) {
	return db.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE name = $1)`, name)
}

func (db *DB) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return db.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
}

func (db *DB) exists(ctx context.Context, query, arg string) (bool, error) {
	var found bool
	if err := db.conn.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("postgres: checking user existence: %w", err)
	}
	return found, nil
}

// Search uses strpos on lowered values so LIKE metacharacters in keyword
// carry no special meaning. lower() follows the database's LC_CTYPE: a
// UTF-8 locale folds Unicode case, the C locale folds ASCII only.
func (db *DB) Search(ctx context.Context, excludeID, keyword string) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE id <> $1
		   AND ($2 = ''
		        OR strpos(lower(name), lower($2)) > 0
		        OR strpos(lower(email), lower($2)) > 0)
		 ORDER BY created_at, id`,
		excludeID, keyword,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: searching users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating users: %w", err)
	}
	return users, nil
}

func (db *DB) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET name = $1, email = $2, password_hash = $3, avatar = $4, avatar_type = $5, is_admin = $6, updated_at = $7
		 WHERE id = $8`,
		user.Name, user.Email, user.PasswordHash,
		nullableBlob(user.Avatar), user.AvatarType, user.IsAdmin,
		user.UpdatedAt, user.ID,
	)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("postgres: updating user %s: %w", user.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	if err := s.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash,
		&u.Avatar, &u.AvatarType, &u.IsAdmin,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func nullableBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// uniqueViolation maps SQLSTATE 23505 on the name or email constraint to
// the matching Conflict.
func uniqueViolation(err error) *apperror.AppError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return nil
	}
	switch pgErr.ConstraintName {
	case emailConstraint:
		return repository.EmailTaken()
	case nameConstraint:
		return repository.NameTaken()
	default:
		return nil
	}
}
