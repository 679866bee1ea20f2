package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/sakif/chat-directory/internal/apperror"
	"github.com/sakif/chat-directory/internal/model"
	"github.com/sakif/chat-directory/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, password_hash, avatar, avatar_type, is_admin, created_at, updated_at`

// Create inserts a new user. The ID is an xid: globally unique, sortable by
// creation time, and URL-safe.
//
// A clash on name or email is reported by the unique indexes, not by a
// prior SELECT, so two concurrent registrations cannot both succeed.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		nullableBlob(user.Avatar),
		user.AvatarType,
		user.IsAdmin,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Name, err)
	}

	return nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetByName looks a user up by exact name.
func (db *DB) GetByName(ctx context.Context, name string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE name = ?`, name)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", name)
		}
		return nil, fmt.Errorf("sqlite: getting user by name: %w", err)
	}
	return u, nil
}

func (db *DB) ExistsByName(ctx context.Context, name string) (bool, error) {
	return db.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE name = ?)`, name)
}

func (db *DB) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return db.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
}

func (db *DB) exists(ctx context.Context, query, arg string) (bool, error) {
	var found bool
	if err := db.conn.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("sqlite: checking user existence: %w", err)
	}
	return found, nil
}

// Search lists users other than excludeID whose name or email contains
// keyword, case-insensitively.
//
// instr() is used instead of LIKE so that '%' and '_' in the keyword are
// matched literally. Columns are folded by unicode_lower and the keyword by
// strings.ToLower, which apply the same Unicode mapping.
func (db *DB) Search(ctx context.Context, excludeID, keyword string) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE id <> ?
		   AND (? = ''
		        OR instr(`+foldFunc+`(name), ?) > 0
		        OR instr(`+foldFunc+`(email), ?) > 0)
		 ORDER BY created_at, id`,
		excludeID, keyword, strings.ToLower(keyword), strings.ToLower(keyword),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching users: %w", err)
	}
	// ALWAYS close rows, or the connection is never returned to the pool.
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// Update persists every mutable column exactly as given. Password hashing
// is the caller's concern; the stored hash is written back untouched.
func (db *DB) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET name = ?, email = ?, password_hash = ?, avatar = ?, avatar_type = ?, is_admin = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name,
		user.Email,
		user.PasswordHash,
		nullableBlob(user.Avatar),
		user.AvatarType,
		user.IsAdmin,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("user", user.ID)
	}

	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	err := s.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Avatar,
		&u.AvatarType,
		&u.IsAdmin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
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

// uniqueViolation translates a UNIQUE failure on users.name or users.email
// into the matching Conflict. It returns nil for any other error.
func uniqueViolation(err error) *apperror.AppError {
	if err == nil {
		return nil
	}

	isUnique := false
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			isUnique = true
		}
	}

	message := strings.ToLower(err.Error())
	if !isUnique && !strings.Contains(message, "unique constraint failed") {
		return nil
	}

	switch {
	case strings.Contains(message, "users.email"):
		return repository.EmailTaken()
	case strings.Contains(message, "users.name"):
		return repository.NameTaken()
	default:
		return nil
	}
}
