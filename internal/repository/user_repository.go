package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/futsal-booking/internal/model"
)

// UserRepo persists accounts and their login lockout counters.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a UserRepo bound to db.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, name, email, password_hash, role, is_active, login_attempts, lock_until, created_at, updated_at`

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	var lock sql.NullTime
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.LoginAttempts, &lock, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if lock.Valid {
		u.LockUntil = &lock.Time
	}
	return &u, nil
}

// Create inserts a user whose password is already hashed and returns its ID.
func (r *UserRepo) Create(ctx context.Context, name, email, passwordHash, role string) (uint64, error) {
	const q = `INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, name, strings.ToLower(strings.TrimSpace(email)), passwordHash, role)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = ? LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, q, strings.ToLower(strings.TrimSpace(email))))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = ? LIMIT 1`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

// RecordLoginFailure bumps the failed-login counter. When the counter
// reaches maxAttempts the account is locked until lockUntil; an existing
// later lock is never shortened.
func (r *UserRepo) RecordLoginFailure(ctx context.Context, id uint64, maxAttempts int, lockUntil time.Time) error {
	// lock_until is assigned first so it sees the pre-increment counter
	const q = `UPDATE users SET
		lock_until = CASE WHEN login_attempts + 1 >= ? THEN GREATEST(COALESCE(lock_until, ?), ?) ELSE lock_until END,
		login_attempts = login_attempts + 1
		WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, maxAttempts, lockUntil.UTC(), lockUntil.UTC(), id)
	return err
}

// ResetLoginFailures clears the counter after a successful login. An
// expired lock is cleared with it.
func (r *UserRepo) ResetLoginFailures(ctx context.Context, id uint64) error {
	const q = `UPDATE users SET login_attempts = 0, lock_until = NULL WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}
