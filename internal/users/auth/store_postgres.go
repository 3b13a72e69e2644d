// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhvo/gatekeep/internal/platform/dberr"
)

// # Postgres Implementation

// PostgresUserRepository implements [UserRepository] over the users.account table.
//
// # Security
//
// Every statement in this file is parameterized; no identifier or credential
// ever reaches the database through string concatenation.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new PostgreSQL-backed user repository.
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// userColumns is the shared SELECT list so every read path hydrates the same fields.
const userColumns = `id, username, email, passwordhash, COALESCE(avatarurl, ''), createdat, updatedat`

/*
FindByID retrieves a user by primary key.

Parameters:
  - context: context.Context
  - id: string

Returns:
  - *User: Full entity including the password hash
  - error: dberr.ErrNotFound if the row is missing
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users.account WHERE id = $1`, userColumns)

	user, err := repository.scanUser(repository.pool.QueryRow(context, query, id))
	if err != nil {
		return nil, dberr.Wrap(err, "")
	}
	return user, nil
}

/*
FindByEmail retrieves a user by canonicalized email address.

Description: The caller is responsible for normalizing the email before the
lookup; this method matches exactly.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Full entity including the password hash
  - error: dberr.ErrNotFound if no account carries the address
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users.account WHERE email = $1`, userColumns)

	user, err := repository.scanUser(repository.pool.QueryRow(context, query, email))
	if err != nil {
		return nil, dberr.Wrap(err, "")
	}
	return user, nil
}

/*
FindByUsername retrieves a user by canonicalized handle.

Parameters:
  - context: context.Context
  - username: string

Returns:
  - *User: Full entity including the password hash
  - error: dberr.ErrNotFound if no account carries the handle
*/
func (repository *PostgresUserRepository) FindByUsername(context context.Context, username string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users.account WHERE username = $1`, userColumns)

	user, err := repository.scanUser(repository.pool.QueryRow(context, query, username))
	if err != nil {
		return nil, dberr.Wrap(err, "")
	}
	return user, nil
}

/*
Create persists a new user row.

Description: The UNIQUE constraints on username and email are the final
authority on duplicates; a violation surfaces as apperr.Conflict regardless
of any pre-checks the service performed.

Parameters:
  - context: context.Context
  - user: *User (ID and PasswordHash must be set; timestamps are filled here)

Returns:
  - error: apperr.Conflict on duplicate identity, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO users.account (id, username, email, passwordhash, createdat, updatedat)
		VALUES ($1, $2, $3, $4, $5, $5)`

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		now,
	)
	if err != nil {
		return dberr.Wrap(err, "Email or username already registered")
	}
	return nil
}

/*
UpdateEmail replaces the account's email address.

Parameters:
  - context: context.Context
  - id: string
  - email: string (canonicalized by the caller)

Returns:
  - error: apperr.Conflict if another account holds the address,
    dberr.ErrNotFound if the account row is gone
*/
func (repository *PostgresUserRepository) UpdateEmail(context context.Context, id, email string) error {
	const query = `
		UPDATE users.account
		SET email = $2, updatedat = $3
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, id, email, time.Now().UTC())
	if err != nil {
		return dberr.Wrap(err, "Email already registered")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

/*
UpdatePassword replaces the account's stored password hash.

Parameters:
  - context: context.Context
  - id: string
  - passwordHash: string (bcrypt output; never a plain-text password)

Returns:
  - error: dberr.ErrNotFound if the account row is gone
*/
func (repository *PostgresUserRepository) UpdatePassword(context context.Context, id, passwordHash string) error {
	const query = `
		UPDATE users.account
		SET passwordhash = $2, updatedat = $3
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, id, passwordHash, time.Now().UTC())
	if err != nil {
		return dberr.Wrap(err, "")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

/*
UpdateAvatarPath replaces the account's stored avatar URL.

Parameters:
  - context: context.Context
  - id: string
  - avatarURL: string (server-generated; never a client-supplied path)

Returns:
  - error: dberr.ErrNotFound if the account row is gone
*/
func (repository *PostgresUserRepository) UpdateAvatarPath(context context.Context, id, avatarURL string) error {
	const query = `
		UPDATE users.account
		SET avatarurl = NULLIF($2, ''), updatedat = $3
		WHERE id = $1`

	tag, err := repository.pool.Exec(context, query, id, avatarURL, time.Now().UTC())
	if err != nil {
		return dberr.Wrap(err, "")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

// scanUser hydrates a [User] from a single-row scanner.
func (repository *PostgresUserRepository) scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres_user_scan_failed: %w", err)
	}
	return &user, nil
}
