// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package auth

import (
	"context"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
//
// # Uniqueness
//
// Implementations must enforce username and email uniqueness at write time
// via the storage engine's own constraints and surface violations as
// [apperr.Conflict]. Callers may pre-check for friendlier messages, but the
// write-time rejection is the authoritative, race-safe guard.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByEmail returns the account with the given (canonical) email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByUsername returns the account with the given (canonical) username.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - *User: Hydrated entity
		  - error: apperr.NotFound or database retrieval failures
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: apperr.Conflict on duplicate username/email, or persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		UpdateEmail replaces only the user's email address.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newEmail: string

		Returns:
		  - error: apperr.Conflict if the email belongs to another account,
		    apperr.NotFound if the user is absent, or persistence failures
	*/
	UpdateEmail(context context.Context, userID, newEmail string) error

	/*
		UpdatePassword replaces only the user's password hash.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - newHash: string

		Returns:
		  - error: Persistence failures
	*/
	UpdatePassword(context context.Context, userID, newHash string) error

	/*
		UpdateAvatarPath replaces only the user's avatar URL.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - avatarURL: string

		Returns:
		  - error: Persistence failures
	*/
	UpdateAvatarPath(context context.Context, userID, avatarURL string) error
}

// # Session Data Access

// SessionStore defines the lifecycle contract for opaque login sessions.
//
// # State Machine
//
// A session is Active from Create until Destroy or TTL expiry, and Destroyed
// afterwards. There are no other states, and no operation other than Create
// ever brings a session into existence.
type SessionStore interface {

	/*
		Create mints a fresh opaque token for the user and stores the session.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - string: The raw session token to hand to the client
		  - error: Token generation or persistence failures
	*/
	Create(context context.Context, userID string) (string, error)

	/*
		Resolve maps a presented token to the owning user ID.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - string: UserID
		  - error: apperr.Unauthorized for missing/unknown/expired tokens
	*/
	Resolve(context context.Context, token string) (string, error)

	/*
		Destroy deletes the session. Idempotent: destroying an unknown or
		already-destroyed session is not an error.

		Parameters:
		  - context: context.Context
		  - token: string

		Returns:
		  - error: Persistence failures only
	*/
	Destroy(context context.Context, token string) error
}
