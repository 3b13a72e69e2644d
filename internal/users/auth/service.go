// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/minhvo/gatekeep/internal/platform/apperr"
	"github.com/minhvo/gatekeep/internal/platform/dberr"
	"github.com/minhvo/gatekeep/internal/platform/sec"
	"github.com/minhvo/gatekeep/internal/platform/validate"
	"github.com/minhvo/gatekeep/internal/users/audit"
	"github.com/minhvo/gatekeep/pkg/normalize"
	"github.com/minhvo/gatekeep/pkg/uuid"
)

// # Service Definition

// Service implements user authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, registration,
// or login logic must be reviewed by the security team.
type Service struct {
	userRepository UserRepository
	sessionStore   SessionStore
	auditLog       audit.Recorder
	logger         *slog.Logger

	// minPasswordLength is deployment-configured; never below
	// [HardMinPasswordLength].
	minPasswordLength int
}

// NewService constructs a new [Service] with necessary dependencies.
//
// A minPasswordLength below the hard floor is silently raised to it.
func NewService(
	userRepo UserRepository,
	sessions SessionStore,
	auditLog audit.Recorder,
	logger *slog.Logger,
	minPasswordLength int,
) *Service {
	if minPasswordLength < HardMinPasswordLength {
		minPasswordLength = HardMinPasswordLength
	}
	return &Service{
		userRepository:    userRepo,
		sessionStore:      sessions,
		auditLog:          auditLog,
		logger:            logger,
		minPasswordLength: minPasswordLength,
	}
}

// MinPasswordLength exposes the effective password policy for handlers.
func (service *Service) MinPasswordLength() int {
	return service.minPasswordLength
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

/*
Register validates, hashes, and persists a brand new user account.

Description: Canonicalizes the identifiers, checks for identity conflicts,
hashes the password, and persists the account. Registration never creates a
session; the caller must log in separately.

Parameters:
  - context: context.Context
  - input: RegisterInput
  - meta: audit.RequestMeta

Returns:
  - *User: Created entity
  - error: apperr.ValidationError, apperr.Conflict, or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput, meta audit.RequestMeta) (*User, error) {

	username := normalize.Username(input.Username)
	email := normalize.Email(input.Email)

	validator := &validate.Validator{}
	validator.Required(FieldUsername, username).
		MinLen(FieldUsername, username, MinUsernameLength).
		MaxLen(FieldUsername, username, MaxUsernameLength).
		Username(FieldUsername, username).
		Required(FieldEmail, email).
		Email(FieldEmail, email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, service.minPasswordLength)

	if err := validator.Err(); err != nil {
		return nil, err
	}

	// Advisory uniqueness pre-checks for friendlier messages. The UNIQUE
	// constraints behind Create remain the authoritative race-safe guard.
	if _, err := service.userRepository.FindByEmail(context, email); err == nil {
		return nil, apperr.Conflict("Email already registered")
	}
	if _, err := service.userRepository.FindByUsername(context, username); err == nil {
		return nil, apperr.Conflict("Username is already taken")
	}

	// Prevent storing plain-text passwords. Default cost is used for balance
	// between security and CPU utilization during registration spikes.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Construct the new User entity. Time-sortable ID to prevent PG index fragmentation.
	user := &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
	}

	// Persist the user. A concurrent duplicate surfaces here as Conflict.
	if err := service.userRepository.Create(context, user); err != nil {
		return nil, err
	}

	service.record(context, user.ID, audit.ActionRegistered, meta)

	return user, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
//
// Email is the canonical login identifier for this service.
type LoginInput struct {
	Email    string
	Password string
}

// LoginSession represents a successfully established user session.
type LoginSession struct {
	Token string
	User  *User
}

/*
Login validates user credentials and establishes a session.

Description: Verifies identity via constant-time password comparison and
mints an opaque session token. Unknown account and wrong password are
deliberately indistinguishable in both message and timing.

Parameters:
  - context: context.Context
  - input: LoginInput
  - meta: audit.RequestMeta

Returns:
  - *LoginSession: Transport-ready session token plus public user fields
  - error: apperr.ValidationError for missing fields, apperr.InvalidCredentials,
    or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput, meta audit.RequestMeta) (*LoginSession, error) {

	// Missing fields are a malformed request, not a failed credential check.
	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Required(FieldPassword, input.Password)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	user, err := service.userRepository.FindByEmail(context, normalize.Email(input.Email))
	if err != nil {
		// Burn a hash comparison so the miss takes as long as a mismatch.
		sec.DummyVerify(input.Password)
		return nil, apperr.InvalidCredentials()
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperr.InvalidCredentials()
	}

	token, err := service.sessionStore.Create(context, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_session_creation_failed: %w", err)
	}

	service.record(context, user.ID, audit.ActionLoggedIn, meta)

	return &LoginSession{
		Token: token,
		User:  user,
	}, nil
}

/*
Logout destroys the presented session.

Description: Idempotent; logging out an already-destroyed or unknown session
succeeds. Concurrent logouts for the same token commute.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: Storage failures only
*/
func (service *Service) Logout(context context.Context, token string) error {
	if err := service.sessionStore.Destroy(context, token); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}
	return nil
}

// # Credential Changes

/*
ChangePassword allows an authenticated user to update their credentials.

Description: Verifies the current password before accepting the new one. A
wrong current password never mutates the stored hash. The update is a single
parameterized statement.

Parameters:
  - context: context.Context
  - userID: string
  - currentPassword: string
  - newPassword: string
  - meta: audit.RequestMeta

Returns:
  - error: apperr.InvalidCredentials, apperr.ValidationError, apperr.NotFound,
    or storage failures
*/
func (service *Service) ChangePassword(context context.Context, userID, currentPassword, newPassword string, meta audit.RequestMeta) error {

	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return err
	}

	// Verify the current password before allowing change.
	if !sec.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return apperr.Unauthorized("Current password is incorrect")
	}

	validator := &validate.Validator{}
	validator.Required(FieldNewPassword, newPassword).
		MinLen(FieldNewPassword, newPassword, service.minPasswordLength).
		Custom(FieldNewPassword, newPassword == currentPassword, "Must differ from the current password")

	if err := validator.Err(); err != nil {
		return err
	}

	hashedPassword, err := sec.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}

	if err := service.userRepository.UpdatePassword(context, userID, hashedPassword); err != nil {
		return fmt.Errorf("auth_service_change_password_update_failed: %w", err)
	}

	service.record(context, userID, audit.ActionPasswordChanged, meta)

	return nil
}

// # Session Introspection

/*
CurrentUser resolves the authenticated identity to its public user record.

Description: Backs GET /me. If the session resolves but the account row is
gone (orphaned session), the session is destroyed and NotFound is returned so
the client re-authenticates.

Parameters:
  - context: context.Context
  - identity: *sec.Identity

Returns:
  - *User: Public user fields (never the password hash)
  - error: apperr.NotFound or storage failures
*/
func (service *Service) CurrentUser(context context.Context, identity *sec.Identity) (*User, error) {
	user, err := service.userRepository.FindByID(context, identity.UserID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			// Session points at a deleted account. Fail closed and clean up.
			_ = service.sessionStore.Destroy(context, identity.SessionToken)
			return nil, apperr.NotFound("User")
		}
		return nil, err
	}
	return user, nil
}

// record appends an audit entry; audit failures are logged, never surfaced.
func (service *Service) record(context context.Context, userID string, action audit.Action, meta audit.RequestMeta) {
	err := service.auditLog.Record(context, &audit.Entry{
		UserID:    userID,
		Action:    action,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
	})
	if err != nil {
		service.logger.ErrorContext(context, "audit_record_failed",
			slog.String("action", string(action)),
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}
}
