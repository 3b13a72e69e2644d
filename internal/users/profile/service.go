// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

// Package profile implements the authenticated self-service surface: viewing
// the current account, changing its email and avatar, and listing its
// recorded activity.
package profile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/minhvo/gatekeep/internal/platform/apperr"
	"github.com/minhvo/gatekeep/internal/platform/upload"
	"github.com/minhvo/gatekeep/internal/platform/validate"
	"github.com/minhvo/gatekeep/internal/users/audit"
	"github.com/minhvo/gatekeep/internal/users/auth"
	"github.com/minhvo/gatekeep/pkg/normalize"
	"github.com/minhvo/gatekeep/pkg/pagination"
)

// # Service Definition

// Service implements profile management use cases.
type Service struct {
	userRepository auth.UserRepository
	auditLog       audit.Recorder
	activityLog    audit.Reader
	gate           *upload.Gate
	logger         *slog.Logger
}

// NewService constructs a new profile [Service] with necessary dependencies.
func NewService(
	userRepo auth.UserRepository,
	auditLog audit.Recorder,
	activityLog audit.Reader,
	gate *upload.Gate,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepository: userRepo,
		auditLog:       auditLog,
		activityLog:    activityLog,
		gate:           gate,
		logger:         logger,
	}
}

// # Email Change

/*
ChangeEmail replaces the account's login email address.

Description: Canonicalizes and validates the new address, pre-checks for a
conflicting owner, then updates the row. The UNIQUE constraint remains the
final authority under concurrency. Re-submitting the current address is a
no-op success.

Parameters:
  - context: context.Context
  - userID: string
  - newEmail: string
  - meta: audit.RequestMeta

Returns:
  - *auth.User: Refreshed entity after the update
  - error: apperr.ValidationError, apperr.Conflict, or storage failures
*/
func (service *Service) ChangeEmail(context context.Context, userID, newEmail string, meta audit.RequestMeta) (*auth.User, error) {

	email := normalize.Email(newEmail)

	validator := &validate.Validator{}
	validator.Required(auth.FieldEmail, email).
		Email(auth.FieldEmail, email)
	if err := validator.Err(); err != nil {
		return nil, err
	}

	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}

	if user.Email == email {
		return user, nil
	}

	// Advisory pre-check; the constraint behind UpdateEmail closes the race.
	if existing, err := service.userRepository.FindByEmail(context, email); err == nil && existing.ID != userID {
		return nil, apperr.Conflict("Email already registered")
	}

	if err := service.userRepository.UpdateEmail(context, userID, email); err != nil {
		return nil, err
	}

	user.Email = email

	service.record(context, userID, audit.ActionEmailChanged, meta)

	return user, nil
}

// # Avatar Change

/*
ChangeAvatar validates the uploaded image and swaps it in as the account avatar.

Description: The upload gate sniffs the actual content, enforces the size
limit, and stores the file under a server-generated name. If the database
update then fails, the freshly stored file is deleted so no orphan remains.
On success the previous avatar file, if any, is removed best-effort.

Parameters:
  - context: context.Context
  - userID: string
  - content: io.Reader (raw upload body)
  - declaredFilename: string (client-declared, informational only)
  - declaredMime: string (client-declared, informational only)
  - meta: audit.RequestMeta

Returns:
  - *auth.User: Refreshed entity carrying the new avatar URL
  - error: apperr.TooLarge, apperr.UnsupportedMedia, or storage failures
*/
func (service *Service) ChangeAvatar(context context.Context, userID string, content io.Reader, declaredFilename, declaredMime string, meta audit.RequestMeta) (*auth.User, error) {

	user, err := service.userRepository.FindByID(context, userID)
	if err != nil {
		return nil, err
	}
	previousAvatarURL := user.AvatarURL

	stored, err := service.gate.Accept(context, content, userID, declaredFilename, declaredMime)
	if err != nil {
		return nil, err
	}

	if err := service.userRepository.UpdateAvatarPath(context, userID, stored.URL); err != nil {
		// Compensate: the row was not updated, so the file must not survive.
		if removeErr := service.gate.Remove(stored.Path); removeErr != nil {
			service.logger.ErrorContext(context, "avatar_compensation_failed",
				slog.String("path", stored.Path),
				slog.Any("error", removeErr),
			)
		}
		return nil, fmt.Errorf("profile_service_avatar_update_failed: %w", err)
	}

	user.AvatarURL = stored.URL

	// The old file is unreferenced now; losing this removal only wastes disk.
	if previousPath := service.avatarPathFromURL(previousAvatarURL); previousPath != "" {
		if removeErr := service.gate.Remove(previousPath); removeErr != nil {
			service.logger.WarnContext(context, "previous_avatar_cleanup_failed",
				slog.String("path", previousPath),
				slog.Any("error", removeErr),
			)
		}
	}

	service.record(context, userID, audit.ActionAvatarChanged, meta)

	return user, nil
}

// # Activity Listing

/*
Activity returns the account's recorded audit entries, newest first.

Parameters:
  - context: context.Context
  - userID: string
  - params: pagination.Params

Returns:
  - []audit.Entry: Page of entries
  - pagination.Meta: Page metadata for the response envelope
  - error: Retrieval failures
*/
func (service *Service) Activity(context context.Context, userID string, params pagination.Params) ([]audit.Entry, pagination.Meta, error) {
	entries, total, err := service.activityLog.ListByUser(context, userID, params.Limit, params.Offset())
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("profile_service_activity_failed: %w", err)
	}
	return entries, pagination.NewMeta(params.Page, params.Limit, total), nil
}

// avatarPathFromURL maps a public avatar URL back to its on-disk path.
// It returns "" for empty or foreign URLs so callers skip the cleanup.
func (service *Service) avatarPathFromURL(avatarURL string) string {
	if avatarURL == "" || !strings.HasPrefix(avatarURL, service.gate.URLPrefix()) {
		return ""
	}
	return filepath.Join(service.gate.Dir(), path.Base(avatarURL))
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
