// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

/*
Package audit implements the append-only record of security-relevant actions.

Every auth operation (registration, login, credential change, avatar
replacement) leaves exactly one entry here as a side effect. Entries are
immutable once written: the contract has no update or delete operations.

# Architecture

  - Entry: The immutable domain record.
  - Recorder: Write-side contract used by the auth and profile services.
  - Reader: Query-side contract backing the account activity endpoint.
*/
package audit

import (
	"context"
	"time"
)

// # Actions

// Action identifies the kind of security-relevant event an entry records.
type Action string

const (
	ActionRegistered      Action = "registered"
	ActionLoggedIn        Action = "logged_in"
	ActionPasswordChanged Action = "password_changed"
	ActionEmailChanged    Action = "email_changed"
	ActionAvatarChanged   Action = "avatar_changed"
)

// Valid reports whether the action is one of the known enum values.
func (a Action) Valid() bool {
	switch a {
	case ActionRegistered, ActionLoggedIn, ActionPasswordChanged, ActionEmailChanged, ActionAvatarChanged:
		return true
	}
	return false
}

// # Domain Entities

// Entry is a single append-only audit record.
type Entry struct {
	ID string `json:"id"`
	// UserID is empty for events that could not be attributed to an
	// account (e.g. anonymous failures). Stored as NULL in that case.
	UserID    string    `json:"user_id,omitempty"`
	Action    Action    `json:"action"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// RequestMeta carries the transport-level attribution attached to every entry.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// # Contracts

// Recorder defines the write-side contract for the audit log.
type Recorder interface {

	/*
		Record appends a single entry. Entries are never updated or deleted.

		Parameters:
		  - context: context.Context
		  - entry: *Entry (ID and CreatedAt are assigned by the implementation if zero)

		Returns:
		  - error: Persistence failures
	*/
	Record(context context.Context, entry *Entry) error
}

// Reader defines the query-side contract for per-user activity listings.
type Reader interface {

	/*
		ListByUser returns the user's entries, newest first.

		Parameters:
		  - context: context.Context
		  - userID: string
		  - limit: int
		  - offset: int

		Returns:
		  - []Entry: Page of entries
		  - int: Total entry count for the user
		  - error: Retrieval failures
	*/
	ListByUser(context context.Context, userID string, limit, offset int) ([]Entry, int, error)
}
