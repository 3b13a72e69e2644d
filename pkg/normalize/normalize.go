// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

// Package normalize canonicalizes user-supplied identifiers before they are
// compared or stored.
//
// # Why
//
// Uniqueness checks on usernames and emails are only meaningful on canonical
// forms. Without normalization, "Admin", "admin", and a fullwidth "ａdmin"
// register as three distinct accounts that render identically, which is
// exactly the confusable-identity trick phishing relies on.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Username returns the canonical form of an account handle: NFKC-normalized
// (folding fullwidth and compatibility variants), trimmed, and lowercased.
func Username(raw string) string {
	folded := norm.NFKC.String(strings.TrimSpace(raw))
	return strings.ToLower(folded)
}

// Email returns the canonical form of an email address: trimmed, NFKC-folded,
// and lowercased.
//
// Lowercasing the local part is technically stricter than RFC 5321 allows,
// but every mainstream provider treats it as case-insensitive and it closes
// the "Bob@example.com vs bob@example.com" duplicate-account hole.
func Email(raw string) string {
	folded := norm.NFKC.String(strings.TrimSpace(raw))
	return strings.ToLower(folded)
}
