// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package auth

import "time"

// # Authentication Constraints

const (
	// SessionTokenLength is the byte length of the random session token.
	// 32 bytes gives 256 bits of entropy, comfortably above the 128-bit floor.
	SessionTokenLength = 32

	// DefaultSessionTTL is the session lifetime used when configuration
	// does not override it.
	DefaultSessionTTL = 30 * 24 * time.Hour

	// HardMinPasswordLength is the non-negotiable password length floor.
	// Deployment config may raise the minimum, never lower it below this.
	HardMinPasswordLength = 6

	// MinUsernameLength and MaxUsernameLength bound account handles.
	MinUsernameLength = 3
	MaxUsernameLength = 32
)
