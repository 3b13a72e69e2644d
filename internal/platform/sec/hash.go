// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

// Package sec provides the cryptographic primitives for the platform.
//
// # Architecture
//
// This package isolates security-sensitive code (adaptive password hashing,
// session token generation) from the domain logic. It acts as an
// Infrastructure service injected into the Application layer.
package sec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plain-text password using the bcrypt algorithm.
func HashPassword(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// CheckPasswordHash compares a plain-text password with its hashed version.
func CheckPasswordHash(plainTextPassword, existingHash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

// DummyVerify burns one bcrypt comparison against a fixed hash.
//
// It is called on login attempts for unknown accounts so that "no such user"
// and "wrong password" take comparable time, keeping the two failure paths
// indistinguishable to a remote observer.
func DummyVerify(plainTextPassword string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plainTextPassword))
}

// dummyHash is a valid bcrypt hash of an unguessable throwaway value.
// It is never accepted as a real credential.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")
