// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minhvo/gatekeep/internal/platform/apperr"
	"github.com/minhvo/gatekeep/internal/platform/constants"
	"github.com/minhvo/gatekeep/internal/platform/sec"
)

// # Redis Implementation

// RedisSessionStore implements [SessionStore] over Redis string keys.
//
// # Storage Layout
//
// Each session is a key "auth:session:<sha256(token)>" whose value is the
// owning user ID, with the TTL enforcing expiry server-side. Only the hash of
// the token touches Redis; a dump of the keyspace yields no usable tokens.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore creates a Redis-backed session store.
//
// A non-positive ttl falls back to [DefaultSessionTTL].
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

/*
Create mints a fresh opaque token and binds it to the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - string: The raw token for the client; only its hash is stored
  - error: Token generation or Redis write failures
*/
func (store *RedisSessionStore) Create(context context.Context, userID string) (string, error) {
	token, err := sec.GenerateSecureToken(SessionTokenLength)
	if err != nil {
		return "", fmt.Errorf("redis_session_token_generation_failed: %w", err)
	}

	key := constants.RedisPrefixSession + sec.HashToken(token)
	if err := store.client.Set(context, key, userID, store.ttl).Err(); err != nil {
		return "", fmt.Errorf("redis_session_create_failed: %w", err)
	}

	return token, nil
}

/*
Resolve maps a presented token back to its user ID.

Description: This is the mandatory per-request lookup behind every protected
endpoint. Destroyed and expired sessions are equally absent from Redis, so
both resolve to the same Unauthorized error.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - string: Owning user ID
  - error: apperr.Unauthorized for unknown/expired tokens
*/
func (store *RedisSessionStore) Resolve(context context.Context, token string) (string, error) {
	if token == "" {
		return "", apperr.Unauthorized("Invalid or expired session")
	}

	key := constants.RedisPrefixSession + sec.HashToken(token)
	userID, err := store.client.Get(context, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.Unauthorized("Invalid or expired session")
	}
	if err != nil {
		return "", fmt.Errorf("redis_session_resolve_failed: %w", err)
	}

	return userID, nil
}

/*
Destroy removes a session, making its token permanently unusable.

Description: Idempotent. DEL on an absent key is a no-op, so repeated and
concurrent logouts for the same token all succeed.

Parameters:
  - context: context.Context
  - token: string

Returns:
  - error: Redis connectivity failures only
*/
func (store *RedisSessionStore) Destroy(context context.Context, token string) error {
	if token == "" {
		return nil
	}

	key := constants.RedisPrefixSession + sec.HashToken(token)
	if err := store.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_session_destroy_failed: %w", err)
	}
	return nil
}
