// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

// Session authentication middleware.
//
// # Architecture
//
// Unlike stateless token schemes, every authenticated request performs a real
// lookup against the session store. A token's mere presence carries no trust:
// if it does not resolve to a live session, the request proceeds as anonymous
// and [RequireAuth] fails it closed.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/minhvo/gatekeep/internal/platform/apperr"
	"github.com/minhvo/gatekeep/internal/platform/constants"
	"github.com/minhvo/gatekeep/internal/platform/ctxutil"
	"github.com/minhvo/gatekeep/internal/platform/respond"
	"github.com/minhvo/gatekeep/internal/platform/sec"
)

// SessionResolver defines the interface needed to resolve session tokens.
//
// # Why an interface?
//
// Defining SessionResolver here decouples the middleware from the `auth`
// service implementation, allowing us to easily inject fakes during unit testing.
type SessionResolver interface {
	// Resolve maps an opaque session token to the owning user ID.
	// It must return an error for missing, unknown, or expired tokens.
	Resolve(ctx context.Context, token string) (userID string, err error)
}

// Authenticate extracts the session token and resolves it against the store.
//
// # Flow
//  1. Check for 'Authorization: Bearer <token>' header, then the session cookie.
//  2. If absent, request proceeds as anonymous.
//  3. If present, resolve the token via [SessionResolver].
//  4. Inject [*sec.Identity] into the request context for downstream use.
//
// A token that fails to resolve downgrades the request to anonymous instead
// of aborting it: a browser holding a cookie for a session Redis has already
// expired must still be able to reach /auth/login. [RequireAuth] fails the
// protected routes closed. A stale session cookie is expired on the way
// through so the client stops presenting it. Only a present-but-malformed
// Authorization header aborts with 401, since that is a client bug rather
// than a lapsed session.
func Authenticate(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Token Extraction ───────────────────────────────────────────
			token, fromCookie, malformed := extractToken(request)
			if malformed {
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			// ── 2. Anonymous Access ───────────────────────────────────────────
			if token == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 3. Session Resolution ─────────────────────────────────────────
			userID, err := resolver.Resolve(request.Context(), token)
			if err != nil {
				if fromCookie {
					expireSessionCookie(writer)
				}
				next.ServeHTTP(writer, request)
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithIdentity(request.Context(), &sec.Identity{
				UserID:       userID,
				SessionToken: token,
			})
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate].
//
// # Flow
//  1. Check if [*sec.Identity] exists in context.
//  2. If missing, abort with HTTP 401 Unauthorized.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		identity := ctxutil.GetIdentity(request.Context())
		if identity == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// extractToken pulls the session token out of the request transport.
//
// The Bearer header wins over the cookie when both are present. fromCookie
// reports which carrier supplied the token; malformed reports a
// present-but-broken Authorization header.
func extractToken(request *http.Request) (token string, fromCookie, malformed bool) {
	authHeader := request.Header.Get(constants.HeaderAuthorization)

	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			return "", false, true
		}
		return parts[1], false, false
	}

	cookie, err := request.Cookie(constants.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false, false
	}

	return cookie.Value, true, false
}

// expireSessionCookie overwrites a stale session cookie with an immediate expiry.
func expireSessionCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     constants.SessionCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
