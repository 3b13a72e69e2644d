// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package sec

// Identity represents the resolved owner of an authenticated request.
//
// # Why no claims?
//
// Sessions are opaque tokens resolved against the session store on every
// protected request. Nothing is decoded client-side; the middleware performs
// a real lookup and attaches the result here. A token that no longer resolves
// (logged out, expired) yields no Identity and the request fails closed.
type Identity struct {
	// UserID is the UUID of the account that owns the session.
	UserID string

	// SessionToken is the raw bearer token the request presented.
	// Kept so operations such as Logout can destroy exactly this session.
	SessionToken string
}
