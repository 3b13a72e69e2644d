// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package auth

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/minhvo/gatekeep/internal/platform/constants"
	"github.com/minhvo/gatekeep/internal/platform/middleware"
	requestutil "github.com/minhvo/gatekeep/internal/platform/request"
	"github.com/minhvo/gatekeep/internal/platform/respond"
	"github.com/minhvo/gatekeep/internal/platform/validate"
	"github.com/minhvo/gatekeep/internal/users/audit"
)

// # HTTP Handler

// Handler exposes the authentication endpoints over HTTP.
type Handler struct {
	service      *Service
	sessionTTL   time.Duration
	secureCookie bool
}

// NewHandler creates a new authentication handler.
//
// secureCookie should be true in production so the session cookie is only
// sent over TLS.
func NewHandler(service *Service, sessionTTL time.Duration, secureCookie bool) *Handler {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Handler{
		service:      service,
		sessionTTL:   sessionTTL,
		secureCookie: secureCookie,
	}
}

// Routes returns the router for the /auth subtree.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/register", handler.Register)
	router.Post("/login", handler.Login)

	router.Group(func(protected chi.Router) {
		protected.Use(middleware.RequireAuth)
		protected.Post("/logout", handler.Logout)
		protected.Post("/change-password", handler.ChangePassword)
	})

	return router
}

// # Request Payloads

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"old_password"`
	NewPassword     string `json:"new_password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// # Endpoint Implementations

// Register handles POST /auth/register.
func (handler *Handler) Register(writer http.ResponseWriter, request *http.Request) {
	var payload registerRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	user, err := handler.service.Register(request.Context(), RegisterInput{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
	}, requestMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, user)
}

// Login handles POST /auth/login.
//
// On success the token is returned in the body for API clients and mirrored
// into an HttpOnly cookie for browser clients.
func (handler *Handler) Login(writer http.ResponseWriter, request *http.Request) {
	var payload loginRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	session, err := handler.service.Login(request.Context(), LoginInput{
		Email:    payload.Email,
		Password: payload.Password,
	}, requestMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.setSessionCookie(writer, session.Token)
	respond.OK(writer, loginResponse{
		Token: session.Token,
		User:  session.User,
	})
}

// Logout handles POST /auth/logout.
func (handler *Handler) Logout(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Logout(request.Context(), identity.SessionToken); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.clearSessionCookie(writer)
	respond.OK(writer, messageResponse{Message: "Logged out"})
}

// ChangePassword handles POST /auth/change-password.
func (handler *Handler) ChangePassword(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload changePasswordRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	err = handler.service.ChangePassword(
		request.Context(),
		identity.UserID,
		payload.CurrentPassword,
		payload.NewPassword,
		requestMeta(request),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, messageResponse{Message: "Password updated"})
}

// # Cookie Handling

func (handler *Handler) setSessionCookie(writer http.ResponseWriter, token string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    token,
		Path:     constants.SessionCookiePath,
		MaxAge:   int(handler.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   handler.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (handler *Handler) clearSessionCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     constants.SessionCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   handler.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// requestMeta captures the request attributes recorded alongside audit entries.
func requestMeta(request *http.Request) audit.RequestMeta {
	return audit.RequestMeta{
		IPAddress: middleware.RealIP(request),
		UserAgent: request.UserAgent(),
	}
}
