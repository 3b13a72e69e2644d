// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minhvo/gatekeep/internal/platform/middleware"
	requestutil "github.com/minhvo/gatekeep/internal/platform/request"
	"github.com/minhvo/gatekeep/internal/platform/respond"
	"github.com/minhvo/gatekeep/internal/platform/validate"
	"github.com/minhvo/gatekeep/internal/users/audit"
	"github.com/minhvo/gatekeep/internal/users/auth"
	"github.com/minhvo/gatekeep/pkg/pagination"
)

// # HTTP Handler

// Handler exposes the authenticated /me endpoints over HTTP.
type Handler struct {
	service  *Service
	accounts *auth.Service
}

// NewHandler creates a new profile handler.
//
// accounts is used for session-to-user resolution so orphaned sessions get
// cleaned up on read.
func NewHandler(service *Service, accounts *auth.Service) *Handler {
	return &Handler{service: service, accounts: accounts}
}

// Routes returns the router for the /me subtree. Every route requires an
// authenticated identity.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/", handler.GetProfile)
	router.Post("/email", handler.ChangeEmail)
	router.Post("/avatar", handler.ChangeAvatar)
	router.Get("/activity", handler.Activity)

	return router
}

// # Request Payloads

type changeEmailRequest struct {
	Email string `json:"email"`
}

// # Endpoint Implementations

// GetProfile handles GET /me.
func (handler *Handler) GetProfile(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.accounts.CurrentUser(request.Context(), identity)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// ChangeEmail handles POST /me/email.
func (handler *Handler) ChangeEmail(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload changeEmailRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	user, err := handler.service.ChangeEmail(request.Context(), identity.UserID, payload.Email, requestMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// ChangeAvatar handles POST /me/avatar.
//
// The image arrives as the multipart form field named by [auth.FieldAvatar].
// The form is parsed lazily; the gate re-checks the real size against its
// own limit regardless of what the multipart headers claim.
func (handler *Handler) ChangeAvatar(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	file, header, err := request.FormFile(auth.FieldAvatar)
	if err != nil {
		respond.Error(writer, request, validate.RequiredError(auth.FieldAvatar, "An image file is required"))
		return
	}
	defer file.Close()

	user, err := handler.service.ChangeAvatar(
		request.Context(),
		identity.UserID,
		file,
		header.Filename,
		header.Header.Get("Content-Type"),
		requestMeta(request),
	)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// Activity handles GET /me/activity.
func (handler *Handler) Activity(writer http.ResponseWriter, request *http.Request) {
	identity, err := requestutil.RequiredIdentity(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	entries, meta, err := handler.service.Activity(request.Context(), identity.UserID, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, entries, meta)
}

// requestMeta captures the request attributes recorded alongside audit entries.
func requestMeta(request *http.Request) audit.RequestMeta {
	return audit.RequestMeta{
		IPAddress: middleware.RealIP(request),
		UserAgent: request.UserAgent(),
	}
}
