package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/proppicks/auth-gateway/middleware"
	"github.com/proppicks/auth-gateway/models"
	"github.com/proppicks/auth-gateway/services/auth"
	"github.com/proppicks/auth-gateway/utils"
	"go.uber.org/zap"
)

// Pagination limits for admin listings
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// UpdateUserRequest represents an admin change to an account
type UpdateUserRequest struct {
	Role   *models.UserRole `json:"role,omitempty" validate:"omitempty,oneof=standard admin"`
	Active *bool            `json:"active,omitempty"`
}

// UserService defines the admin operations on accounts
type UserService interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateUser(ctx context.Context, actorID, userID uuid.UUID, in auth.UpdateUserInput, meta auth.RequestMeta) (*models.User, error)
}

// AuditLister reads the authentication audit trail
type AuditLister interface {
	List(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}

// UserHandler serves the admin endpoints
type UserHandler struct {
	users  UserService
	audit  AuditLister
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserService, audit AuditLister, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		audit:  audit,
		logger: logger,
	}
}

// HandleListUsers handles GET /api/admin/users
func (h *UserHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePagination(w, r)
	if !ok {
		return
	}

	users, err := h.users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	responses := make([]UserResponse, len(users))
	for i, u := range users {
		responses[i] = userToResponse(u)
	}
	_ = utils.WriteOK(w, responses)
}

// HandleGetUser handles GET /api/admin/users/{id}
func (h *UserHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, userToResponse(user))
}

// HandleUpdateUser handles PATCH /api/admin/users/{id}
func (h *UserHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		_ = utils.WriteUnauthorized(w, "")
		return
	}

	userID, err := utils.ParseUUID(chi.URLParam(r, "id"), "id")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	var req UpdateUserRequest
	if !decodeAndValidate(w, r, &req, h.logger) {
		return
	}
	if req.Role == nil && req.Active == nil {
		_ = utils.WriteBadRequest(w, "Nothing to update", nil)
		return
	}

	user, err := h.users.UpdateUser(ctx, actorID, userID, auth.UpdateUserInput{
		Role:   req.Role,
		Active: req.Active,
	}, requestMeta(r))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, userToResponse(user))
}

// HandleListAudit handles GET /api/admin/audit
func (h *UserHandler) HandleListAudit(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePagination(w, r)
	if !ok {
		return
	}

	var userID *uuid.UUID
	if s := r.URL.Query().Get("user_id"); s != "" {
		parsed, err := utils.ParseUUID(s, "user_id")
		if err != nil {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
			return
		}
		userID = &parsed
	}

	logs, err := h.audit.List(r.Context(), userID, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if logs == nil {
		logs = []*models.AuditLog{}
	}

	_ = utils.WriteOK(w, logs)
}

// parsePagination reads limit and offset, capping limit at MaxPageLimit
func parsePagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	q := r.URL.Query()
	limit, offset := DefaultPageLimit, 0

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			_ = utils.WriteBadRequest(w, "limit must be a positive integer", nil)
			return 0, 0, false
		}
		limit = min(n, MaxPageLimit)
	}
	if s := q.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			_ = utils.WriteBadRequest(w, "offset must be a non-negative integer", nil)
			return 0, 0, false
		}
		offset = n
	}
	return limit, offset, true
}
