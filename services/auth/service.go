package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/proppicks/auth-gateway/models"
	"github.com/proppicks/auth-gateway/repositories"
	"github.com/proppicks/auth-gateway/services"
	"go.uber.org/zap"
)

// Operation and outcome labels reported to MetricsRecorder.
const (
	OpRegister = "register"
	OpLogin    = "login"
	OpLogout   = "logout"

	OutcomeSuccess            = "success"
	OutcomeDuplicate          = "duplicate"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeError              = "error"
)

// AuditRecorder accepts audit entries without blocking the caller
type AuditRecorder interface {
	Record(log *models.AuditLog)
}

// MetricsRecorder counts authentication attempts
type MetricsRecorder interface {
	AuthAttempt(operation, outcome string)
}

// RequestMeta carries caller information for the audit trail
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// RegisterInput is a validated registration request
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Meta     RequestMeta
}

// RegisterResult is returned after a successful registration
type RegisterResult struct {
	User      models.PublicUser
	Token     string
	ExpiresAt time.Time
}

// LoginInput is a validated login request
type LoginInput struct {
	Email    string
	Password string
	Meta     RequestMeta
}

// LoginResult is returned after a successful login
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
}

// UpdateUserInput holds the admin-editable fields. Nil fields are left unchanged.
type UpdateUserInput struct {
	Role   *models.UserRole
	Active *bool
}

// Service implements registration, login and logout on top of the credential store
type Service struct {
	users     repositories.UserRepository
	txManager repositories.TransactionManager
	hasher    PasswordHasher
	tokens    TokenService
	audit     AuditRecorder
	metrics   MetricsRecorder
	logger    *zap.Logger
}

// Option customizes a Service
type Option func(*Service)

// WithAudit sends audit entries to r
func WithAudit(r AuditRecorder) Option {
	return func(s *Service) {
		s.audit = r
	}
}

// WithMetrics reports attempt counters to m
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTransactionManager enables the admin update path
func WithTransactionManager(tm repositories.TransactionManager) Option {
	return func(s *Service) {
		s.txManager = tm
	}
}

// NewService creates a new auth service
func NewService(users repositories.UserRepository, hasher PasswordHasher, tokens TokenService, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		audit:   nopAudit{},
		metrics: nopMetrics{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account and signs the caller in.
// The email check is advisory; the store's unique constraint decides races.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	email := models.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" || in.Password == "" || name == "" {
		s.metrics.AuthAttempt(OpRegister, OutcomeError)
		return nil, services.ErrInvalidInput
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		s.metrics.AuthAttempt(OpRegister, OutcomeDuplicate)
		return nil, services.ErrDuplicateEmail
	case !errors.Is(err, repositories.ErrNotFound):
		s.metrics.AuthAttempt(OpRegister, OutcomeError)
		return nil, services.WrapInternal("failed to look up user", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.metrics.AuthAttempt(OpRegister, OutcomeError)
		return nil, services.WrapInternal("failed to hash password", err)
	}

	user := models.NewUser(name, email, hash)
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			s.metrics.AuthAttempt(OpRegister, OutcomeDuplicate)
			return nil, services.ErrDuplicateEmail.Wrap(err)
		}
		s.metrics.AuthAttempt(OpRegister, OutcomeError)
		return nil, services.WrapInternal("failed to create user", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.metrics.AuthAttempt(OpRegister, OutcomeError)
		return nil, services.WrapInternal("failed to issue token", err)
	}

	s.record(models.NewAuditLog(models.AuditActionRegister).WithUser(user.ID).WithEmail(user.Email), in.Meta)
	s.metrics.AuthAttempt(OpRegister, OutcomeSuccess)
	s.logger.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("request_id", in.Meta.RequestID))

	return &RegisterResult{
		User:      user.Public(),
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// Login verifies credentials and issues a token. It never writes to the user store.
// Unknown email, inactive account and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := models.NormalizeEmail(in.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			s.metrics.AuthAttempt(OpLogin, OutcomeError)
			return nil, services.WrapInternal("failed to look up user", err)
		}
		s.hasher.VerifyDummy(in.Password)
		return nil, s.loginFailed(nil, email, "unknown_email", in.Meta)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, s.loginFailed(&user.ID, email, "wrong_password", in.Meta)
	}
	if !user.CanAuthenticate() {
		return nil, s.loginFailed(&user.ID, email, "inactive", in.Meta)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.metrics.AuthAttempt(OpLogin, OutcomeError)
		return nil, services.WrapInternal("failed to issue token", err)
	}

	s.record(models.NewAuditLog(models.AuditActionLoginSuccess).WithUser(user.ID).WithEmail(email), in.Meta)
	s.metrics.AuthAttempt(OpLogin, OutcomeSuccess)
	s.logger.Debug("login succeeded",
		zap.String("user_id", user.ID.String()),
		zap.String("request_id", in.Meta.RequestID))

	return &LoginResult{Token: token.Token, ExpiresAt: token.ExpiresAt}, nil
}

func (s *Service) loginFailed(userID *uuid.UUID, email, reason string, meta RequestMeta) error {
	entry := models.NewAuditLog(models.AuditActionLoginFailure).
		WithEmail(email).
		WithDetails(map[string]string{"reason": reason})
	if userID != nil {
		entry.WithUser(*userID)
	}
	s.record(entry, meta)
	s.metrics.AuthAttempt(OpLogin, OutcomeInvalidCredentials)
	s.logger.Info("login failed",
		zap.String("reason", reason),
		zap.String("request_id", meta.RequestID))
	return services.ErrInvalidCredentials
}

// Logout acknowledges the request. Tokens stay valid until they expire;
// the client is expected to discard its copy.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, meta RequestMeta) error {
	s.record(models.NewAuditLog(models.AuditActionLogout).WithUser(userID), meta)
	s.metrics.AuthAttempt(OpLogout, OutcomeSuccess)
	return nil
}

// CurrentUser returns the account behind an authenticated request
func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.GetUser(ctx, userID)
}

// ResolveRole returns the role of an active user. Missing or inactive accounts are unauthorized.
func (s *Service) ResolveRole(ctx context.Context, userID uuid.UUID) (models.UserRole, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", services.ErrUnauthorized
		}
		return "", services.WrapInternal("failed to look up user", err)
	}
	if !user.CanAuthenticate() {
		return "", services.ErrUnauthorized
	}
	return user.Role, nil
}

// GetUser fetches a user by id
func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("failed to get user", err)
	}
	return user, nil
}

// ListUsers returns a page of users, newest first
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, services.WrapInternal("failed to list users", err)
	}
	return users, nil
}

// UpdateUser changes role and/or active flag under a row lock.
// An admin cannot demote or deactivate their own account.
func (s *Service) UpdateUser(ctx context.Context, actorID, userID uuid.UUID, in UpdateUserInput, meta RequestMeta) (*models.User, error) {
	if in.Role != nil && !in.Role.Valid() {
		return nil, services.ErrInvalidRole.WithDetail("role", string(*in.Role))
	}
	if actorID == userID {
		if (in.Active != nil && !*in.Active) || (in.Role != nil && *in.Role != models.RoleAdmin) {
			return nil, services.ErrForbidden.WithDetail("reason", "cannot demote or deactivate own account")
		}
	}
	return s.applyUpdate(ctx, &actorID, userID, in, meta)
}

// SetRole assigns role to the account registered under email. It is the
// operator path used to bootstrap the first admin, so no actor is recorded.
func (s *Service) SetRole(ctx context.Context, email string, role models.UserRole) (*models.User, error) {
	if !role.Valid() {
		return nil, services.ErrInvalidRole.WithDetail("role", string(role))
	}

	existing, err := s.users.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("failed to look up user", err)
	}

	return s.applyUpdate(ctx, nil, existing.ID, UpdateUserInput{Role: &role}, RequestMeta{})
}

func (s *Service) applyUpdate(ctx context.Context, actorID *uuid.UUID, userID uuid.UUID, in UpdateUserInput, meta RequestMeta) (*models.User, error) {
	if s.txManager == nil {
		return nil, services.WrapInternal("user updates unavailable", fmt.Errorf("no transaction manager"))
	}

	changes := map[string]interface{}{}
	user, err := services.WithTransactionResult(ctx, s.txManager, func(ctx context.Context) (*models.User, error) {
		user, err := s.users.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return nil, err
		}
		if in.Role != nil && *in.Role != user.Role {
			changes["role"] = map[string]string{"from": string(user.Role), "to": string(*in.Role)}
			user.Role = *in.Role
		}
		if in.Active != nil && *in.Active != user.Active {
			changes["active"] = map[string]bool{"from": user.Active, "to": *in.Active}
			user.Active = *in.Active
		}
		if len(changes) == 0 {
			return user, nil
		}
		user.UpdatedAt = time.Now().UTC()
		if err := s.users.Update(ctx, user); err != nil {
			return nil, err
		}
		return user, nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrUserNotFound
		}
		return nil, services.WrapInternal("failed to update user", err)
	}

	if len(changes) > 0 {
		entry := models.NewAuditLog(models.AuditActionUserUpdated).
			WithUser(user.ID).
			WithEmail(user.Email).
			WithDetails(changes)
		actor := "operator"
		if actorID != nil {
			entry.WithActor(*actorID)
			actor = actorID.String()
		}
		s.record(entry, meta)
		s.logger.Info("user updated",
			zap.String("user_id", user.ID.String()),
			zap.String("actor_id", actor),
			zap.Any("changes", changes))
	}
	return user, nil
}

func (s *Service) record(entry *models.AuditLog, meta RequestMeta) {
	entry.WithRequest(meta.RequestID, meta.IPAddress, meta.UserAgent)
	s.audit.Record(entry)
}

type nopAudit struct{}

func (nopAudit) Record(*models.AuditLog) {}

type nopMetrics struct{}

func (nopMetrics) AuthAttempt(string, string) {}
