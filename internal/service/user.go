package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/ponto/internal/auth"
	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/telemetry"
)

// Session is an issued session token.
type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Principal *domain.Principal `json:"principal"`
}

// AuthService authenticates accounts and resolves session tokens.
type AuthService struct {
	users   UserStore
	tokens  *auth.TokenIssuer
	logger  *slog.Logger
	metrics *telemetry.BusinessMetrics
}

// NewAuthService creates an AuthService.
func NewAuthService(users UserStore, tokens *auth.TokenIssuer, logger *slog.Logger, metrics *telemetry.BusinessMetrics) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger, metrics: metrics}
}

// Register creates a customer account and signs it in.
func (s *AuthService) Register(ctx context.Context, email, name, password string) (*Session, error) {
	const op = "auth.register"

	email = domain.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.NewValidationError(op, "email", "must be a valid email address")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) || errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, domain.NewValidationError(op, "password", err.Error())
		}
		return nil, domain.Internal(err, op, "failed to hash password")
	}

	u := &domain.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "customer registered", "user_id", u.ID)
	return s.issue(u.Principal())
}

// Login verifies credentials. When staffOnly is set, customer accounts
// are rejected as if the credentials were wrong.
func (s *AuthService) Login(ctx context.Context, email, password string, staffOnly bool) (*Session, error) {
	const op = "auth.login"

	u, err := s.users.GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		auth.SpendVerifyTime(password)
		s.metrics.RecordLogin(false)
		return nil, domain.ErrInvalidCredentials
	}

	if err := auth.VerifyPassword(password, u.PasswordHash); err != nil {
		s.metrics.RecordLogin(false)
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.WarnContext(ctx, "login failed", "user_id", u.ID)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.Internal(err, op, "failed to verify password")
	}
	if staffOnly && !u.Role.IsStaff() {
		s.metrics.RecordLogin(false)
		return nil, domain.ErrInvalidCredentials
	}

	s.metrics.RecordLogin(true)
	s.logger.InfoContext(ctx, "login succeeded", "user_id", u.ID, "role", u.Role)
	return s.issue(u.Principal())
}

// Authenticate resolves a session token to the current principal. The
// account is re-read so role changes take effect before the token expires.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Principal, error) {
	claimed, err := s.tokens.Verify(token)
	if err != nil {
		return nil, domain.ErrSessionRequired
	}

	u, err := s.users.GetUser(ctx, claimed.ID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrSessionRequired
		}
		return nil, err
	}
	return u.Principal(), nil
}

// SessionTTL returns how long issued sessions last.
func (s *AuthService) SessionTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *AuthService) issue(p *domain.Principal) (*Session, error) {
	token, expires, err := s.tokens.Issue(p)
	if err != nil {
		return nil, domain.Internal(err, "auth.issue", "failed to issue session")
	}
	return &Session{Token: token, ExpiresAt: expires, Principal: p}, nil
}
