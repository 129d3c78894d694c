// Package bootstrap handles one-time initialization tasks for the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/ponto/internal/auth"
	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/service"
)

// AdminConfig contains configuration for the initial super-admin.
type AdminConfig struct {
	Email    string
	Password string
	Name     string
}

// Validate checks that the admin configuration is valid.
func (c *AdminConfig) Validate() error {
	if c.Email == "" {
		return errors.New("admin email is required")
	}
	if c.Password == "" {
		return errors.New("admin password is required")
	}
	if len(c.Password) < 12 {
		return errors.New("admin password must be at least 12 characters")
	}
	return nil
}

// EnsureSuperAdmin creates the initial super-admin if it doesn't exist, and
// promotes an existing account with that email to SUPER_ADMIN.
// Safe to call on every startup.
//
// If cfg is nil or has empty Email/Password, it logs a warning and skips.
func EnsureSuperAdmin(ctx context.Context, users service.UserStore, cfg *AdminConfig, logger *slog.Logger) error {
	if cfg == nil || cfg.Email == "" || cfg.Password == "" {
		logger.Warn("bootstrap: skipping admin creation - PONTO_ADMIN_EMAIL or PONTO_ADMIN_PASSWORD not set",
			"hint", "Set these environment variables to create a super-admin on first startup",
		)
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid admin configuration: %w", err)
	}
	email := domain.NormalizeEmail(cfg.Email)

	existing, err := users.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing.Role == domain.RoleSuperAdmin:
		logger.Info("bootstrap: super-admin already exists", "email", email)
		return nil
	case err == nil:
		existing.Role = domain.RoleSuperAdmin
		if err := users.UpdateUser(ctx, existing); err != nil {
			return fmt.Errorf("failed to promote admin: %w", err)
		}
		logger.Info("bootstrap: existing account promoted to super-admin", "email", email, "user_id", existing.ID)
		return nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return fmt.Errorf("failed to check for existing admin: %w", err)
	}

	passwordHash, err := auth.HashPassword(cfg.Password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = "Admin"
	}

	user := &domain.User{
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         domain.RoleSuperAdmin,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			logger.Info("bootstrap: super-admin already exists (concurrent creation)", "email", email)
			return nil
		}
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("bootstrap: super-admin created successfully",
		"email", email,
		"user_id", user.ID,
	)

	return nil
}
