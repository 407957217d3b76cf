package app

import (
	"context"
	"fmt"
	"log/slog"
)

// RoleProvisioner seeds and checks the role table.
type RoleProvisioner interface {
	EnsureDefaults(ctx context.Context) (int, error)
	VerifyMapping(ctx context.Context) error
}

// AdminProvisioner creates the initial administrator.
type AdminProvisioner interface {
	EnsureInitialAdmin(ctx context.Context, email, password, fullName string) (bool, error)
}

// Bootstrap provisions default roles, verifies every stored role has a
// capability mapping, and creates the initial admin when a password is set.
func Bootstrap(ctx context.Context, cfg *Config, logger *slog.Logger, roles RoleProvisioner, admins AdminProvisioner) error {
	inserted, err := roles.EnsureDefaults(ctx)
	if err != nil {
		return fmt.Errorf("ensure roles: %w", err)
	}
	if inserted > 0 {
		logger.Info("default roles provisioned", slog.Int("inserted", inserted))
	}
	if err := roles.VerifyMapping(ctx); err != nil {
		return fmt.Errorf("verify role mapping: %w", err)
	}

	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD not set, skipping initial admin")
		return nil
	}
	created, err := admins.EnsureInitialAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminFullName)
	if err != nil {
		return fmt.Errorf("ensure initial admin: %w", err)
	}
	if created {
		logger.Info("initial admin created", slog.String("email", cfg.AdminEmail))
	}
	return nil
}
