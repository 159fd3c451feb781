package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"teacherhr/internal/domain/auth"
	"teacherhr/internal/platform/config"
)

// Seed creates the bootstrap HR administrator. It is a no-op when the seed
// credentials are not configured or the account already exists.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	return ensureAdminUser(ctx, auth.NewStore(pool), cfg.SeedAdminEmail, cfg.SeedAdminPassword)
}

type userEnsurer interface {
	EnsureUser(ctx context.Context, email, passwordHash, fullName, role string, teacherID any) (string, error)
}

func ensureAdminUser(ctx context.Context, users userEnsurer, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = users.EnsureUser(ctx, email, hash, "HR Administrator", auth.RoleHRAdmin, nil)
	return err
}
