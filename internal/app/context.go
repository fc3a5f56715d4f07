package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trayline/internal/config"
	"trayline/internal/domain"
	"trayline/internal/repo"
)

// Bootstrap loads the workspace config and guarantees a usable directory:
// when the users table is empty a default admin is seeded so the CLI has
// an actor to act as. The seeded admin carries no password; HTTP logins
// go through accounts registered afterwards.
func Bootstrap(ctx context.Context, workspace, actorID string, r repo.Repo) (*config.Config, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	if err := seedAdmin(ctx, r, actorID); err != nil {
		return nil, err
	}
	return cfg, nil
}

func seedAdmin(ctx context.Context, r repo.Repo, actorID string) error {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	if actorID == "" {
		actorID = "local-admin"
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	admin := domain.User{
		ID:           actorID,
		Name:         "Local Admin",
		Email:        fmt.Sprintf("%s@trayline.local", uuid.NewString()[:8]),
		PasswordHash: "",
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
	}
	if err := r.InsertUser(ctx, tx, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return tx.Commit()
}
