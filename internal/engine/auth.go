package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"trayline/internal/domain"
	"trayline/internal/events"
	"trayline/internal/repo"
)

// ErrBadCredentials keeps login failures indistinguishable between unknown
// email and wrong password.
var ErrBadCredentials = errors.New("invalid email or password")

type RegisterUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

func (e *Engine) RegisterUser(ctx context.Context, in RegisterUserInput, actorID string) (domain.User, error) {
	if in.Name == "" {
		return domain.User{}, fmt.Errorf("name is required")
	}
	if in.Email == "" {
		return domain.User{}, fmt.Errorf("email is required")
	}
	if len(in.Password) < 8 {
		return domain.User{}, fmt.Errorf("invalid password: must be at least 8 characters")
	}
	if !in.Role.Valid() {
		return domain.User{}, fmt.Errorf("invalid role %q", in.Role)
	}
	if _, err := e.Repo.GetUserByEmail(ctx, in.Email); err == nil {
		return domain.User{}, fmt.Errorf("%w: email %s already registered", ErrConflict, in.Email)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hash),
		Role:         in.Role,
		CreatedAt:    e.timestamp(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.appendEvent(ctx, tx, "user.registered", "user", u.ID, actorID, events.EventPayload{
		"email": u.Email,
		"role":  string(u.Role),
	}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Authenticate checks email and password and returns the matching user.
func (e *Engine) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	u, err := e.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, ErrBadCredentials
		}
		return domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrBadCredentials
	}
	return u, nil
}
