package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Simplici0/pricecalc/internal/store"
)

// LocalAuthenticator checks passwords of users stored with the local provider.
type LocalAuthenticator struct {
	users *store.UserStore
}

func NewLocalAuthenticator(users *store.UserStore) *LocalAuthenticator {
	return &LocalAuthenticator{users: users}
}

func (a *LocalAuthenticator) Name() string {
	return store.ProviderLocal
}

func (a *LocalAuthenticator) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	user, err := a.users.GetByUsername(ctx, store.ProviderLocal, username)
	if errors.Is(err, store.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load local user: %w", err)
	}
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return nil, err
	}

	return &Identity{
		Provider:    store.ProviderLocal,
		Username:    user.Username,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Admin:       user.IsAdmin(),
	}, nil
}
