package auth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidState       = errors.New("invalid or expired oauth state")
	ErrDomainNotAllowed   = errors.New("account domain is not allowed")
	ErrEmailNotVerified   = errors.New("email address is not verified")
)

// Identity is what a provider vouches for after a successful login.
type Identity struct {
	Provider    string
	Username    string
	Email       string
	DisplayName string
	Admin       bool
}

// Authenticator checks a username/password pair.
type Authenticator interface {
	Name() string
	Authenticate(ctx context.Context, username, password string) (*Identity, error)
}

// Chain tries password authenticators in order and returns the first success.
type Chain struct {
	authenticators []Authenticator
}

func NewChain(authenticators ...Authenticator) *Chain {
	return &Chain{authenticators: authenticators}
}

func (c *Chain) Name() string {
	return "chain"
}

// Authenticate returns ErrInvalidCredentials when every provider rejects the
// pair. A provider failing for other reasons does not stop the chain, but the
// failure is reported if nobody accepts the credentials.
func (c *Chain) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var lastErr error
	for _, a := range c.authenticators {
		id, err := a.Authenticate(ctx, username, password)
		if err == nil {
			return id, nil
		}
		if errors.Is(err, ErrInvalidCredentials) {
			continue
		}
		zap.S().Named("auth").Warnw("authentication provider failed", "provider", a.Name(), "error", err)
		lastErr = fmt.Errorf("%s: %w", a.Name(), err)
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrInvalidCredentials
}
