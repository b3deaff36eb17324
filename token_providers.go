package sdk

import (
	"context"
	"errors"

	"github.com/globalassist/globalassist/sdk/go/credentials"
)

// TokenProvider supplies the bearer access token for outgoing requests.
// An empty token means "send the request unauthenticated".
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenProviderFunc adapts a function to TokenProvider.
type TokenProviderFunc func(ctx context.Context) (string, error)

func (f TokenProviderFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// CredentialTokenProvider reads the access token from durable credential
// storage on every request, so a logout in another component takes effect
// immediately.
type CredentialTokenProvider struct {
	store credentials.Store
}

// NewCredentialTokenProvider wraps a credential store.
func NewCredentialTokenProvider(store credentials.Store) (*CredentialTokenProvider, error) {
	if store == nil {
		return nil, ConfigError{Reason: "credential store is required"}
	}
	return &CredentialTokenProvider{store: store}, nil
}

func (p *CredentialTokenProvider) Token(ctx context.Context) (string, error) {
	if p == nil || p.store == nil {
		return "", errors.New("credential token provider is nil")
	}
	cred, err := p.store.Load(ctx)
	if errors.Is(err, credentials.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}
