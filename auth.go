// Package sdk provides the GlobalAssist Go SDK for interacting with the GlobalAssist API.
package sdk

import (
	"context"
	"net/http"
	"strings"

	"github.com/globalassist/globalassist/sdk/go/headers"
)

type authStrategy interface {
	// Apply sets credentials on req. It reports whether it did.
	Apply(req *http.Request) (bool, error)
}

type authChain []authStrategy

// Apply uses the first strategy that yields a credential. Requests without
// one go out unauthenticated.
func (c authChain) Apply(req *http.Request) error {
	for _, s := range c {
		if s == nil {
			continue
		}
		applied, err := s.Apply(req)
		if err != nil {
			return err
		}
		if applied {
			return nil
		}
	}
	return nil
}

type bearerAuth struct {
	token string
}

func (b bearerAuth) Apply(req *http.Request) (bool, error) {
	if b.token == "" {
		return false, nil
	}
	req.Header.Set(headers.Authorization, "Bearer "+b.token)
	return true, nil
}

type providerAuth struct {
	provider TokenProvider
}

func (p providerAuth) Apply(req *http.Request) (bool, error) {
	token, err := p.provider.Token(req.Context())
	if err != nil {
		return false, err
	}
	return bearerAuth{token: normalizeBearer(token)}.Apply(req)
}

type accessTokenKey struct{}

// WithAccessToken returns a context whose requests carry token instead of the
// client's configured credential. The session store uses it to validate
// exactly the token it read from storage.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, normalizeBearer(token))
}

// AccessTokenFromContext returns the token installed by WithAccessToken.
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	return accessTokenFromContext(ctx)
}

func accessTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenKey{}).(string)
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}
