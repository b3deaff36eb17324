// Package credentials persists the access and refresh tokens of the signed-in
// user. Stores are scoped to one API origin, the way browser storage is.
package credentials

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrNotFound is returned by Load when nothing is stored.
var ErrNotFound = errors.New("credentials: not found")

// Credential is an opaque bearer token plus an optional refresh token.
type Credential struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// IsZero reports whether no access token is present.
func (c Credential) IsZero() bool { return strings.TrimSpace(c.AccessToken) == "" }

// Store persists a single credential.
//
// Save replaces the stored credential as a whole: a credential without a
// refresh token clears any previously stored one. Clear is idempotent.
type Store interface {
	Load(ctx context.Context) (Credential, error)
	Save(ctx context.Context, cred Credential) error
	Clear(ctx context.Context) error
}

// Origin returns the scope key for baseURL: scheme://host[:port], lowercased.
func Origin(baseURL string) string {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSpace(baseURL))
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func validate(cred Credential) error {
	if cred.IsZero() {
		return errors.New("credentials: access token required")
	}
	return nil
}
