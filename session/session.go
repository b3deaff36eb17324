// Package session holds the client-side authentication state: who the current
// user is, whether the initial credential check finished, and the persisted
// token pair.
//
// A Store is constructed explicitly and passed to whatever needs it; there is
// no package-level instance. Consumers read immutable Snapshots and never
// mutate them.
package session

import (
	"context"
	"errors"

	sdk "github.com/globalassist/globalassist/sdk/go"
)

// Identity is the user-facing profile of the signed-in user.
type Identity = sdk.User

// Status tells whether the initial credential check has completed.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Snapshot is one published session state. Identity is nil when nobody is
// signed in.
type Snapshot struct {
	Identity *Identity
	Status   Status
}

// Authenticated reports whether an identity is present.
func (s Snapshot) Authenticated() bool { return s.Identity != nil }

// Loading reports whether the initial credential check is still running.
func (s Snapshot) Loading() bool { return s.Status == StatusLoading }

// Tier returns the subscription tier of the identity, or free when absent.
func (s Snapshot) Tier() sdk.Tier {
	if s.Identity == nil {
		return sdk.TierFree
	}
	return sdk.ParseTier(string(s.Identity.SubscriptionTier))
}

func (s Snapshot) clone() Snapshot {
	if s.Identity != nil {
		id := *s.Identity
		s.Identity = &id
	}
	return s
}

// IdentityPatch lists the profile fields to overwrite. Nil fields are kept.
type IdentityPatch struct {
	FullName           *string
	Email              *string
	AvatarURL          *string
	SubscriptionStatus *string
	SubscriptionTier   *sdk.Tier
}

// PatchFromUser builds a patch carrying every non-empty field of u, which is
// how profile edits confirmed by the backend are applied.
func PatchFromUser(u sdk.User) IdentityPatch {
	var p IdentityPatch
	if u.FullName != "" {
		p.FullName = sdk.StringPtr(u.FullName)
	}
	if u.Email != "" {
		p.Email = sdk.StringPtr(u.Email)
	}
	if u.AvatarURL != "" {
		p.AvatarURL = sdk.StringPtr(u.AvatarURL)
	}
	if u.SubscriptionStatus != "" {
		p.SubscriptionStatus = sdk.StringPtr(u.SubscriptionStatus)
	}
	if u.SubscriptionTier != "" {
		p.SubscriptionTier = sdk.TierPtr(u.SubscriptionTier)
	}
	return p
}

func (p IdentityPatch) apply(id Identity) Identity {
	if p.FullName != nil {
		id.FullName = *p.FullName
	}
	if p.Email != nil {
		id.Email = *p.Email
	}
	if p.AvatarURL != nil {
		id.AvatarURL = *p.AvatarURL
	}
	if p.SubscriptionStatus != nil {
		id.SubscriptionStatus = *p.SubscriptionStatus
	}
	if p.SubscriptionTier != nil {
		id.SubscriptionTier = *p.SubscriptionTier
	}
	return id
}

// Backend is the part of the API the store talks to. *sdk.AuthClient
// implements it. Me must authenticate with the token carried by the context
// (see sdk.WithAccessToken).
type Backend interface {
	Login(ctx context.Context, creds sdk.Credentials) (sdk.AuthResponse, error)
	Register(ctx context.Context, req sdk.RegisterRequest) (sdk.AuthResponse, error)
	Me(ctx context.Context) (sdk.User, error)
	Logout(ctx context.Context) error
}

var (
	// ErrInvalidCredentials is returned when the backend rejects a login with 401.
	ErrInvalidCredentials = errors.New("session: invalid email or password")

	// ErrStaleResult is returned when a login or registration completed after
	// a logout issued while it was in flight. Nothing was persisted.
	ErrStaleResult = errors.New("session: result discarded after logout")
)
