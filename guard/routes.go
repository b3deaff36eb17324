package guard

import (
	"path"
	"strings"

	sdk "github.com/globalassist/globalassist/sdk/go"
)

// Destinations known to the client.
const (
	PathHome          = "/"
	PathLogin         = "/login"
	PathRegister      = "/register"
	PathAuthSuccess   = "/auth-success"
	PathSettings      = "/settings"
	PathPayment       = "/payment"
	PathHistoryPrefix = "/history/"
)

// HistoryPath returns the destination listing history of the given type.
func HistoryPath(t sdk.HistoryType) string {
	return PathHistoryPrefix + string(t)
}

// Clean strips the query and fragment from a requested path and resolves it
// to its canonical form: "." and ".." segments, repeated and trailing slashes
// are removed. An empty path is the landing destination.
func Clean(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return PathHome
	}
	return path.Clean("/" + p)
}

// RequiresAuth reports whether path is a protected destination. Anything not
// listed as protected is public, including unknown paths.
func RequiresAuth(p string) bool {
	p = Clean(p)
	switch p {
	case PathSettings, PathPayment:
		return true
	}
	if seg, ok := strings.CutPrefix(p, PathHistoryPrefix); ok {
		return seg != "" && !strings.Contains(seg, "/")
	}
	return false
}

// Capability is a feature gate on top of authentication.
type Capability string

const (
	CapabilityNone Capability = ""
	// CapabilityPro unlocks premium models and needs a paid subscription.
	CapabilityPro Capability = "pro"
)

// RequiresAuth reports whether the capability needs a signed-in user.
func (c Capability) RequiresAuth() bool { return c != CapabilityNone }

// RequiresPaidTier reports whether the capability needs a paid subscription.
func (c Capability) RequiresPaidTier() bool { return c == CapabilityPro }

// CapabilityFor returns the capability needed to use model.
func CapabilityFor(model sdk.Model) Capability {
	if model.IsPremium() {
		return CapabilityPro
	}
	return CapabilityNone
}
