package guard

import (
	"fmt"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/session"
)

// Outcome is the terminal state of one navigation attempt, or Suspended
// while the session is still loading.
type Outcome int

const (
	OutcomeAllowed Outcome = iota
	OutcomeSuspended
	OutcomeRedirected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllowed:
		return "allowed"
	case OutcomeSuspended:
		return "suspended"
	case OutcomeRedirected:
		return "redirected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Request describes a navigation attempt.
type Request struct {
	Path       string
	Capability Capability
	// Reason is shown on the login page when the attempt is redirected there.
	Reason string
}

// Decision is the result of evaluating a Request.
type Decision struct {
	Outcome Outcome
	// Path is the redirect target when Outcome is OutcomeRedirected.
	Path string
	// Intent is set on redirects to the login destination.
	Intent *Intent
}

// Allow renders the destination.
func Allow() Decision { return Decision{Outcome: OutcomeAllowed} }

// Suspend waits for the session to finish loading.
func Suspend() Decision { return Decision{Outcome: OutcomeSuspended} }

// RedirectTo sends the user to path, optionally carrying an intent.
func RedirectTo(path string, intent *Intent) Decision {
	return Decision{Outcome: OutcomeRedirected, Path: path, Intent: intent}
}

func (d Decision) Allowed() bool   { return d.Outcome == OutcomeAllowed }
func (d Decision) Suspended() bool { return d.Outcome == OutcomeSuspended }

// RedirectsToLogin reports whether the decision is a login redirect.
func (d Decision) RedirectsToLogin() bool {
	return d.Outcome == OutcomeRedirected && d.Path == PathLogin
}

// RedirectsToPayment reports whether the decision is a payment redirect.
func (d Decision) RedirectsToPayment() bool {
	return d.Outcome == OutcomeRedirected && d.Path == PathPayment
}

// Reason returns the message attached to a login redirect.
func (d Decision) Reason() string {
	if d.Intent == nil {
		return ""
	}
	return d.Intent.Message
}

func (d Decision) String() string {
	if d.Outcome == OutcomeRedirected {
		return "redirect " + d.Path
	}
	return d.Outcome.String()
}

// Evaluate decides a navigation attempt against a session snapshot. It has
// no side effects; the intent on a login redirect is not yet registered.
func Evaluate(snap session.Snapshot, req Request) Decision {
	if snap.Loading() {
		return Suspend()
	}
	path := Clean(req.Path)
	needsAuth := RequiresAuth(path) || req.Capability.RequiresAuth()
	if needsAuth && !snap.Authenticated() {
		return RedirectTo(PathLogin, &Intent{ResumePath: path, Message: req.Reason})
	}
	if req.Capability.RequiresPaidTier() && !snap.Tier().IsPaid() {
		return RedirectTo(PathPayment, nil)
	}
	return Allow()
}

// ForbiddenDecision translates a 403 from a premium feature into the payment
// redirect. Any other error yields ok=false.
func ForbiddenDecision(err error) (Decision, bool) {
	if !sdk.IsForbidden(err) {
		return Decision{}, false
	}
	return RedirectTo(PathPayment, nil), true
}
