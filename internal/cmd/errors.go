package cmd

import (
	"errors"
	"fmt"

	"github.com/globalassist/globalassist/sdk/go/guard"
)

// Exit codes returned by Run.
const (
	ExitOK       = 0
	ExitError    = 1
	ExitUsage    = 2
	ExitRedirect = 3
)

// RedirectError reports a navigation the guard did not allow. One-shot
// commands cannot follow redirects, so they surface them as errors.
type RedirectError struct {
	Decision guard.Decision
}

func (e *RedirectError) Error() string {
	switch {
	case e.Decision.RedirectsToLogin():
		msg := "login required"
		if reason := e.Decision.Reason(); reason != "" {
			msg = reason
		}
		return fmt.Sprintf("%s (run `globalassist login`)", msg)
	case e.Decision.RedirectsToPayment():
		return "a Pro subscription is required (run `globalassist plans` and `globalassist checkout <plan>`)"
	default:
		return "navigation not allowed: " + e.Decision.String()
	}
}

// usageError marks invalid invocations.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var redirect *RedirectError
	if errors.As(err, &redirect) {
		return ExitRedirect
	}
	var usage usageError
	if errors.As(err, &usage) {
		return ExitUsage
	}
	return ExitError
}

func decisionError(d guard.Decision) error {
	if d.Allowed() {
		return nil
	}
	return &RedirectError{Decision: d}
}
