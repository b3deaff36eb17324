// Package guard decides whether a navigation may proceed given the current
// session, and remembers interrupted destinations so they can be resumed
// after signing in.
package guard

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/globalassist/globalassist/sdk/go/session"
)

// SessionSource is the read side of the session store used by the guard.
type SessionSource interface {
	Snapshot() session.Snapshot
	Initialize(ctx context.Context) session.Snapshot
}

// Option configures a Guard.
type Option func(*Guard)

// WithIntentStore shares an intent store between guards.
func WithIntentStore(s *IntentStore) Option { return func(g *Guard) { g.intents = s } }

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(g *Guard) { g.logger = l } }

// WithSuspendHandler registers fn to be called when a navigation has to wait
// for the session to load, typically to show a waiting indicator.
func WithSuspendHandler(fn func(Request)) Option { return func(g *Guard) { g.onSuspend = fn } }

// Guard evaluates navigations against a live session.
type Guard struct {
	sessions  SessionSource
	intents   *IntentStore
	logger    zerolog.Logger
	onSuspend func(Request)
}

// New returns a Guard reading from sessions.
func New(sessions SessionSource, opts ...Option) *Guard {
	g := &Guard{
		sessions: sessions,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if g.intents == nil {
		g.intents = NewIntentStore(DefaultIntentTTL)
	}
	return g
}

// Intents exposes the intent store.
func (g *Guard) Intents() *IntentStore { return g.intents }

// Navigate evaluates req. While the session is loading the navigation is
// suspended: the suspend handler runs, then Navigate waits for the initial
// load (starting it if needed) and evaluates once. If ctx ends first the
// Suspend decision is returned with ctx's error.
//
// Login redirects come back with their intent registered, so Intent.ID can
// be handed to ResumeAfterLogin.
func (g *Guard) Navigate(ctx context.Context, req Request) (Decision, error) {
	snap := g.sessions.Snapshot()
	if snap.Loading() {
		if g.onSuspend != nil {
			g.onSuspend(req)
		}
		snap = g.sessions.Initialize(ctx)
		if snap.Loading() {
			return Suspend(), ctx.Err()
		}
	}

	d := Evaluate(snap, req)
	if d.Intent != nil {
		stored := g.intents.Put(*d.Intent)
		d.Intent = &stored
	}
	g.logger.Debug().
		Str("path", Clean(req.Path)).
		Str("capability", string(req.Capability)).
		Stringer("decision", d).
		Msg("guard: navigation evaluated")
	return d, nil
}

// ResumeAfterLogin consumes the intent and returns where to go next. Without
// a valid intent the landing destination is returned.
func (g *Guard) ResumeAfterLogin(intentID string) string {
	if intentID == "" {
		return PathHome
	}
	intent, ok := g.intents.Consume(intentID)
	if !ok || intent.ResumePath == "" {
		return PathHome
	}
	return intent.ResumePath
}
