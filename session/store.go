package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/auth"
	"github.com/globalassist/globalassist/sdk/go/credentials"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRevokeTimeout = 5 * time.Second
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithTimeout bounds every backend call made by the store.
func WithTimeout(d time.Duration) Option { return func(s *Store) { s.timeout = d } }

// WithClock overrides time.Now, used for local token expiry checks.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// Store is the single source of truth for the signed-in user.
//
// Reads are lock-free: the current Snapshot sits behind an atomic pointer and
// is replaced as a whole. Writers serialize on mu, which covers the
// generation counters, the credential write and the swap, and is never held
// across a backend call.
type Store struct {
	backend Backend
	creds   credentials.Store
	logger  zerolog.Logger
	timeout time.Duration
	now     func() time.Time

	current atomic.Pointer[Snapshot]

	mu        sync.Mutex
	logoutGen uint64
	authGen   uint64

	subMu   sync.RWMutex
	subs    map[uint64]func(Snapshot)
	nextSub uint64

	initOnce sync.Once
	ready    chan struct{}
	bg       sync.WaitGroup
}

// NewStore returns a Store in the Loading state. Call Initialize once the
// application starts.
func NewStore(backend Backend, creds credentials.Store, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, sdk.ConfigError{Reason: "session backend is required"}
	}
	if creds == nil {
		return nil, sdk.ConfigError{Reason: "credential store is required"}
	}
	s := &Store{
		backend: backend,
		creds:   creds,
		logger:  zerolog.Nop(),
		timeout: defaultTimeout,
		now:     time.Now,
		subs:    make(map[uint64]func(Snapshot)),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.current.Store(&Snapshot{Status: StatusLoading})
	return s, nil
}

// Snapshot returns the current state. The returned value is a copy.
func (s *Store) Snapshot() Snapshot {
	return s.current.Load().clone()
}

// Ready is closed once Initialize has finished its single load.
func (s *Store) Ready() <-chan struct{} { return s.ready }

// Subscribe registers fn to be called after every published change, on the
// goroutine that made it. fn receives the snapshot that change published,
// even if a later change has already replaced it, and must not block.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snap *Snapshot) {
	s.subMu.RLock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.RUnlock()
	if len(fns) == 0 {
		return
	}
	for _, fn := range fns {
		fn(snap.clone())
	}
}

// swap must be called with mu held. It returns the published snapshot.
func (s *Store) swap(identity *Identity) *Snapshot {
	next := &Snapshot{Status: StatusReady}
	if identity != nil {
		id := *identity
		next.Identity = &id
	}
	s.current.Store(next)
	return next
}

func (s *Store) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

type generations struct {
	logout uint64
	auth   uint64
}

func (s *Store) generations() generations {
	s.mu.Lock()
	defer s.mu.Unlock()
	return generations{logout: s.logoutGen, auth: s.authGen}
}

// Initialize runs the start-up credential check exactly once per Store and
// waits for it. Concurrent callers share the single outcome. If ctx ends
// first, the check keeps running and the current (Loading) snapshot is
// returned.
//
// Validation failures of any kind are handled here by clearing the stored
// credential; they are never reported to the caller.
func (s *Store) Initialize(ctx context.Context) Snapshot {
	s.initOnce.Do(func() {
		loadCtx := context.WithoutCancel(ctx)
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			defer close(s.ready)
			s.load(loadCtx)
		}()
	})
	select {
	case <-s.ready:
	case <-ctx.Done():
	}
	return s.Snapshot()
}

func (s *Store) load(ctx context.Context) {
	gens := s.generations()

	cred, err := s.creds.Load(ctx)
	if errors.Is(err, credentials.ErrNotFound) {
		s.settle(gens, nil, false)
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("session: reading stored credential failed")
		s.settle(gens, nil, true)
		return
	}
	if auth.ExpiredAt(cred.AccessToken, s.now(), 0) {
		s.logger.Info().Msg("session: stored access token expired")
		s.settle(gens, nil, true)
		return
	}

	callCtx, cancel := s.bound(sdk.WithAccessToken(ctx, cred.AccessToken))
	defer cancel()
	user, err := s.backend.Me(callCtx)
	if err != nil {
		s.logger.Info().
			Err(err).
			Str("kind", string(sdk.ErrorKindOf(err))).
			Msg("session: stored credential rejected")
		s.settle(gens, nil, true)
		return
	}
	s.settle(gens, &user, false)
}

// settle publishes the outcome of the initial load unless a login or logout
// happened in the meantime, in which case that newer state wins.
func (s *Store) settle(gens generations, identity *Identity, purge bool) {
	s.mu.Lock()
	if gens.logout != s.logoutGen || gens.auth != s.authGen {
		s.mu.Unlock()
		s.logger.Debug().Msg("session: discarding stale initial load")
		return
	}
	if purge {
		s.clearCredentials(context.Background())
	}
	snap := s.swap(identity)
	s.mu.Unlock()
	s.notify(snap)
}

// clearCredentials must be called with mu held. Failures are logged only:
// logout cannot fail.
func (s *Store) clearCredentials(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultRevokeTimeout)
	defer cancel()
	if err := s.creds.Clear(ctx); err != nil {
		s.logger.Error().Err(err).Msg("session: clearing stored credential failed")
	}
}

// Login signs in with email and password. On failure nothing is persisted
// and the published state is unchanged. A 401 is reported as
// ErrInvalidCredentials.
func (s *Store) Login(ctx context.Context, email, password string) (Identity, error) {
	gens := s.generations()
	callCtx, cancel := s.bound(ctx)
	defer cancel()
	resp, err := s.backend.Login(callCtx, sdk.Credentials{Email: email, Password: password})
	if err != nil {
		return Identity{}, classifyAuthError(err)
	}
	return s.establish(ctx, gens, resp)
}

// Register creates an account and signs in with it. Duplicate emails and
// other rejected inputs surface as validation errors.
func (s *Store) Register(ctx context.Context, email, password, fullName string) (Identity, error) {
	gens := s.generations()
	callCtx, cancel := s.bound(ctx)
	defer cancel()
	resp, err := s.backend.Register(callCtx, sdk.RegisterRequest{
		Email:    email,
		Password: password,
		FullName: fullName,
	})
	if err != nil {
		return Identity{}, classifyAuthError(err)
	}
	return s.establish(ctx, gens, resp)
}

// CompleteExternalLogin accepts a token pair delivered by an external sign-in
// redirect. The token is validated against the backend before it is stored.
// refreshToken is stored only when given.
func (s *Store) CompleteExternalLogin(ctx context.Context, accessToken, refreshToken string) (Identity, error) {
	if accessToken == "" {
		return Identity{}, sdk.ValidationError{Field: "token", Message: "access token required"}
	}
	gens := s.generations()
	callCtx, cancel := s.bound(sdk.WithAccessToken(ctx, accessToken))
	defer cancel()
	user, err := s.backend.Me(callCtx)
	if err != nil {
		return Identity{}, classifyAuthError(err)
	}
	return s.establish(ctx, gens, sdk.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	})
}

func (s *Store) establish(ctx context.Context, gens generations, resp sdk.AuthResponse) (Identity, error) {
	if resp.AccessToken == "" {
		return Identity{}, fmt.Errorf("session: backend returned no access token")
	}
	s.mu.Lock()
	if gens.logout != s.logoutGen {
		s.mu.Unlock()
		s.logger.Debug().Msg("session: discarding sign-in that completed after logout")
		return Identity{}, ErrStaleResult
	}
	cred := credentials.Credential{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if err := s.creds.Save(context.WithoutCancel(ctx), cred); err != nil {
		s.mu.Unlock()
		return Identity{}, fmt.Errorf("session: persist credential: %w", err)
	}
	s.authGen++
	user := resp.User
	snap := s.swap(&user)
	s.mu.Unlock()
	s.notify(snap)
	s.logger.Info().Str("email", user.Email).Str("tier", string(user.SubscriptionTier)).Msg("session: signed in")
	return user, nil
}

// Logout clears the stored credential and publishes the signed-out state. It
// never fails and is safe to call when already signed out. The backend is
// asked to invalidate the old token in the background.
//
// The token to revoke is read before mu is taken; a sign-in that lands in
// between is still cleared, only its server-side revocation is skipped.
func (s *Store) Logout(ctx context.Context) {
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultRevokeTimeout)
	prev, err := s.creds.Load(loadCtx)
	cancel()
	if err != nil {
		prev = credentials.Credential{}
	}

	s.mu.Lock()
	s.logoutGen++
	s.clearCredentials(ctx)
	snap := s.swap(nil)
	s.mu.Unlock()
	s.notify(snap)

	if !prev.IsZero() {
		s.revoke(ctx, prev.AccessToken)
	}
}

func (s *Store) revoke(ctx context.Context, token string) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		revokeCtx, cancel := context.WithTimeout(
			sdk.WithAccessToken(context.WithoutCancel(ctx), token), defaultRevokeTimeout)
		defer cancel()
		if err := s.backend.Logout(revokeCtx); err != nil {
			s.logger.Debug().Err(err).Msg("session: server-side logout failed")
		}
	}()
}

// UpdateIdentity merges patch into the current identity without a network
// call. It fails with sdk.PreconditionError when nobody is signed in.
func (s *Store) UpdateIdentity(patch IdentityPatch) error {
	s.mu.Lock()
	cur := s.current.Load()
	if cur.Identity == nil {
		s.mu.Unlock()
		return sdk.PreconditionError{Reason: "no signed-in identity to update"}
	}
	next := patch.apply(*cur.Identity)
	snap := &Snapshot{Identity: &next, Status: cur.Status}
	s.current.Store(snap)
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

// Close waits for background work (initial load, token revocation) to finish.
func (s *Store) Close() {
	s.bg.Wait()
}

func classifyAuthError(err error) error {
	if sdk.IsAuthError(err) {
		return fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	return err
}
