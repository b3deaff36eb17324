package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/errgroup"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/credentials"
)

type fakeBackend struct {
	mu       sync.Mutex
	users    map[string]sdk.User // access token -> user
	password string

	meCalls     atomic.Int32
	loginCalls  atomic.Int32
	logoutCalls atomic.Int32
	logoutSeen  chan string

	// When set, Me and Login signal entered and wait for release.
	gate *gate
}

type gate struct {
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gate) pass(ctx context.Context) error {
	if g == nil {
		return nil
	}
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		users:      map[string]sdk.User{},
		password:   "secret123",
		logoutSeen: make(chan string, 4),
	}
}

func (f *fakeBackend) addUser(token string, u sdk.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[token] = u
}

func (f *fakeBackend) Login(ctx context.Context, creds sdk.Credentials) (sdk.AuthResponse, error) {
	f.loginCalls.Add(1)
	if err := f.gate.pass(ctx); err != nil {
		return sdk.AuthResponse{}, err
	}
	if creds.Password != f.password {
		return sdk.AuthResponse{}, sdk.APIError{Status: http.StatusUnauthorized, Message: "Invalid email or password"}
	}
	u := sdk.User{ID: 7, Email: creds.Email, FullName: "Ada", SubscriptionTier: sdk.TierFree}
	f.addUser("login-token", u)
	return sdk.AuthResponse{AccessToken: "login-token", RefreshToken: "login-refresh", User: u}, nil
}

func (f *fakeBackend) Register(_ context.Context, req sdk.RegisterRequest) (sdk.AuthResponse, error) {
	if req.Email == "taken@example.com" {
		return sdk.AuthResponse{}, sdk.APIError{Status: http.StatusBadRequest, Message: "User already exists"}
	}
	u := sdk.User{ID: 8, Email: req.Email, FullName: req.FullName, SubscriptionTier: sdk.TierFree}
	f.addUser("register-token", u)
	return sdk.AuthResponse{AccessToken: "register-token", User: u}, nil
}

func (f *fakeBackend) Me(ctx context.Context) (sdk.User, error) {
	f.meCalls.Add(1)
	if err := f.gate.pass(ctx); err != nil {
		return sdk.User{}, err
	}
	token, _ := sdk.AccessTokenFromContext(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[token]
	if !ok {
		return sdk.User{}, sdk.APIError{Status: http.StatusUnauthorized, Message: "Invalid token"}
	}
	return u, nil
}

func (f *fakeBackend) Logout(ctx context.Context) error {
	f.logoutCalls.Add(1)
	token, _ := sdk.AccessTokenFromContext(ctx)
	f.logoutSeen <- token
	return nil
}

func newTestStore(t *testing.T, backend Backend, creds credentials.Store) *Store {
	t.Helper()
	s, err := NewStore(backend, creds, WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func seed(t *testing.T, creds credentials.Store, access, refresh string) {
	t.Helper()
	if err := creds.Save(context.Background(), credentials.Credential{AccessToken: access, RefreshToken: refresh}); err != nil {
		t.Fatalf("seed credential: %v", err)
	}
}

func TestNewStoreRequiresDependencies(t *testing.T) {
	if _, err := NewStore(nil, credentials.NewMemoryStore()); err == nil {
		t.Fatal("expected error for missing backend")
	}
	if _, err := NewStore(newFakeBackend(), nil); err == nil {
		t.Fatal("expected error for missing credential store")
	}
}

func TestStoreStartsLoading(t *testing.T) {
	s := newTestStore(t, newFakeBackend(), credentials.NewMemoryStore())
	snap := s.Snapshot()
	if !snap.Loading() || snap.Authenticated() {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
	select {
	case <-s.Ready():
		t.Fatal("ready closed before Initialize")
	default:
	}
}

func TestInitializeWithoutCredential(t *testing.T) {
	backend := newFakeBackend()
	s := newTestStore(t, backend, credentials.NewMemoryStore())

	snap := s.Initialize(context.Background())
	if snap.Loading() || snap.Authenticated() {
		t.Fatalf("expected ready and signed out, got %+v", snap)
	}
	if backend.meCalls.Load() != 0 {
		t.Fatalf("expected no validation call, got %d", backend.meCalls.Load())
	}
}

func TestInitializeValidStoredCredential(t *testing.T) {
	backend := newFakeBackend()
	backend.addUser("stored", sdk.User{ID: 1, Email: "a@example.com", SubscriptionTier: sdk.TierPro})
	creds := credentials.NewMemoryStore()
	seed(t, creds, "stored", "r")
	s := newTestStore(t, backend, creds)

	snap := s.Initialize(context.Background())
	if !snap.Authenticated() || snap.Identity.Email != "a@example.com" {
		t.Fatalf("expected identity, got %+v", snap)
	}
	if snap.Tier() != sdk.TierPro {
		t.Fatalf("expected pro tier, got %s", snap.Tier())
	}
	select {
	case <-s.Ready():
	default:
		t.Fatal("ready not closed after Initialize")
	}
}

// A stored token rejected with 401 ends signed out with storage cleared and
// no error surfaced.
func TestInitializeRejectedCredentialPurges(t *testing.T) {
	backend := newFakeBackend()
	creds := credentials.NewMemoryStore()
	seed(t, creds, "revoked", "r")
	s := newTestStore(t, backend, creds)

	snap := s.Initialize(context.Background())
	if snap.Authenticated() || snap.Loading() {
		t.Fatalf("expected signed out, got %+v", snap)
	}
	if _, err := creds.Load(context.Background()); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("expected storage cleared, got %v", err)
	}
}

func TestInitializeSkipsExpiredJWT(t *testing.T) {
	backend := newFakeBackend()
	token := signedToken(t, time.Now().Add(-time.Hour))
	backend.addUser(token, sdk.User{ID: 1})
	creds := credentials.NewMemoryStore()
	seed(t, creds, token, "")
	s := newTestStore(t, backend, creds)

	snap := s.Initialize(context.Background())
	if snap.Authenticated() {
		t.Fatal("expired token should not authenticate")
	}
	if backend.meCalls.Load() != 0 {
		t.Fatalf("expected no network validation, got %d", backend.meCalls.Load())
	}
	if _, err := creds.Load(context.Background()); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("expected storage cleared, got %v", err)
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

// Concurrent Initialize calls share one load and one validation request.
func TestInitializeIsMemoized(t *testing.T) {
	backend := newFakeBackend()
	backend.addUser("stored", sdk.User{ID: 1})
	backend.gate = newGate()
	creds := credentials.NewMemoryStore()
	seed(t, creds, "stored", "")
	s := newTestStore(t, backend, creds)

	var g errgroup.Group
	results := make([]Snapshot, 3)
	for i := range results {
		g.Go(func() error {
			results[i] = s.Initialize(context.Background())
			return nil
		})
	}
	<-backend.gate.entered
	close(backend.gate.release)
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	for i, snap := range results {
		if !snap.Authenticated() {
			t.Fatalf("caller %d saw %+v", i, snap)
		}
	}
	s.Initialize(context.Background())
	if got := backend.meCalls.Load(); got != 1 {
		t.Fatalf("expected one validation call, got %d", got)
	}
}

func TestInitializeCallerContextCancelled(t *testing.T) {
	backend := newFakeBackend()
	backend.addUser("stored", sdk.User{ID: 1})
	backend.gate = newGate()
	creds := credentials.NewMemoryStore()
	seed(t, creds, "stored", "")
	s := newTestStore(t, backend, creds)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Snapshot)
	go func() { done <- s.Initialize(ctx) }()
	<-backend.gate.entered
	cancel()
	if snap := <-done; !snap.Loading() {
		t.Fatalf("expected loading snapshot, got %+v", snap)
	}
	close(backend.gate.release)
	<-s.Ready()
	if !s.Snapshot().Authenticated() {
		t.Fatal("shared load should finish despite the cancelled caller")
	}
}

// A logout issued while the initial validation is in flight wins over its
// late success.
func TestLogoutDuringInitializeDiscardsResult(t *testing.T) {
	backend := newFakeBackend()
	backend.addUser("stored", sdk.User{ID: 1})
	backend.gate = newGate()
	creds := credentials.NewMemoryStore()
	seed(t, creds, "stored", "")
	s := newTestStore(t, backend, creds)

	done := make(chan Snapshot)
	go func() { done <- s.Initialize(context.Background()) }()
	<-backend.gate.entered

	s.Logout(context.Background())
	close(backend.gate.release)

	snap := <-done
	if snap.Authenticated() {
		t.Fatalf("late validation resurrected the session: %+v", snap)
	}
	if _, err := creds.Load(context.Background()); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("expected storage cleared, got %v", err)
	}
}

func TestLoginDuringInitializeWins(t *testing.T) {
	backend := newFakeBackend()
	creds := credentials.NewMemoryStore()
	seed(t, creds, "stale", "")
	backend.gate = newGate()
	s := newTestStore(t, backend, creds)

	done := make(chan Snapshot)
	go func() { done <- s.Initialize(context.Background()) }()
	parked := backend.gate
	<-parked.entered

	backend.gate = nil
	if _, err := s.Login(context.Background(), "a@example.com", "secret123"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	close(parked.release)
	snap := <-done
	if !snap.Authenticated() || snap.Identity.Email != "a@example.com" {
		t.Fatalf("expected login identity to survive, got %+v", snap)
	}
	cred, err := creds.Load(context.Background())
	if err != nil || cred.AccessToken != "login-token" {
		t.Fatalf("expected login credential kept, got %+v %v", cred, err)
	}
}

func TestLoginPersistsTokens(t *testing.T) {
	backend := newFakeBackend()
	creds := credentials.NewMemoryStore()
	s := newTestStore(t, backend, creds)
	s.Initialize(context.Background())

	id, err := s.Login(context.Background(), "a@example.com", "secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if id.Email != "a@example.com" {
		t.Fatalf("unexpected identity %+v", id)
	}
	cred, err := creds.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cred.AccessToken != "login-token" || cred.RefreshToken != "login-refresh" {
		t.Fatalf("unexpected credential %+v", cred)
	}
	if snap := s.Snapshot(); !snap.Authenticated() || snap.Loading() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestLoginFailureLeavesStateUnchanged(t *testing.T) {
	backend := newFakeBackend()
	creds := credentials.NewMemoryStore()
	s := newTestStore(t, backend, creds)
	s.Initialize(context.Background())
	before := s.Snapshot()

	_, err := s.Login(context.Background(), "a@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if !sdk.IsAuthError(err) {
		t.Fatalf("expected auth kind preserved, got %v", err)
	}
	if after := s.Snapshot(); after.Authenticated() != before.Authenticated() || after.Status != before.Status {
		t.Fatalf("state changed: %+v -> %+v", before, after)
	}
	if _, err := creds.Load(context.Background()); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("expected nothing persisted, got %v", err)
	}
}

func TestLoginNetworkFailureIsNetworkKind(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = newGate()
	s, err := NewStore(backend, credentials.NewMemoryStore(), WithTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	_, err = s.Login(context.Background(), "a@example.com", "secret123")
	if !sdk.IsNetworkError(err) {
		t.Fatalf("expected network kind, got %v (%s)", err, sdk.ErrorKindOf(err))
	}
}

func TestLoginCompletingAfterLogoutIsStale(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = newGate()
	creds := credentials.NewMemoryStore()
	s := newTestStore(t, backend, creds)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Login(context.Background(), "a@example.com", "secret123")
		errc <- err
	}()
	<-backend.gate.entered
	s.Logout(context.Background())
	close(backend.gate.release)

	if err := <-errc; !errors.Is(err, ErrStaleResult) {
		t.Fatalf("expected ErrStaleResult, got %v", err)
	}
	if s.Snapshot().Authenticated() {
		t.Fatal("stale login published an identity")
	}
	if _, err := creds.Load(context.Background()); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("stale login persisted tokens: %v", err)
	}
}

func TestRegister(t *testing.T) {
	backend := newFakeBackend()
	creds := credentials.NewMemoryStore()
	s := newTestStore(t, backend, creds)

	if _, err := s.Register(context.Background(), "taken@example.com", "secret123", "Ada"); !sdk.IsValidationError(err) {
		t.Fatalf("expected validation error for duplicate email, got %v", err)
	}
	id, err := s.Register(context.Background(), "new@example.com", "secret123", "Ada")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id.FullName != "Ada" {
		t.Fatalf("unexpected identity %+v", id)
	}
	cred, err := creds.Load(context.Background())
	if err != nil || cred.AccessToken != "register-token" || cred.RefreshToken != "" {
		t.Fatalf("unexpected credential %+v %v", cred, err)
	}
}

// Logout twice equals logout once, and the old token is revoked in the
// background.
func TestLogoutIdempotent(t *testing.T) {
	backend := newFakeBackend()
	creds := credentials.NewMemoryStore()
	s := newTestStore(t, backend, creds)
	if _, err := s.Login(context.Background(), "a@example.com", "secret123"); err != nil {
		t.Fatal(err)
	}

	s.Logout(context.Background())
	first := s.Snapshot()
	s.Logout(context.Background())
	second := s.Snapshot()

	if first.Authenticated() || second.Authenticated() {
		t.Fatal("expected signed out")
	}
	if first.Status != second.Status {
		t.Fatalf("status differs: %s vs %s", first.Status, second.Status)
	}
	s.Close()
	if got := backend.logoutCalls.Load(); got != 1 {
		t.Fatalf("expected one revocation, got %d", got)
	}
	if tok := <-backend.logoutSeen; tok != "login-token" {
		t.Fatalf("revoked %q, want login-token", tok)
	}
}

func TestLogoutWithCancelledContext(t *testing.T) {
	backend := newFakeBackend()
	creds := credentials.NewMemoryStore()
	s := newTestStore(t, backend, creds)
	if _, err := s.Login(context.Background(), "a@example.com", "secret123"); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Logout(ctx)
	if _, err := creds.Load(context.Background()); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("expected storage cleared, got %v", err)
	}
}

func TestUpdateIdentity(t *testing.T) {
	backend := newFakeBackend()
	s := newTestStore(t, backend, credentials.NewMemoryStore())

	err := s.UpdateIdentity(IdentityPatch{FullName: sdk.StringPtr("Grace")})
	if !sdk.IsPreconditionError(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}

	if _, err := s.Login(context.Background(), "a@example.com", "secret123"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateIdentity(IdentityPatch{FullName: sdk.StringPtr("Grace"), SubscriptionTier: sdk.TierPtr(sdk.TierPro)}); err != nil {
		t.Fatalf("UpdateIdentity: %v", err)
	}
	snap := s.Snapshot()
	if snap.Identity.FullName != "Grace" || snap.Identity.Email != "a@example.com" {
		t.Fatalf("patch not merged: %+v", snap.Identity)
	}
	if snap.Tier() != sdk.TierPro {
		t.Fatalf("tier not updated: %s", snap.Tier())
	}
	if backend.meCalls.Load() != 0 {
		t.Fatal("UpdateIdentity must not call the backend")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestStore(t, newFakeBackend(), credentials.NewMemoryStore())
	if _, err := s.Login(context.Background(), "a@example.com", "secret123"); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	snap.Identity.FullName = "mutated"
	if s.Snapshot().Identity.FullName == "mutated" {
		t.Fatal("snapshot shares identity with the store")
	}
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(t, newFakeBackend(), credentials.NewMemoryStore())

	var mu sync.Mutex
	var seen []bool
	cancel := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		seen = append(seen, snap.Authenticated())
		mu.Unlock()
	})

	if _, err := s.Login(context.Background(), "a@example.com", "secret123"); err != nil {
		t.Fatal(err)
	}
	s.Logout(context.Background())
	cancel()
	s.Logout(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || !seen[0] || seen[1] {
		t.Fatalf("unexpected notifications %v", seen)
	}
}

// lockCheckingStore records whether the owning Store held its writer lock
// while the credential was being read.
type lockCheckingStore struct {
	credentials.Store
	owner          atomic.Pointer[Store]
	heldDuringLoad atomic.Bool
}

func (c *lockCheckingStore) Load(ctx context.Context) (credentials.Credential, error) {
	if s := c.owner.Load(); s != nil {
		if s.mu.TryLock() {
			s.mu.Unlock()
		} else {
			c.heldDuringLoad.Store(true)
		}
	}
	return c.Store.Load(ctx)
}

func TestLogoutReadsCredentialOutsideLock(t *testing.T) {
	backend := newFakeBackend()
	creds := &lockCheckingStore{Store: credentials.NewMemoryStore()}
	s := newTestStore(t, backend, creds)
	creds.owner.Store(s)
	if _, err := s.Login(context.Background(), "a@example.com", "secret123"); err != nil {
		t.Fatal(err)
	}

	s.Logout(context.Background())
	if creds.heldDuringLoad.Load() {
		t.Fatal("credential loaded while the writer lock was held")
	}
	if s.Snapshot().Authenticated() {
		t.Fatal("expected signed out")
	}
	s.Close()
	if tok := <-backend.logoutSeen; tok != "login-token" {
		t.Fatalf("revoked %q, want login-token", tok)
	}
}

func TestSubscribersReceiveEachPublishedSnapshot(t *testing.T) {
	s := newTestStore(t, newFakeBackend(), credentials.NewMemoryStore())
	if _, err := s.Login(context.Background(), "a@example.com", "secret123"); err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var names []string
	cancel := s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		names = append(names, snap.Identity.FullName)
		mu.Unlock()
	})
	defer cancel()

	// Holding subMu parks both writers in notify after their swaps, so the
	// first one delivers only after the second has replaced its snapshot.
	s.subMu.Lock()
	var wg sync.WaitGroup
	for _, name := range []string{"Grace", "Hopper"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.UpdateIdentity(IdentityPatch{FullName: sdk.StringPtr(name)}); err != nil {
				t.Errorf("UpdateIdentity(%s): %v", name, err)
			}
		}()
		waitFor(t, func() bool { return s.Snapshot().Identity.FullName == name })
	}
	s.subMu.Unlock()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	got := map[string]bool{}
	for _, n := range names {
		got[n] = true
	}
	if len(names) != 2 || !got["Grace"] || !got["Hopper"] {
		t.Fatalf("expected one notification per change, got %v", names)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCompleteExternalLogin(t *testing.T) {
	backend := newFakeBackend()
	backend.addUser("external", sdk.User{ID: 3, Email: "ext@example.com"})
	creds := credentials.NewMemoryStore()
	s := newTestStore(t, backend, creds)

	if _, err := s.CompleteExternalLogin(context.Background(), "", ""); !sdk.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := s.CompleteExternalLogin(context.Background(), "bogus", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := creds.Load(context.Background()); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("rejected token was persisted: %v", err)
	}

	id, err := s.CompleteExternalLogin(context.Background(), "external", "")
	if err != nil {
		t.Fatalf("CompleteExternalLogin: %v", err)
	}
	if id.Email != "ext@example.com" {
		t.Fatalf("unexpected identity %+v", id)
	}
	cred, err := creds.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cred.AccessToken != "external" || cred.RefreshToken != "" {
		t.Fatalf("refresh token must not be derived from the access token: %+v", cred)
	}
}
