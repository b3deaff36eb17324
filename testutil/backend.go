// Package testutil provides an in-memory GlobalAssist backend for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/credentials"
)

// Models served by GET /ai/models.
var Models = []sdk.Model{
	{ID: "kiwi-4.5", Name: "GlobalAssist 4.5", Description: "Fast and smart", Tier: sdk.TierFree, Provider: "anthropic"},
	{ID: "kiwi-opus", Name: "GlobalAssist Opus", Description: "Most intelligent", Tier: sdk.TierPro, Provider: "anthropic"},
	{ID: "gpt-4", Name: "GPT-4 Turbo", Description: "OpenAI flagship", Tier: sdk.TierPro, Provider: "openai"},
	{ID: "gpt-3.5", Name: "GPT-3.5 Turbo", Description: "Fast and efficient", Tier: sdk.TierFree, Provider: "openai"},
}

// Plans served by GET /payment/plans.
var Plans = []sdk.Plan{
	{ID: "free", Name: "Free", Price: 0, Billing: "forever", Features: []string{"50 messages/month"}},
	{ID: "pro_monthly", Name: "Pro Monthly", Price: 19, Billing: "monthly", Features: []string{"All models"}},
	{ID: "pro_yearly", Name: "Pro Yearly", Price: 190, Billing: "yearly", Savings: "Save $38!", Features: []string{"All models"}},
}

type account struct {
	user     sdk.User
	password string
}

type failure struct {
	status int
	body   string
}

// Backend is an httptest server speaking the GlobalAssist API. Access tokens
// are issued as tok1, tok2, ... in order.
type Backend struct {
	server *httptest.Server

	mu        sync.Mutex
	accounts  map[string]*account // by email
	tokens    map[string]string   // access token -> email
	history   []historyEntry
	calls     map[string]int
	failures  map[string]failure
	nextUser  int64
	nextToken int
	nextItem  int64
	meHold    chan struct{}
	meEntered chan struct{}
}

type historyEntry struct {
	owner string
	item  sdk.HistoryItem
}

// NewBackend starts a backend that is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		calls:    make(map[string]int),
		failures: make(map[string]failure),
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.server.Close)
	return b
}

// URL returns the API base URL, including the /api prefix.
func (b *Backend) URL() string { return b.server.URL + "/api" }

// Client returns an SDK client for this backend that authenticates with the
// access token held in creds.
func (b *Backend) Client(t testing.TB, creds credentials.Store, opts ...sdk.Option) *sdk.Client {
	t.Helper()
	provider, err := sdk.NewCredentialTokenProvider(creds)
	if err != nil {
		t.Fatalf("token provider: %v", err)
	}
	opts = append([]sdk.Option{
		sdk.WithBaseURL(b.URL()),
		sdk.WithTokenProvider(provider),
		sdk.WithRequestTimeout(5 * time.Second),
	}, opts...)
	client, err := sdk.New(opts...)
	if err != nil {
		t.Fatalf("sdk.New: %v", err)
	}
	return client
}

// AddUser creates an account and returns its user.
func (b *Backend) AddUser(email, password, fullName string, tier sdk.Tier) sdk.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(email, password, fullName, tier)
}

func (b *Backend) addUserLocked(email, password, fullName string, tier sdk.Tier) sdk.User {
	b.nextUser++
	u := sdk.User{
		ID:                 b.nextUser,
		Email:              email,
		FullName:           fullName,
		SubscriptionTier:   tier,
		SubscriptionStatus: "active",
		CreatedAt:          time.Now().UTC().Format(time.RFC3339),
	}
	b.accounts[email] = &account{user: u, password: password}
	return u
}

// IssueToken returns a fresh access token for email.
func (b *Backend) IssueToken(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(email)
}

func (b *Backend) issueLocked(email string) string {
	b.nextToken++
	tok := "tok" + strconv.Itoa(b.nextToken)
	b.tokens[tok] = email
	return tok
}

// RevokeToken makes token invalid.
func (b *Backend) RevokeToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, token)
}

// TokenValid reports whether token is still accepted.
func (b *Backend) TokenValid(token string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.tokens[token]
	return ok
}

// SetTier changes the subscription tier of an account.
func (b *Backend) SetTier(email string, tier sdk.Tier) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if acct, ok := b.accounts[email]; ok {
		acct.user.SubscriptionTier = tier
	}
}

// Calls returns how often a route was hit, keyed like "GET /auth/me".
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// FailNext makes the next request to route answer status with body.
func (b *Backend) FailNext(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = failure{status: status, body: body}
}

// HoldMe parks GET /auth/me requests until release is called. entered
// receives once per parked request.
func (b *Backend) HoldMe() (entered <-chan struct{}, release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hold := make(chan struct{})
	b.meHold = hold
	b.meEntered = make(chan struct{}, 16)
	var once sync.Once
	return b.meEntered, func() { once.Do(func() { close(hold) }) }
}

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", b.handleRegister)
	mux.HandleFunc("POST /api/auth/login", b.handleLogin)
	mux.HandleFunc("GET /api/auth/me", b.handleMe)
	mux.HandleFunc("POST /api/auth/logout", b.handleLogout)
	mux.HandleFunc("GET /api/ai/models", b.handleModels)
	mux.HandleFunc("POST /api/ai/generate", b.handleGenerate)
	mux.HandleFunc("POST /api/ai/explain", b.handleExplain)
	mux.HandleFunc("GET /api/history/{key}", b.handleHistoryGet)
	mux.HandleFunc("DELETE /api/history/{id}", b.handleHistoryDelete)
	mux.HandleFunc("DELETE /api/history/clear/{type}", b.handleHistoryClear)
	mux.HandleFunc("GET /api/payment/plans", b.handlePlans)
	mux.HandleFunc("POST /api/payment/create-checkout", b.handleCheckout)
	mux.HandleFunc("GET /api/payment/subscription", b.handleSubscription)
	mux.HandleFunc("GET /api/user/profile", b.handleProfileGet)
	mux.HandleFunc("PUT /api/user/profile", b.handleProfileUpdate)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, pattern := mux.Handler(r)
		route := strings.Replace(pattern, "/api", "", 1)
		b.mu.Lock()
		b.calls[route]++
		fail, failing := b.failures[route]
		delete(b.failures, route)
		b.mu.Unlock()
		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fail.status)
			_, _ = w.Write([]byte(fail.body))
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// authenticate resolves the bearer token to an account.
func (b *Backend) authenticate(w http.ResponseWriter, r *http.Request) (*account, bool) {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || tok == "" {
		writeError(w, http.StatusUnauthorized, "Token is missing")
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	email, ok := b.tokens[tok]
	if !ok {
		writeError(w, http.StatusUnauthorized, "Token is invalid")
		return nil, false
	}
	return b.accounts[email], true
}

func (b *Backend) issueResponse(email string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	tok := b.issueLocked(email)
	return map[string]any{
		"access_token":  tok,
		"refresh_token": "refresh-" + tok,
		"user":          b.accounts[email].user,
	}
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req sdk.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}
	b.mu.Lock()
	if _, exists := b.accounts[req.Email]; exists {
		b.mu.Unlock()
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	b.addUserLocked(req.Email, req.Password, req.FullName, sdk.TierFree)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, b.issueResponse(req.Email))
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req sdk.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Email and password required")
		return
	}
	b.mu.Lock()
	acct, ok := b.accounts[req.Email]
	valid := ok && acct.password == req.Password
	b.mu.Unlock()
	if !valid {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, b.issueResponse(req.Email))
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	hold, entered := b.meHold, b.meEntered
	b.mu.Unlock()
	if hold != nil {
		entered <- struct{}{}
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}
	acct, ok := b.authenticate(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	user := acct.user
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	if tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		b.RevokeToken(tok)
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

func (b *Backend) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": Models})
}

func modelTier(id string) sdk.Tier {
	for _, m := range Models {
		if m.ID == id {
			return m.Tier
		}
	}
	return sdk.TierFree
}

func (b *Backend) handleGenerate(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.authenticate(w, r)
	if !ok {
		return
	}
	var req sdk.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "Prompt required")
		return
	}
	if req.Model == "" {
		req.Model = sdk.DefaultModelID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if modelTier(req.Model).IsPremium() && !acct.user.SubscriptionTier.IsPaid() {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":            "Upgrade to Pro to use this model",
			"upgrade_required": true,
		})
		return
	}
	b.nextItem++
	code := fmt.Sprintf("# Generated code for: %s\nprint(\"Hello from GlobalAssist!\")\n", req.Prompt)
	b.history = append(b.history, historyEntry{owner: acct.user.Email, item: sdk.HistoryItem{
		ID:        b.nextItem,
		Type:      sdk.HistoryChat,
		Title:     req.Prompt,
		Content:   code,
		ModelUsed: req.Model,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}})
	writeJSON(w, http.StatusOK, sdk.GenerateResult{
		Code:        code,
		Explanation: "Code generated successfully",
		ModelUsed:   req.Model,
		HistoryID:   b.nextItem,
	})
}

func (b *Backend) handleExplain(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.authenticate(w, r); !ok {
		return
	}
	var req sdk.ExplainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "Code required")
		return
	}
	writeJSON(w, http.StatusOK, sdk.ExplainResult{Explanation: "This code prints a greeting."})
}

func (b *Backend) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.authenticate(w, r)
	if !ok {
		return
	}
	key := r.PathValue("key")
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		for _, e := range b.history {
			if e.owner == acct.user.Email && e.item.ID == id {
				writeJSON(w, http.StatusOK, map[string]any{"history": e.item})
				return
			}
		}
		writeError(w, http.StatusNotFound, "History not found")
		return
	}
	typ, err := sdk.ParseHistoryType(key)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid history type")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	var matched []sdk.HistoryItem
	for _, e := range b.history {
		if e.owner == acct.user.Email && (typ == sdk.HistoryAll || e.item.Type == typ) {
			matched = append(matched, e.item)
		}
	}
	items := []sdk.HistoryItem{}
	if start := (page - 1) * perPage; start < len(matched) {
		items = matched[start:min(start+perPage, len(matched))]
	}
	writeJSON(w, http.StatusOK, sdk.HistoryPage{History: items, Total: len(matched)})
}

func (b *Backend) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.authenticate(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid history id")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.history {
		if e.owner == acct.user.Email && e.item.ID == id {
			b.history = append(b.history[:i], b.history[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"message": "Deleted"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "History not found")
}

func (b *Backend) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.authenticate(w, r)
	if !ok {
		return
	}
	typ, err := sdk.ParseHistoryType(r.PathValue("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid history type")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.history[:0]
	for _, e := range b.history {
		if e.owner == acct.user.Email && (typ == sdk.HistoryAll || e.item.Type == typ) {
			continue
		}
		kept = append(kept, e)
	}
	b.history = kept
	writeJSON(w, http.StatusOK, map[string]any{"message": "Cleared"})
}

func (b *Backend) handlePlans(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": Plans})
}

func (b *Backend) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.authenticate(w, r); !ok {
		return
	}
	var req struct {
		PlanID string `json:"plan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "Plan ID required")
		return
	}
	if req.PlanID == "free" {
		writeError(w, http.StatusBadRequest, "Invalid plan")
		return
	}
	writeJSON(w, http.StatusOK, sdk.CheckoutSession{
		SessionID: "cs_test_" + req.PlanID,
		URL:       "https://checkout.example.com/pay/cs_test_" + req.PlanID,
	})
}

func (b *Backend) handleSubscription(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.authenticate(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	u := acct.user
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, sdk.Subscription{Tier: u.SubscriptionTier, Status: u.SubscriptionStatus})
}

func (b *Backend) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.authenticate(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	u := acct.user
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (b *Backend) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	acct, ok := b.authenticate(w, r)
	if !ok {
		return
	}
	var req sdk.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if req.Email != nil && *req.Email != acct.user.Email {
		if _, taken := b.accounts[*req.Email]; taken {
			writeError(w, http.StatusBadRequest, "Email already in use")
			return
		}
		delete(b.accounts, acct.user.Email)
		for tok, email := range b.tokens {
			if email == acct.user.Email {
				b.tokens[tok] = *req.Email
			}
		}
		acct.user.Email = *req.Email
		b.accounts[acct.user.Email] = acct
	}
	if req.FullName != nil {
		acct.user.FullName = *req.FullName
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": acct.user})
}
