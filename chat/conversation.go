// Package chat implements the prompt submission flow of the landing page:
// premium model gating, the optimistic transcript and error messages.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	sdk "github.com/globalassist/globalassist/sdk/go"
	"github.com/globalassist/globalassist/sdk/go/guard"
)

// User-facing messages.
const (
	MsgLoginToContinue = "Please login to continue using GlobalAssist."
	MsgLoginForPremium = "Please login to use premium models."
	MsgGenerateFailed  = "Failed to generate code. Please try again."

	// ReasonPremium is shown on the login page after a premium model was picked anonymously.
	ReasonPremium = "Please login to use premium models"
)

var (
	ErrEmptyPrompt = errors.New("chat: prompt is empty")
	ErrBusy        = errors.New("chat: a submission is already in progress")
)

// Role tells who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Role        Role
	Content     string
	Explanation string
	Model       string
	IsError     bool
	CreatedAt   time.Time
}

// Generator produces code for a prompt. *sdk.AIClient implements it.
type Generator interface {
	Generate(ctx context.Context, req sdk.GenerateRequest) (sdk.GenerateResult, error)
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(c *Conversation) { c.logger = l } }

// Conversation is an in-memory chat transcript. It is safe for concurrent
// use, but only one submission runs at a time.
type Conversation struct {
	gen    Generator
	guard  *guard.Guard
	logger zerolog.Logger
	now    func() time.Time

	mu       sync.Mutex
	messages []Message
	busy     bool
}

// New returns an empty conversation.
func New(gen Generator, g *guard.Guard, opts ...Option) *Conversation {
	c := &Conversation{
		gen:    gen,
		guard:  g,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Busy reports whether a submission is in flight.
func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Submit sends prompt to model. A premium model the session cannot use
// yields a redirect decision without calling the backend or touching the
// transcript. Otherwise the prompt is appended right away and the answer, or
// an error message, follows. Backend failures become transcript messages;
// a 403 additionally returns the payment redirect.
func (c *Conversation) Submit(ctx context.Context, prompt string, model sdk.Model) (guard.Decision, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return guard.Decision{}, ErrEmptyPrompt
	}
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return guard.Decision{}, ErrBusy
	}
	c.busy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	if model.ID == "" {
		model = sdk.Model{ID: sdk.DefaultModelID, Tier: sdk.TierFree}
	}
	d, err := c.guard.Navigate(ctx, guard.Request{
		Path:       guard.PathHome,
		Capability: guard.CapabilityFor(model),
		Reason:     ReasonPremium,
	})
	if err != nil {
		return d, err
	}
	if !d.Allowed() {
		c.logger.Debug().Str("model", model.ID).Stringer("decision", d).Msg("chat: submission gated")
		return d, nil
	}

	c.append(Message{Role: RoleUser, Content: prompt})

	res, err := c.gen.Generate(ctx, sdk.GenerateRequest{Prompt: prompt, Model: model.ID})
	if err != nil {
		c.logger.Warn().Err(err).Str("model", model.ID).Str("kind", string(sdk.ErrorKindOf(err))).Msg("chat: generation failed")
		c.append(Message{Role: RoleAssistant, Content: ErrorMessage(err), IsError: true})
		if redirect, ok := guard.ForbiddenDecision(err); ok {
			return redirect, nil
		}
		return guard.Allow(), nil
	}

	name := model.Name
	if name == "" {
		name = res.ModelUsed
	}
	c.append(Message{
		Role:        RoleAssistant,
		Content:     res.Code,
		Explanation: res.Explanation,
		Model:       name,
	})
	return guard.Allow(), nil
}

func (c *Conversation) append(m Message) {
	m.CreatedAt = c.now()
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
}

// ErrorMessage maps a generation failure to the text shown in the transcript.
func ErrorMessage(err error) string {
	switch sdk.ErrorKindOf(err) {
	case sdk.KindAuth:
		return MsgLoginToContinue
	case sdk.KindForbidden:
		return MsgLoginForPremium
	}
	if apiErr, ok := sdk.AsAPIError(err); ok && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return MsgGenerateFailed
}
