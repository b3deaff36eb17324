package sdk

import "strings"

// User is the identity returned by the auth and profile endpoints. It never
// carries credential material.
type User struct {
	ID                 int64  `json:"id,omitempty"`
	Email              string `json:"email"`
	FullName           string `json:"full_name,omitempty"`
	SubscriptionTier   Tier   `json:"subscription_tier,omitempty"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
	AvatarURL          string `json:"avatar_url,omitempty"`
	CreatedAt          string `json:"created_at,omitempty"`
}

// DisplayName returns the first name for greetings, falling back to the email.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return strings.Fields(name)[0]
	}
	return u.Email
}

// AuthResponse is returned by login and registration.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         User   `json:"user"`
}

type userResponse struct {
	User *User `json:"user"`
}

// Model is an entry of GET /ai/models.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Tier        Tier   `json:"tier"`
	Description string `json:"description,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

// IsPremium reports whether using the model requires a paid subscription.
func (m Model) IsPremium() bool { return m.Tier.IsPremium() }

type modelsResponse struct {
	Models []Model `json:"models"`
}

// DefaultModelID is used when the caller did not pick a model.
const DefaultModelID = "kiwi-4.5"

// GenerateRequest is the body of POST /ai/generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

// GenerateResult is the response of POST /ai/generate.
type GenerateResult struct {
	Code        string `json:"code"`
	Explanation string `json:"explanation,omitempty"`
	ModelUsed   string `json:"model_used,omitempty"`
	HistoryID   int64  `json:"history_id,omitempty"`
}

// ExplainRequest is the body of POST /ai/explain.
type ExplainRequest struct {
	Code  string `json:"code"`
	Model string `json:"model"`
}

// ExplainResult is the response of POST /ai/explain.
type ExplainResult struct {
	Explanation string `json:"explanation"`
}
