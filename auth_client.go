package sdk

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/globalassist/globalassist/sdk/go/routes"
)

// Credentials encapsulates email/password inputs for login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate rejects blank inputs before a request is sent.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Email) == "" {
		return ValidationError{Field: "email", Message: "email required"}
	}
	if c.Password == "" {
		return ValidationError{Field: "password", Message: "password required"}
	}
	return nil
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Validate rejects blank inputs before a request is sent.
func (r RegisterRequest) Validate() error {
	return Credentials{Email: r.Email, Password: r.Password}.Validate()
}

// AuthClient wraps authentication-related endpoints.
type AuthClient struct {
	client *Client
}

func (a *AuthClient) ensureInitialized() error {
	if a == nil || a.client == nil {
		return ConfigError{Reason: "auth client not initialized"}
	}
	return nil
}

// Login exchanges user credentials for a token pair and the user profile.
func (a *AuthClient) Login(ctx context.Context, creds Credentials) (AuthResponse, error) {
	if err := a.ensureInitialized(); err != nil {
		return AuthResponse{}, err
	}
	if err := creds.Validate(); err != nil {
		return AuthResponse{}, err
	}
	return a.exchange(ctx, routes.AuthLogin, creds)
}

// Register creates an account and returns a token pair and the new user.
func (a *AuthClient) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	if err := a.ensureInitialized(); err != nil {
		return AuthResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return AuthResponse{}, err
	}
	return a.exchange(ctx, routes.AuthRegister, req)
}

func (a *AuthClient) exchange(ctx context.Context, path string, payload any) (AuthResponse, error) {
	var out AuthResponse
	if err := a.client.sendAndDecode(ctx, http.MethodPost, path, payload, &out); err != nil {
		return AuthResponse{}, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return AuthResponse{}, fmt.Errorf("sdk: missing access_token in response")
	}
	return out, nil
}

// Me returns the user bound to the bearer token of the request. Use
// WithAccessToken to validate a specific token.
func (a *AuthClient) Me(ctx context.Context) (User, error) {
	if err := a.ensureInitialized(); err != nil {
		return User{}, err
	}
	var payload userResponse
	if err := a.client.sendAndDecode(ctx, http.MethodGet, routes.AuthMe, nil, &payload); err != nil {
		return User{}, err
	}
	if payload.User == nil {
		return User{}, fmt.Errorf("sdk: missing user in response")
	}
	return *payload.User, nil
}

// Logout asks the backend to invalidate the bearer token.
func (a *AuthClient) Logout(ctx context.Context) error {
	if err := a.ensureInitialized(); err != nil {
		return err
	}
	return a.client.sendAndDecode(ctx, http.MethodPost, routes.AuthLogout, nil, nil)
}
