package sdk

import (
	"context"
	"fmt"
	"net/http"

	"github.com/globalassist/globalassist/sdk/go/routes"
)

// ProfileUpdate is the body of PUT /user/profile. Nil fields are left unchanged.
type ProfileUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
}

// ProfileClient reads and edits the caller's profile.
type ProfileClient struct {
	client *Client
}

func (c *ProfileClient) ensureInitialized() error {
	if c == nil || c.client == nil {
		return ConfigError{Reason: "profile client not initialized"}
	}
	return nil
}

// Get returns the caller's profile.
func (c *ProfileClient) Get(ctx context.Context) (User, error) {
	if err := c.ensureInitialized(); err != nil {
		return User{}, err
	}
	return c.do(ctx, http.MethodGet, nil)
}

// Update edits the caller's profile and returns the stored result.
func (c *ProfileClient) Update(ctx context.Context, req ProfileUpdate) (User, error) {
	if err := c.ensureInitialized(); err != nil {
		return User{}, err
	}
	if req.FullName == nil && req.Email == nil {
		return User{}, ValidationError{Message: "nothing to update"}
	}
	if req.Email != nil && *req.Email == "" {
		return User{}, ValidationError{Field: "email", Message: "email cannot be empty"}
	}
	return c.do(ctx, http.MethodPut, req)
}

func (c *ProfileClient) do(ctx context.Context, method string, body any) (User, error) {
	var payload userResponse
	if err := c.client.sendAndDecode(ctx, method, routes.UserProfile, body, &payload); err != nil {
		return User{}, err
	}
	if payload.User == nil {
		return User{}, fmt.Errorf("sdk: missing user in response")
	}
	return *payload.User, nil
}
