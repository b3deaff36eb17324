package sdk

import (
	"context"
	"net/http"

	"github.com/globalassist/globalassist/sdk/go/routes"
)

// AIClient wraps the model catalog and generation endpoints.
type AIClient struct {
	client *Client
}

func (c *AIClient) ensureInitialized() error {
	if c == nil || c.client == nil {
		return ConfigError{Reason: "ai client not initialized"}
	}
	return nil
}

// Models returns the models offered to the client.
// The underlying endpoint is public (no auth required).
func (c *AIClient) Models(ctx context.Context) ([]Model, error) {
	if err := c.ensureInitialized(); err != nil {
		return nil, err
	}
	var payload modelsResponse
	if err := c.client.sendAndDecode(ctx, http.MethodGet, routes.AIModels, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Models == nil {
		return []Model{}, nil
	}
	return payload.Models, nil
}

// FindModel returns the model with the given id.
func FindModel(models []Model, id string) (Model, bool) {
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}
