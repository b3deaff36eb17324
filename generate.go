package sdk

import (
	"context"
	"net/http"
	"strings"

	"github.com/globalassist/globalassist/sdk/go/routes"
)

// Generate asks the backend to generate code for prompt with the given model.
// An empty model selects DefaultModelID. Premium models answer 403 with
// upgrade_required for free accounts; see IsUpgradeRequired.
func (c *AIClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if err := c.ensureInitialized(); err != nil {
		return GenerateResult{}, err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return GenerateResult{}, ValidationError{Field: "prompt", Message: "prompt required"}
	}
	if req.Model == "" {
		req.Model = DefaultModelID
	}
	var out GenerateResult
	if err := c.client.sendAndDecode(ctx, http.MethodPost, routes.AIGenerate, req, &out); err != nil {
		return GenerateResult{}, err
	}
	return out, nil
}

// Explain asks the backend to explain a code snippet.
func (c *AIClient) Explain(ctx context.Context, req ExplainRequest) (ExplainResult, error) {
	if err := c.ensureInitialized(); err != nil {
		return ExplainResult{}, err
	}
	if strings.TrimSpace(req.Code) == "" {
		return ExplainResult{}, ValidationError{Field: "code", Message: "code required"}
	}
	if req.Model == "" {
		req.Model = DefaultModelID
	}
	var out ExplainResult
	if err := c.client.sendAndDecode(ctx, http.MethodPost, routes.AIExplain, req, &out); err != nil {
		return ExplainResult{}, err
	}
	return out, nil
}
