package sdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/globalassist/globalassist/sdk/go/routes"
)

// HistoryType selects which history entries to list or clear.
type HistoryType string

const (
	HistoryAll      HistoryType = "all"
	HistoryChat     HistoryType = "chat"
	HistoryCode     HistoryType = "code"
	HistoryProject  HistoryType = "project"
	HistoryArtifact HistoryType = "artifact"
)

// ParseHistoryType validates a history type taken from a path segment.
func ParseHistoryType(val string) (HistoryType, error) {
	switch t := HistoryType(val); t {
	case HistoryAll, HistoryChat, HistoryCode, HistoryProject, HistoryArtifact:
		return t, nil
	case "":
		return HistoryAll, nil
	default:
		return "", ValidationError{Field: "type", Message: fmt.Sprintf("unknown history type %q", val)}
	}
}

// Title is the heading used when listing entries of this type.
func (t HistoryType) Title() string {
	switch t {
	case HistoryChat:
		return "Chats"
	case HistoryProject:
		return "Projects"
	case HistoryArtifact:
		return "Artifacts"
	default:
		return "Code"
	}
}

// HistoryItem is a stored generation.
type HistoryItem struct {
	ID        int64       `json:"id"`
	Type      HistoryType `json:"type"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	ModelUsed string      `json:"model_used,omitempty"`
	CreatedAt string      `json:"created_at"`
}

// HistoryPage is one page of GET /history/{type}.
type HistoryPage struct {
	History []HistoryItem `json:"history"`
	Total   int           `json:"total"`
}

// HistoryListParams configures pagination. Zero values use page 1 and 20 per page.
type HistoryListParams struct {
	Page    int
	PerPage int
}

// HistoryClient manages the caller's generation history. All endpoints
// require an authenticated user.
type HistoryClient struct {
	client *Client
}

func (c *HistoryClient) ensureInitialized() error {
	if c == nil || c.client == nil {
		return ConfigError{Reason: "history client not initialized"}
	}
	return nil
}

// List returns one page of history entries of the given type.
func (c *HistoryClient) List(ctx context.Context, typ HistoryType, params *HistoryListParams) (HistoryPage, error) {
	if err := c.ensureInitialized(); err != nil {
		return HistoryPage{}, err
	}
	if typ == "" {
		typ = HistoryAll
	}
	page, perPage := 1, 20
	if params != nil {
		if params.Page > 0 {
			page = params.Page
		}
		if params.PerPage > 0 {
			perPage = params.PerPage
		}
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	path := fmt.Sprintf("%s/%s?%s", routes.History, url.PathEscape(string(typ)), q.Encode())

	var out HistoryPage
	if err := c.client.sendAndDecode(ctx, http.MethodGet, path, nil, &out); err != nil {
		return HistoryPage{}, err
	}
	if out.History == nil {
		out.History = []HistoryItem{}
	}
	return out, nil
}

// Get returns a single history entry.
func (c *HistoryClient) Get(ctx context.Context, id int64) (HistoryItem, error) {
	if err := c.ensureInitialized(); err != nil {
		return HistoryItem{}, err
	}
	if id <= 0 {
		return HistoryItem{}, ValidationError{Field: "id", Message: "history id required"}
	}
	var payload struct {
		History HistoryItem `json:"history"`
	}
	if err := c.client.sendAndDecode(ctx, http.MethodGet, fmt.Sprintf("%s/%d", routes.History, id), nil, &payload); err != nil {
		return HistoryItem{}, err
	}
	return payload.History, nil
}

// Delete removes a single history entry.
func (c *HistoryClient) Delete(ctx context.Context, id int64) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if id <= 0 {
		return ValidationError{Field: "id", Message: "history id required"}
	}
	return c.client.sendAndDecode(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", routes.History, id), nil, nil)
}

// Clear removes every history entry of the given type.
func (c *HistoryClient) Clear(ctx context.Context, typ HistoryType) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}
	if typ == "" {
		typ = HistoryAll
	}
	return c.client.sendAndDecode(ctx, http.MethodDelete, fmt.Sprintf("%s/%s", routes.HistoryClear, url.PathEscape(string(typ))), nil, nil)
}
