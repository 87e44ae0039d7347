package api

import (
	"context"
	"fmt"
	"net/http"
)

// GetBootstrap fetches the raw app-bootstrap configuration document. The
// shape is deliberately untyped here: the backend may deliver nested groups
// or flattened dotted keys, and internal/config owns the two-stage parse.
func (c *Client) GetBootstrap(ctx context.Context) (map[string]any, error) {
	var raw map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/app/config", nil, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch bootstrap config: %w", err)
	}
	return raw, nil
}
