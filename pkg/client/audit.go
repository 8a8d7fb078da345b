package client

import (
	"context"

	"github.com/bollustrado/mortimmy/internal/api"
	"github.com/bollustrado/mortimmy/internal/core"
)

type ListAuditsOpts struct {
	Limit uint

	CorrelationID string
	OAuthID       string
	Action        string
}

// ListAudits retrieves the latest audit entries from the server, limited to the specified number.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.ListAuditsRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.CorrelationID != "" {
		ub = ub.addQueryParam("correlation_id", opts.CorrelationID)
	}
	if opts.OAuthID != "" {
		ub = ub.addQueryParam("oauth_id", opts.OAuthID)
	}
	if opts.Action != "" {
		ub = ub.addQueryParam("action", opts.Action)
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}
