package client

import (
	"context"

	"github.com/bollustrado/mortimmy/internal/api"
	"github.com/bollustrado/mortimmy/internal/core"
)

// ListInstallations retrieves the secret-free view of every installation.
func (c *Client) ListInstallations(ctx context.Context) ([]core.InstallationSummary, string, error) {
	var resp []core.InstallationSummary
	correlation, err := c.get(ctx, c.url().
		setPath(api.ListInstallationsRoute).
		build(), &resp)
	return resp, correlation, err
}

// SendNotification posts a message into a room on behalf of an installation.
func (c *Client) SendNotification(ctx context.Context, req api.NotifyRequest) (string, error) {
	return c.post(ctx, c.url().
		setPath(api.SendNotificationRoute).
		build(), req, nil)
}
