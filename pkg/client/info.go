package client

import (
	"context"

	"github.com/bollustrado/mortimmy/internal/api"
	"github.com/bollustrado/mortimmy/internal/buildinfo"
	"github.com/bollustrado/mortimmy/internal/core"
)

func (c *Client) Info(ctx context.Context) (*buildinfo.Info, string, error) {
	var info buildinfo.Info
	correlation, err := c.get(ctx, c.url().
		setPath(api.AboutRoute).
		build(), &info)
	return &info, correlation, err
}

// Capabilities fetches the descriptor the server advertises to the host.
func (c *Client) Capabilities(ctx context.Context) (*core.Descriptor, string, error) {
	var desc core.Descriptor
	correlation, err := c.get(ctx, c.url().
		setPath(api.CapabilitiesRoute).
		build(), &desc)
	return &desc, correlation, err
}
