package modules

import (
	"context"
	"net/http"

	"github.com/bollustrado/mortimmy/internal/core"
)

// Request is one authenticated webhook delivery.
type Request struct {
	Webhook  core.Webhook
	Delivery Delivery

	// Installation is the sender's installation, nil when the webhook is
	// unauthenticated and the oauth_client_id is unknown.
	Installation *core.Installation
}

// Response is written back to the host verbatim. A zero Status means 204.
type Response struct {
	Status int
	Body   any
}

func (r Response) StatusCode() int {
	if r.Status == 0 {
		if r.Body == nil {
			return http.StatusNoContent
		}
		return http.StatusOK
	}
	return r.Status
}

type Handler interface {
	Handle(ctx context.Context, req *Request) (Response, error)
}

type HandlerFunc func(ctx context.Context, req *Request) (Response, error)

func (f HandlerFunc) Handle(ctx context.Context, req *Request) (Response, error) {
	return f(ctx, req)
}
