package modules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/expr-lang/expr"
	"github.com/rs/zerolog/log"

	"github.com/bollustrado/mortimmy/internal/core"
)

const maxDeliveryBytes = 1 << 20

var ErrUnknownWebhook = errors.New("unknown webhook")

// Dispatch authenticates and decodes a delivery for the webhook name and invokes its
// handler. Errors are core.HTTPError values carrying the status to answer with.
func (r *Registry) Dispatch(ctx context.Context, name string, req *http.Request) (Response, error) {
	r.mu.RLock()
	hook, ok := r.webhooks[name]
	r.mu.RUnlock()
	if !ok {
		return Response{}, core.NewHTTPError(http.StatusNotFound, ErrUnknownWebhook)
	}

	logger := log.Ctx(ctx).With().Str("webhook", name).Logger()

	body, err := io.ReadAll(io.LimitReader(req.Body, maxDeliveryBytes))
	if err != nil {
		return Response{}, core.HTTPErrorf(http.StatusBadRequest, "reading payload: %w", err)
	}
	var delivery Delivery
	if err := json.Unmarshal(body, &delivery); err != nil {
		return Response{}, core.HTTPErrorf(http.StatusBadRequest, "malformed payload: %w", err)
	}
	if delivery.Event != "" && delivery.Event != hook.Event {
		return Response{}, core.HTTPErrorf(http.StatusBadRequest,
			"webhook '%s' subscribes to '%s', got '%s'", name, hook.Event, delivery.Event)
	}

	var inst *core.Installation
	switch hook.Authentication {
	case core.AuthJWT:
		inst, err = r.verifySignedRequest(ctx, req)
		if err != nil {
			logger.Warn().Err(err).Msg("rejecting unauthenticated delivery")
			return Response{}, core.NewHTTPError(http.StatusUnauthorized, err)
		}
		if delivery.OAuthClientID != "" && delivery.OAuthClientID != inst.OAuthID {
			return Response{}, core.NewHTTPError(http.StatusUnauthorized, ErrInstallationMatch)
		}
	default:
		if delivery.OAuthClientID != "" {
			found, ok, err := r.installations.GetInstallation(ctx, delivery.OAuthClientID)
			if err != nil {
				return Response{}, core.NewHTTPError(http.StatusInternalServerError, err)
			}
			if ok {
				inst = found
			}
		}
	}

	if hook.when != nil {
		out, err := expr.Run(hook.when, conditionEnv(delivery, name))
		if err != nil {
			logger.Warn().Err(err).Str("condition", hook.whenSource).Msg("error evaluating webhook condition")
			return Response{Status: http.StatusNoContent}, nil
		}
		if matched, _ := out.(bool); !matched {
			logger.Debug().Str("condition", hook.whenSource).Msg("condition not met, skipping handler")
			return Response{Status: http.StatusNoContent}, nil
		}
	}

	resp, err := hook.handler.Handle(ctx, &Request{
		Webhook:      hook.Webhook,
		Delivery:     delivery,
		Installation: inst,
	})
	if err != nil {
		var httpErr core.HTTPError
		if errors.As(err, &httpErr) {
			return Response{}, err
		}
		return Response{}, core.NewHTTPError(http.StatusInternalServerError, fmt.Errorf("webhook handler: %w", err))
	}
	return resp, nil
}

// GlanceData is the body answering a glance query.
type GlanceData struct {
	Label GlanceLabel `json:"label"`
}

type GlanceLabel struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (r *Registry) GlanceData(key string) (GlanceData, bool) {
	g, ok := r.Glance(key)
	if !ok {
		return GlanceData{}, false
	}
	return GlanceData{Label: GlanceLabel{Type: "html", Value: g.Label}}, true
}
