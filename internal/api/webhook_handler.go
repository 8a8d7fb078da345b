package api

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bollustrado/mortimmy/internal/api/presenter"
	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/metrics"
	"github.com/bollustrado/mortimmy/internal/modules"
)

// handleWebhook dispatches an event delivery to the webhook named by the path.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := r.PathValue("name")

	resp, err := s.registry.Dispatch(ctx, name, r)
	if err != nil {
		status := http.StatusBadRequest
		var httpErr core.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.StatusCode
		}
		if errors.Is(err, modules.ErrUnknownWebhook) {
			metrics.IncWebhookDelivery("(unknown)", status)
		} else {
			metrics.IncWebhookDelivery(name, status)
		}
		log.Ctx(ctx).Warn().Err(err).Str("webhook", name).Msg("webhook delivery failed")
		presenter.Err(w, r, err, "webhook delivery failed")
		return
	}

	status := resp.StatusCode()
	metrics.IncWebhookDelivery(name, status)
	if resp.Body == nil {
		w.WriteHeader(status)
		return
	}
	presenter.JSON(w, r, resp.Body, status)
}

// handleGlance answers the host's glance query.
func (s *Server) handleGlance(w http.ResponseWriter, r *http.Request) {
	data, ok := s.registry.GlanceData(r.PathValue("key"))
	if !ok {
		presenter.Error(w, r, "unknown glance", http.StatusNotFound)
		return
	}
	presenter.JSON(w, r, data, http.StatusOK)
}
