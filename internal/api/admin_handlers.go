package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bollustrado/mortimmy/internal/api/presenter"
	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/hipchat"
	"github.com/bollustrado/mortimmy/internal/notifier"
)

// handleAdminInstallations lists installations without their secrets.
func (s *Server) handleAdminInstallations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	installations, err := s.store.ListInstallations(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list installations")
		presenter.Error(w, r, "failed to list installations", http.StatusInternalServerError)
		return
	}
	credentials, err := s.store.ListCredentials(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list credentials")
		presenter.Error(w, r, "failed to list credentials", http.StatusInternalServerError)
		return
	}

	var disabled map[string]string
	if s.disabled != nil {
		disabled = s.disabled.Disabled()
	}

	summaries := make([]core.InstallationSummary, 0, len(installations))
	for _, inst := range installations {
		summary := inst.Summary()
		if cred, ok := credentials[inst.OAuthID]; ok {
			summary.HasCredential = true
			summary.CredentialExpiresAt = cred.ExpiresAt
		}
		if reason, ok := disabled[inst.OAuthID]; ok {
			summary.Disabled = true
			summary.DisabledReason = reason
		}
		summaries = append(summaries, summary)
	}

	presenter.JSON(w, r, summaries, http.StatusOK)
}

// NotifyRequest is the body of POST /v1/admin/notify.
type NotifyRequest struct {
	OAuthID string `json:"oauthId"`
	RoomID  int64  `json:"roomId"`
	Message string `json:"message"`
	HTML    bool   `json:"html"`
	Color   string `json:"color,omitempty"`
	Notify  bool   `json:"notify,omitempty"`
}

// handleAdminNotify sends a room notification on behalf of an installation.
func (s *Server) handleAdminNotify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var req NotifyRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		presenter.Error(w, r, "malformed request", http.StatusBadRequest)
		return
	}
	if req.OAuthID == "" || req.Message == "" {
		presenter.Error(w, r, "oauthId and message are required", http.StatusBadRequest)
		return
	}

	n := hipchat.NewNotification(req.Message, req.HTML)
	n.Notify = req.Notify
	if req.Color != "" {
		n.Color = req.Color
	}

	if err := s.notifier.Send(ctx, req.OAuthID, req.RoomID, n); err != nil {
		logger.Warn().Err(err).Str("oauth_id", req.OAuthID).Msg("admin notification failed")
		presenter.Error(w, r, err.Error(), notifyErrorStatus(err))
		return
	}
	presenter.NoContent(w)
}

func notifyErrorStatus(err error) int {
	var upstream *hipchat.UpstreamError
	switch {
	case errors.Is(err, notifier.ErrNotInstalled):
		return http.StatusNotFound
	case errors.Is(err, notifier.ErrNoCredential):
		return http.StatusConflict
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
