package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bollustrado/mortimmy/internal/api/presenter"
	"github.com/bollustrado/mortimmy/internal/lifecycle"
)

const maxBodyBytes = 1 << 20

// handleCapabilities serves the add-on descriptor.
func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, s.controller.Capabilities(), http.StatusOK)
}

// handleInstall processes the host's installation callback.
func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		logger.Warn().Err(err).Msg("malformed install payload")
		presenter.Error(w, r, "malformed install payload", http.StatusBadRequest)
		return
	}

	if _, err := s.controller.Install(ctx, body); err != nil {
		logger.Warn().Err(err).Msg("installation failed")
		presenter.Err(w, r, err, "installation failed")
		return
	}
	presenter.NoContent(w)
}

// handleUninstall processes the host's uninstall redirect (GET, query parameters)
// or callback (POST, JSON body).
func (s *Server) handleUninstall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	q := r.URL.Query()
	req := lifecycle.UninstallRequest{
		OAuthID:        q.Get("oauth_id"),
		InstallableURL: q.Get("installable_url"),
		RedirectURL:    q.Get("redirect_url"),
	}
	if r.Method == http.MethodPost {
		var body lifecycle.UninstallRequest
		err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body)
		switch {
		case errors.Is(err, io.EOF):
			// empty body, query parameters only
		case err != nil:
			logger.Warn().Err(err).Msg("malformed uninstall payload")
			presenter.Error(w, r, "malformed uninstall payload", http.StatusBadRequest)
			return
		default:
			req = mergeUninstall(req, body)
		}
	}

	redirect, err := s.controller.Uninstall(ctx, req)
	if err != nil {
		logger.Warn().Err(err).Msg("uninstall failed")
		presenter.Err(w, r, err, "uninstall failed")
		return
	}
	if redirect == "" {
		presenter.NoContent(w)
		return
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// mergeUninstall prefers the JSON body over query parameters.
func mergeUninstall(query, body lifecycle.UninstallRequest) lifecycle.UninstallRequest {
	if body.OAuthID != "" {
		query.OAuthID = body.OAuthID
	}
	if body.InstallableURL != "" {
		query.InstallableURL = body.InstallableURL
	}
	if body.RedirectURL != "" {
		query.RedirectURL = body.RedirectURL
	}
	return query
}
