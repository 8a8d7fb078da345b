package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bollustrado/mortimmy/internal/api"
	"github.com/bollustrado/mortimmy/internal/api/presenter"
	"github.com/bollustrado/mortimmy/internal/core"
)

func TestURLBuilder(t *testing.T) {
	c := New("http://localhost:6666/")

	got := c.url().
		setPath(api.LogsForTaskRoute).
		setPathParam("name", "credential refresh").
		addQueryParam("limit", 5).
		build()
	assert.Equal(t, "http://localhost:6666/v1/admin/tasks/credential%20refresh/logs?limit=5", got)
}

func TestClient_SendsBearerAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t0k3n", r.Header.Get("Authorization"))
		assert.Equal(t, api.ListInstallationsRoute, r.URL.Path)
		w.Header().Set("X-Correlation-ID", "corr-1")
		_ = json.NewEncoder(w).Encode([]core.InstallationSummary{{OAuthID: "abc", RoomID: 42}})
	}))
	defer srv.Close()

	c := New(srv.URL, WithAuthToken("t0k3n"))
	list, correlation, err := c.ListInstallations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "corr-1", correlation)
	require.Len(t, list, 1)
	assert.Equal(t, "abc", list[0].OAuthID)
}

func TestClient_ParsesErrorResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("oauth_id") {
		case "expired":
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(presenter.ErrorResponse{Error: "invalid session token"})
		default:
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(presenter.ErrorResponse{Error: "insufficient privileges", CorrelationID: "c-2"})
		}
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, _, err := c.ListAudits(context.Background(), ListAuditsOpts{OAuthID: "expired"})
	assert.ErrorIs(t, err, ErrInvalidSession)

	_, _, err = c.ListAudits(context.Background(), ListAuditsOpts{OAuthID: "abc"})
	var apiErr APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "c-2", apiErr.CorrelationID)
}

func TestClient_SendNotification(t *testing.T) {
	var got api.NotifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	_, err := New(srv.URL).SendNotification(context.Background(), api.NotifyRequest{OAuthID: "abc", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "abc", got.OAuthID)
	assert.Equal(t, "hi", got.Message)
}
