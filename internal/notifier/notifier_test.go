package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/hipchat"
	"github.com/bollustrado/mortimmy/internal/store"
)

func seed(t *testing.T, apiURL string, withCredential bool) core.InstallationStore {
	t.Helper()
	ctx := context.Background()
	s := store.NewInMemoryStore()
	require.NoError(t, s.UpsertInstallation(ctx, core.Installation{
		OAuthID:     "abc",
		OAuthSecret: "s3cr3t",
		APIURL:      apiURL,
		RoomID:      7,
	}))
	if withCredential {
		require.NoError(t, s.UpsertCredential(ctx, "abc", core.Credential{
			AccessToken: "token-1",
			ExpiresAt:   time.Now().Add(time.Hour),
			IssuedAt:    time.Now(),
		}))
	}
	return s
}

func TestNotifier_SendMessage(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/room/42/notification", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := seed(t, srv.URL+"/v2/", true)
	before, err := s.ListCredentials(context.Background())
	require.NoError(t, err)

	n := New(s, hipchat.New())
	require.NoError(t, n.SendMessage(context.Background(), "abc", 42, "hello", false))

	want := map[string]any{
		"message":        "hello",
		"notify":         false,
		"color":          "gray",
		"message_format": "text",
	}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}

	after, err := s.ListCredentials(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("store was modified (-before +after):\n%s", diff)
	}
}

func TestNotifier_DefaultsToInstallationRoom(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(seed(t, srv.URL+"/v2/", true), hipchat.New())
	require.NoError(t, n.SendMessage(context.Background(), "abc", 0, "<b>hi</b>", true))
	assert.Equal(t, "/v2/room/7/notification", path)
}

func TestNotifier_FailsWithoutContactingHost(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	t.Run("not installed", func(t *testing.T) {
		n := New(seed(t, srv.URL+"/v2/", true), hipchat.New())
		assert.ErrorIs(t, n.SendMessage(context.Background(), "unknown", 42, "hi", false), ErrNotInstalled)
	})
	t.Run("no credential", func(t *testing.T) {
		n := New(seed(t, srv.URL+"/v2/", false), hipchat.New())
		assert.ErrorIs(t, n.SendMessage(context.Background(), "abc", 42, "hi", false), ErrNoCredential)
	})

	assert.Zero(t, hits.Load())
}

func TestNotifier_HostRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := New(seed(t, srv.URL+"/v2/", true), hipchat.New())
	err := n.SendMessage(context.Background(), "abc", 42, "hi", false)

	var upstream *hipchat.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusForbidden, upstream.StatusCode)
}
