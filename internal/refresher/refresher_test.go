package refresher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bollustrado/mortimmy/internal/audit"
	"github.com/bollustrado/mortimmy/internal/core"
	"github.com/bollustrado/mortimmy/internal/hipchat"
	"github.com/bollustrado/mortimmy/internal/logging"
	"github.com/bollustrado/mortimmy/internal/store"
)

var testLogger = logging.NewZLogger(zerolog.Nop())

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

type fetcherFunc func(ctx context.Context, inst core.Installation) (*hipchat.Token, error)

func (f fetcherFunc) FetchToken(ctx context.Context, inst core.Installation) (*hipchat.Token, error) {
	return f(ctx, inst)
}

func install(t *testing.T, s core.InstallationStore, id, tokenURL string, installedAt time.Time) core.Installation {
	t.Helper()
	inst := core.Installation{
		OAuthID:     id,
		OAuthSecret: "s3cr3t",
		TokenURL:    tokenURL,
		APIURL:      "https://host/v2/",
		InstalledAt: installedAt,
	}
	require.NoError(t, s.UpsertInstallation(context.Background(), inst))
	return inst
}

func TestRefresher_AcquiresMissingCredentialOnce(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-1",
			"expires_in":   3600,
			"scope":        "send_notification",
		})
	}))
	defer srv.Close()

	ctx := context.Background()
	s := store.NewInMemoryStore()
	clk := &clock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	install(t, s, "abc", srv.URL, clk.t)

	r := New(s, hipchat.New(), nil, time.Minute, WithClock(clk.now))
	require.NoError(t, r.Run(ctx, testLogger))
	assert.EqualValues(t, 1, calls.Load())

	cred, ok, err := s.GetCredential(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "token-1", cred.AccessToken)
	assert.Equal(t, clk.t.Add(3600*time.Second-time.Minute), cred.ExpiresAt)
	assert.Equal(t, "send_notification", cred.Claims["scope"])

	// still valid, nothing to do
	clk.t = clk.t.Add(30 * time.Minute)
	require.NoError(t, r.Run(ctx, testLogger))
	assert.EqualValues(t, 1, calls.Load())

	// within the margin of the stored expiry
	clk.t = cred.ExpiresAt.Add(-time.Minute)
	require.NoError(t, r.Run(ctx, testLogger))
	assert.EqualValues(t, 2, calls.Load())
}

func TestRefresher_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	install(t, s, "broken", "https://broken/token", now)
	install(t, s, "healthy", "https://healthy/token", now)

	fetcher := fetcherFunc(func(ctx context.Context, inst core.Installation) (*hipchat.Token, error) {
		if inst.OAuthID == "broken" {
			return nil, &hipchat.UpstreamError{Op: "token exchange", URL: inst.TokenURL, StatusCode: 503}
		}
		return &hipchat.Token{AccessToken: "ok", ExpiresIn: time.Hour}, nil
	})

	r := New(s, fetcher, nil, time.Minute, WithClock(func() time.Time { return now }))
	err := r.Run(ctx, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.NotContains(t, err.Error(), "healthy")

	_, ok, err := s.GetCredential(ctx, "healthy")
	require.NoError(t, err)
	assert.True(t, ok)

	// transient failures don't disable
	assert.Empty(t, r.Disabled())
}

func TestRefresher_InvalidResponseDisablesInstallation(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	auditor := audit.NewInMemoryAuditor(0)
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	install(t, s, "abc", "https://host/token", now)

	var calls atomic.Int32
	fetcher := fetcherFunc(func(ctx context.Context, inst core.Installation) (*hipchat.Token, error) {
		calls.Add(1)
		return nil, fmt.Errorf("%w: missing expires_in", hipchat.ErrInvalidTokenResponse)
	})

	r := New(s, fetcher, auditor, time.Minute, WithClock(func() time.Time { return now }))
	err := r.Run(ctx, testLogger)
	assert.ErrorIs(t, err, hipchat.ErrInvalidTokenResponse)
	assert.Contains(t, r.Disabled(), "abc")

	// skipped while disabled
	require.NoError(t, r.Run(ctx, testLogger))
	assert.EqualValues(t, 1, calls.Load())

	disables, err := auditor.Find(func(e core.AuditEntry) bool {
		return e.Action == core.ActionInstallationDisable
	}, 10)
	require.NoError(t, err)
	require.Len(t, disables, 1)
	assert.Equal(t, "abc", disables[0].OAuthID)

	// a new install lifts the block
	install(t, s, "abc", "https://host/token", now.Add(time.Hour))
	assert.Error(t, r.Run(ctx, testLogger))
	assert.EqualValues(t, 2, calls.Load())
}

func TestRefresher_DoesNotPersistForRemovedInstallation(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	inst := install(t, s, "abc", "https://host/token", now)

	fetcher := fetcherFunc(func(ctx context.Context, inst core.Installation) (*hipchat.Token, error) {
		require.NoError(t, s.DeleteInstallation(ctx, inst.OAuthID))
		return &hipchat.Token{AccessToken: "late", ExpiresIn: time.Hour}, nil
	})

	r := New(s, fetcher, nil, time.Minute, WithClock(func() time.Time { return now }))
	_, err := r.Acquire(ctx, inst)
	assert.True(t, errors.Is(err, ErrUninstalled))

	_, ok, err := s.GetCredential(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefresher_RunDeletesOrphanedCredentials(t *testing.T) {
	ctx := context.Background()
	s := store.NewInMemoryStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	install(t, s, "abc", "https://host/token", now)

	valid := core.Credential{AccessToken: "fresh", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, s.UpsertCredential(ctx, "abc", valid))
	require.NoError(t, s.UpsertCredential(ctx, "gone", valid))

	fetcher := fetcherFunc(func(ctx context.Context, inst core.Installation) (*hipchat.Token, error) {
		t.Fatal("no fetch expected for a fresh credential")
		return nil, nil
	})

	r := New(s, fetcher, nil, time.Minute, WithClock(func() time.Time { return now }))
	require.NoError(t, r.Run(ctx, testLogger))

	creds, err := s.ListCredentials(ctx)
	require.NoError(t, err)
	assert.Contains(t, creds, "abc")
	assert.NotContains(t, creds, "gone")
}

func TestRefresher_StopsOnCancelledContext(t *testing.T) {
	s := store.NewInMemoryStore()
	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	install(t, s, "abc", "https://host/token", now)

	fetcher := fetcherFunc(func(ctx context.Context, inst core.Installation) (*hipchat.Token, error) {
		t.Fatal("no fetch expected after cancellation")
		return nil, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(s, fetcher, nil, time.Minute, WithClock(func() time.Time { return now }))
	assert.ErrorIs(t, r.Run(ctx, testLogger), context.Canceled)
}
