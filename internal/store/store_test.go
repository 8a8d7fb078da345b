package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bollustrado/mortimmy/internal/core"
)

func newStores(t *testing.T) map[string]func() core.InstallationStore {
	return map[string]func() core.InstallationStore{
		"memory": func() core.InstallationStore {
			return NewInMemoryStore()
		},
		"file": func() core.InstallationStore {
			s, err := NewFileStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
	}
}

func sampleInstallation(id string) core.Installation {
	return core.Installation{
		OAuthID:         id,
		OAuthSecret:     "s3cr3t",
		CapabilitiesURL: "https://host/cap",
		RoomID:          3441596,
		GroupID:         42,
		TokenURL:        "https://host/token",
		APIURL:          "https://host/api/",
		InstalledAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Metadata:        map[string]any{"note": "hello"},
	}
}

func TestStore_InstallationRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, mk := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()
			want := sampleInstallation("abc")
			require.NoError(t, s.UpsertInstallation(ctx, want))

			got, ok, err := s.GetInstallation(ctx, "abc")
			require.NoError(t, err)
			require.True(t, ok)
			if diff := cmp.Diff(want, *got); diff != "" {
				t.Errorf("GetInstallation() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, mk := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()
			first := sampleInstallation("abc")
			require.NoError(t, s.UpsertInstallation(ctx, first))

			second := first
			second.APIURL = "https://other/api/"
			require.NoError(t, s.UpsertInstallation(ctx, second))

			got, ok, err := s.GetInstallation(ctx, "abc")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "https://other/api/", got.APIURL)

			list, err := s.ListInstallations(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestStore_DeleteMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	for name, mk := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()
			assert.NoError(t, s.DeleteInstallation(ctx, "missing"))
			assert.NoError(t, s.DeleteCredential(ctx, "missing"))

			_, ok, err := s.GetInstallation(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = s.GetCredential(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_CredentialLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, mk := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()
			cred := core.Credential{
				AccessToken: "token-1",
				ExpiresAt:   time.Date(2026, 1, 2, 4, 0, 0, 0, time.UTC),
				IssuedAt:    time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC),
				Claims:      map[string]any{"scope": "send_notification"},
			}
			require.NoError(t, s.UpsertCredential(ctx, "abc", cred))

			all, err := s.ListCredentials(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(map[string]core.Credential{"abc": cred}, all); diff != "" {
				t.Errorf("ListCredentials() mismatch (-want +got):\n%s", diff)
			}

			require.NoError(t, s.DeleteCredential(ctx, "abc"))
			_, ok, err := s.GetCredential(ctx, "abc")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	for name, mk := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()
			require.NoError(t, s.UpsertInstallation(ctx, sampleInstallation("abc")))

			list, err := s.ListInstallations(ctx)
			require.NoError(t, err)
			list[0].Metadata["note"] = "changed"

			require.NoError(t, s.UpsertInstallation(ctx, sampleInstallation("def")))
			assert.Len(t, list, 1)

			got, _, err := s.GetInstallation(ctx, "abc")
			require.NoError(t, err)
			assert.Equal(t, "hello", got.Metadata["note"])
		})
	}
}

func TestStore_ConcurrentUpsertsKeepAllRecords(t *testing.T) {
	ctx := context.Background()
	for name, mk := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()
			const n = 32

			var wg sync.WaitGroup
			for i := range n {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, s.UpsertInstallation(ctx, sampleInstallation(fmt.Sprintf("tenant-%02d", i))))
				}()
			}
			wg.Wait()

			list, err := s.ListInstallations(ctx)
			require.NoError(t, err)
			assert.Len(t, list, n)
		})
	}
}

func TestStore_RejectsEmptyID(t *testing.T) {
	ctx := context.Background()
	for name, mk := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			s := mk()
			assert.ErrorIs(t, s.UpsertInstallation(ctx, core.Installation{}), ErrEmptyID)
			assert.ErrorIs(t, s.UpsertCredential(ctx, " ", core.Credential{}), ErrEmptyID)
		})
	}
}

func TestFileStore_InitializesMissingFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	_, err := NewFileStore(dir)
	require.NoError(t, err)

	for _, name := range []string{InstallationsFile, CredentialsFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(data))
	}
}

func TestFileStore_Reopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.UpsertInstallation(ctx, sampleInstallation("abc")))
	require.NoError(t, s.UpsertInstallation(ctx, sampleInstallation("def")))
	require.NoError(t, s.DeleteInstallation(ctx, "def"))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	list, err := reopened.ListInstallations(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff([]core.Installation{sampleInstallation("abc")}, list); diff != "" {
		t.Errorf("reopened store mismatch (-want +got):\n%s", diff)
	}

	// no temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileStore_WriteCollection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, CredentialsFile)

	want := map[string]core.Credential{"abc": {AccessToken: "t", Claims: map[string]any{"scope": "send_notification"}}}
	require.NoError(t, writeCollection(path, want))

	got, err := loadCollection[core.Credential](path)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("written collection mismatch (-want +got):\n%s", diff)
	}

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	assert.Error(t, syncDir(filepath.Join(dir, "missing")))
}

func TestFileStore_ReadsLegacyListEncoding(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	legacy := `[{"abc": {"oauthId": "abc", "oauthSecret": "s", "tokenUrl": "https://host/token", "apiUrl": "https://host/api/"}}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, InstallationsFile), []byte(legacy), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, CredentialsFile), []byte(`[{}]`), 0600))

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	got, ok, err := s.GetInstallation(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://host/token", got.TokenURL)

	creds, err := s.ListCredentials(ctx)
	require.NoError(t, err)
	assert.Empty(t, creds)
}
