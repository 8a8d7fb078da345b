package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bollustrado/mortimmy/internal/core"
)

const (
	InstallationsFile = "installations.json"
	CredentialsFile   = "credentials.json"
)

var _ core.InstallationStore = (*FileStore)(nil)

// FileStore persists installations and credentials as two JSON documents, each a
// mapping keyed by oauthId. Every mutation rewrites the whole collection through a
// temp file + rename before it returns, so readers of the files never observe a
// partial write.
type FileStore struct {
	mu sync.RWMutex

	installationsPath string
	credentialsPath   string

	// installations and credentials mirror the last durable write.
	installations map[string]core.Installation
	credentials   map[string]core.Credential
}

// NewFileStore opens (or initializes) the collections inside dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory '%s': %w", dir, err)
	}
	s := &FileStore{
		installationsPath: filepath.Join(dir, InstallationsFile),
		credentialsPath:   filepath.Join(dir, CredentialsFile),
	}

	var err error
	if s.installations, err = loadCollection[core.Installation](s.installationsPath); err != nil {
		return nil, err
	}
	if s.credentials, err = loadCollection[core.Credential](s.credentialsPath); err != nil {
		return nil, err
	}

	log.Debug().
		Str("dir", dir).
		Int("installations", len(s.installations)).
		Int("credentials", len(s.credentials)).
		Msg("opened file store")
	return s, nil
}

func (s *FileStore) UpsertInstallation(_ context.Context, inst core.Installation) error {
	if err := validateID(inst.OAuthID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.installations)
	next[inst.OAuthID] = inst.Clone()
	if err := writeCollection(s.installationsPath, next); err != nil {
		return err
	}
	s.installations = next
	return nil
}

func (s *FileStore) DeleteInstallation(_ context.Context, oauthID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.installations[oauthID]; !ok {
		return nil
	}
	next := maps.Clone(s.installations)
	delete(next, oauthID)
	if err := writeCollection(s.installationsPath, next); err != nil {
		return err
	}
	s.installations = next
	return nil
}

func (s *FileStore) GetInstallation(_ context.Context, oauthID string) (*core.Installation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.installations[oauthID]
	if !ok {
		return nil, false, nil
	}
	cpy := inst.Clone()
	return &cpy, true, nil
}

func (s *FileStore) ListInstallations(_ context.Context) ([]core.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedInstallations(s.installations), nil
}

func (s *FileStore) UpsertCredential(_ context.Context, oauthID string, cred core.Credential) error {
	if err := validateID(oauthID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.credentials)
	next[oauthID] = cred.Clone()
	if err := writeCollection(s.credentialsPath, next); err != nil {
		return err
	}
	s.credentials = next
	return nil
}

func (s *FileStore) DeleteCredential(_ context.Context, oauthID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[oauthID]; !ok {
		return nil
	}
	next := maps.Clone(s.credentials)
	delete(next, oauthID)
	if err := writeCollection(s.credentialsPath, next); err != nil {
		return err
	}
	s.credentials = next
	return nil
}

func (s *FileStore) GetCredential(_ context.Context, oauthID string) (*core.Credential, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credentials[oauthID]
	if !ok {
		return nil, false, nil
	}
	cpy := cred.Clone()
	return &cpy, true, nil
}

func (s *FileStore) ListCredentials(_ context.Context) (map[string]core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneCredentials(s.credentials), nil
}

// loadCollection reads a collection file, creating an empty one when it does not
// exist yet. Files written by older versions wrap the mapping in a one element list;
// those are read as well and rewritten flat on the next mutation.
func loadCollection[T any](path string) (map[string]T, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		empty := make(map[string]T)
		if err := writeCollection(path, empty); err != nil {
			return nil, err
		}
		return empty, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading '%s': %w", path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return make(map[string]T), nil
	}

	if data[0] == '[' {
		var legacy []map[string]T
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("decoding '%s': %w", path, err)
		}
		merged := make(map[string]T)
		for _, m := range legacy {
			maps.Copy(merged, m)
		}
		log.Warn().Str("path", path).Msg("read legacy list-encoded collection")
		return merged, nil
	}

	var m map[string]T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding '%s': %w", path, err)
	}
	if m == nil {
		m = make(map[string]T)
	}
	return m, nil
}

// writeCollection atomically replaces path with the JSON encoding of m.
func writeCollection[T any](path string, m map[string]T) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding '%s': %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file for '%s': %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing '%s': %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing '%s': %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing '%s': %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("setting permissions on '%s': %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing '%s': %w", path, err)
	}
	return syncDir(filepath.Dir(path))
}

// syncDir flushes dir so a completed rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening '%s': %w", dir, err)
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return fmt.Errorf("syncing '%s': %w", dir, err)
	}
	return d.Close()
}
