package store

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/bollustrado/mortimmy/internal/core"
)

var _ core.InstallationStore = (*InMemoryStore)(nil)

// InMemoryStore keeps installations and credentials in memory only.
type InMemoryStore struct {
	mu            sync.RWMutex
	installations map[string]core.Installation
	credentials   map[string]core.Credential
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		installations: make(map[string]core.Installation),
		credentials:   make(map[string]core.Credential),
	}
}

func (s *InMemoryStore) UpsertInstallation(_ context.Context, inst core.Installation) error {
	if err := validateID(inst.OAuthID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.installations[inst.OAuthID] = inst.Clone()
	return nil
}

func (s *InMemoryStore) DeleteInstallation(_ context.Context, oauthID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.installations, oauthID)
	return nil
}

func (s *InMemoryStore) GetInstallation(_ context.Context, oauthID string) (*core.Installation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.installations[oauthID]
	if !ok {
		return nil, false, nil
	}
	cpy := inst.Clone()
	return &cpy, true, nil
}

func (s *InMemoryStore) ListInstallations(_ context.Context) ([]core.Installation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return sortedInstallations(s.installations), nil
}

func (s *InMemoryStore) UpsertCredential(_ context.Context, oauthID string, cred core.Credential) error {
	if err := validateID(oauthID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials[oauthID] = cred.Clone()
	return nil
}

func (s *InMemoryStore) DeleteCredential(_ context.Context, oauthID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.credentials, oauthID)
	return nil
}

func (s *InMemoryStore) GetCredential(_ context.Context, oauthID string) (*core.Credential, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credentials[oauthID]
	if !ok {
		return nil, false, nil
	}
	cpy := cred.Clone()
	return &cpy, true, nil
}

func (s *InMemoryStore) ListCredentials(_ context.Context) (map[string]core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneCredentials(s.credentials), nil
}

func validateID(oauthID string) error {
	if strings.TrimSpace(oauthID) == "" {
		return ErrEmptyID
	}
	return nil
}

func sortedInstallations(m map[string]core.Installation) []core.Installation {
	keys := slices.Sorted(maps.Keys(m))
	list := make([]core.Installation, 0, len(keys))
	for _, k := range keys {
		list = append(list, m[k].Clone())
	}
	return list
}

func cloneCredentials(m map[string]core.Credential) map[string]core.Credential {
	cpy := make(map[string]core.Credential, len(m))
	for k, v := range m {
		cpy[k] = v.Clone()
	}
	return cpy
}
