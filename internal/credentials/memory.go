package credentials

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory credential store for tests and early development.
// It holds plaintext tokens and must not be used in production.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: map[string]Credential{}}
}

func (s *MemoryStore) Get(ctx context.Context, tenantID string) (Credential, error) {
	if tenantID == "" {
		return Credential{}, ErrInvalidArgument
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[tenantID]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

func (s *MemoryStore) Put(ctx context.Context, tenantID string, cred Credential) error {
	if tenantID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[tenantID] = cred
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, tenantID string) error {
	if tenantID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, tenantID)
	return nil
}
