package accounts

import (
	"context"
	"sync"
	"time"

	"fieldlink/internal/normalize"
)

// Memory implementations for tests and early development.
// They enforce tenant isolation on reads like the real stores.

type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]VendorAccount
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: map[string]VendorAccount{}}
}

func (s *MemoryStore) Get(ctx context.Context, tenantID string) (VendorAccount, error) {
	if tenantID == "" {
		return VendorAccount{}, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[tenantID]
	if !ok {
		return VendorAccount{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) Put(ctx context.Context, account VendorAccount) error {
	if account.TenantID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account.UpdatedAt = time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = account.UpdatedAt
	}
	s.accounts[account.TenantID] = account
	return nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, tenantID string, status AccountStatus) error {
	if tenantID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[tenantID]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	s.accounts[tenantID] = a
	return nil
}

func (s *MemoryStore) MarkSynced(ctx context.Context, tenantID string, at time.Time) error {
	if tenantID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[tenantID]
	if !ok {
		return ErrNotFound
	}
	t := at.UTC()
	a.LastSyncAt = &t
	a.UpdatedAt = time.Now().UTC()
	s.accounts[tenantID] = a
	return nil
}

// MemorySeenIndex tracks ingested vendor ids per (tenant, kind).
type MemorySeenIndex struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemorySeenIndex() *MemorySeenIndex {
	return &MemorySeenIndex{seen: map[string]struct{}{}}
}

func (s *MemorySeenIndex) Mark(ctx context.Context, tenantID, kind string, vendorIDs []string) ([]bool, error) {
	if tenantID == "" || kind == "" {
		return nil, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bool, len(vendorIDs))
	for i, id := range vendorIDs {
		key := tenantID + "|" + kind + "|" + id
		if _, ok := s.seen[key]; !ok {
			s.seen[key] = struct{}{}
			out[i] = true
		}
	}
	return out, nil
}

// MemoryRecordStore keeps normalized records in memory.
type MemoryRecordStore struct {
	mu       sync.Mutex
	calls    []normalize.CallRecord
	messages []normalize.MessageRecord
}

func NewMemoryRecordStore() *MemoryRecordStore { return &MemoryRecordStore{} }

func (s *MemoryRecordStore) AppendCall(ctx context.Context, rec normalize.CallRecord) error {
	if rec.TenantID == "" || rec.VendorID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c.TenantID == rec.TenantID && c.VendorID == rec.VendorID {
			return nil // duplicate append is a no-op
		}
	}
	s.calls = append(s.calls, rec)
	return nil
}

func (s *MemoryRecordStore) AppendMessage(ctx context.Context, rec normalize.MessageRecord) error {
	if rec.TenantID == "" || rec.VendorID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.TenantID == rec.TenantID && m.VendorID == rec.VendorID {
			return nil
		}
	}
	s.messages = append(s.messages, rec)
	return nil
}

func (s *MemoryRecordStore) ListCalls(ctx context.Context, tenantID string, from, to time.Time) ([]normalize.CallRecord, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]normalize.CallRecord, 0)
	for _, c := range s.calls {
		if c.TenantID != tenantID {
			continue
		}
		if inWindow(c.StartedAt, from, to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryRecordStore) ListMessages(ctx context.Context, tenantID string, from, to time.Time) ([]normalize.MessageRecord, error) {
	if tenantID == "" {
		return nil, ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]normalize.MessageRecord, 0)
	for _, m := range s.messages {
		if m.TenantID != tenantID {
			continue
		}
		if inWindow(m.CreatedAt, from, to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func inWindow(at, from, to time.Time) bool {
	if at.IsZero() || (from.IsZero() && to.IsZero()) {
		return true
	}
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && !at.Before(to) {
		return false
	}
	return true
}
