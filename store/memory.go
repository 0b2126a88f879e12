package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"reportvoice/core"
)

// MemoryStore is a ReportStore held in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]core.Report
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]core.Report),
	}
}

// Put inserts or overwrites the report of report.SessionID.
func (s *MemoryStore) Put(ctx context.Context, report *core.Report) error {
	if report == nil || report.SessionID == "" {
		return errors.New("store: session ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stored := *report
	if existing, ok := s.reports[report.SessionID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.reports[report.SessionID] = stored

	report.CreatedAt = stored.CreatedAt
	report.UpdatedAt = stored.UpdatedAt
	return nil
}

// Get returns a copy of the stored report.
func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*core.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return &report, nil
}

// Delete removes a session. Unknown sessions are ignored.
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reports, sessionID)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
