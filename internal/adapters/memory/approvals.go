// Package memory holds process-local adapters for development and tests.
package memory

import (
	"context"
	"sync"

	"reviews_dashboard/internal/domain"
)

type ApprovalStore struct {
	mu sync.RWMutex
	m  map[domain.ReviewID]bool
}

func NewApprovalStore() *ApprovalStore {
	return &ApprovalStore{m: map[domain.ReviewID]bool{}}
}

func (s *ApprovalStore) GetApproval(_ context.Context, id domain.ReviewID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[id], nil
}

func (s *ApprovalStore) SetApproval(_ context.Context, id domain.ReviewID, approved bool) error {
	s.mu.Lock()
	s.m[id] = approved
	s.mu.Unlock()
	return nil
}

func (s *ApprovalStore) ListApprovals(_ context.Context) (map[domain.ReviewID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.ReviewID]bool, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out, nil
}
