package payments

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is a mutex-guarded in-memory Store. It backs tests and local
// development; the CAS check-and-write happens under one lock so it keeps
// the same atomicity contract as the SQL implementation.
type MemStore struct {
	mu      sync.Mutex
	records map[string]*PaymentRecord // keyed by client reference
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*PaymentRecord)}
}

func (s *MemStore) Create(ctx context.Context, rec *PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ClientReference]; ok {
		return ErrDuplicateReference
	}
	cp := *rec
	s.records[rec.ClientReference] = &cp
	return nil
}

func (s *MemStore) Get(ctx context.Context, clientReference string) (*PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[clientReference]
	if !ok {
		return nil, ErrUnknownReference
	}
	cp := *rec
	return &cp, nil
}

func (s *MemStore) ListByUser(ctx context.Context, userID string) ([]PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []PaymentRecord
	for _, rec := range s.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) ListPendingByUser(ctx context.Context, userID string) ([]PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []PaymentRecord
	for _, rec := range s.records {
		if rec.UserID == userID && rec.Status == StatusPending {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) CompareAndSwap(ctx context.Context, clientReference string, cond SwapCondition, mut Mutation) (*PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[clientReference]
	if !ok {
		return nil, ErrUnknownReference
	}
	if rec.Status != cond.Status {
		return nil, ErrConflict
	}
	if cond.RequireToken && rec.WebhookToken == nil {
		return nil, ErrConflict
	}

	rec.Status = mut.Status
	rec.WebhookToken = nil
	rec.Notes = mut.Notes
	rec.UpdatedAt = time.Now()
	if mut.PaymentDate != nil {
		rec.PaymentDate = mut.PaymentDate
	}

	cp := *rec
	return &cp, nil
}
