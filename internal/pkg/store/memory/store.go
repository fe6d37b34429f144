// Package memory keeps orders in process memory. It backs the test suites.
// Behind STORE_URL=memory:// each binary gets its own empty store, so the
// processor never sees orders created by the API.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jcmexdev/order-pipeline/internal/domain"
)

type Store struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order

	// saves counts successful Save calls so tests can assert that a
	// redelivered message caused no extra write.
	saves int
}

func New() *Store {
	return &Store{orders: make(map[string]*domain.Order)}
}

func (s *Store) Create(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; ok {
		return domain.ErrConflict
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

func (s *Store) Fetch(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.NewNotFoundError(id)
	}
	return o.Clone(), nil
}

func (s *Store) Save(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.ID]; !ok {
		return domain.ErrConflict
	}
	s.orders[o.ID] = o.Clone()
	s.saves++
	return nil
}

func (s *Store) ListByStatus(_ context.Context, status domain.Status, before time.Time, limit int) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Order
	for _, o := range s.orders {
		if o.Status == status && o.CreatedAt.Before(before) {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Saves returns how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

var _ domain.OrderStore = (*Store)(nil)
