package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jcmexdev/order-pipeline/internal/domain"
)

// Orders caches order documents by id.
type Orders struct {
	cache Cache
	ttl   time.Duration
}

func NewOrders(c Cache, ttl time.Duration) *Orders {
	return &Orders{cache: c, ttl: ttl}
}

// Get returns the cached order, or nil on a miss.
func (o *Orders) Get(ctx context.Context, id string) (*domain.Order, error) {
	raw, err := o.cache.Get(ctx, o.cache.GenerateKey("order", id))
	if err != nil {
		return nil, fmt.Errorf("cache: get order %s: %w", id, err)
	}
	if raw == "" {
		return nil, nil
	}

	var order domain.Order
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return nil, fmt.Errorf("cache: decode order %s: %w", id, err)
	}
	return &order, nil
}

func (o *Orders) Put(ctx context.Context, order *domain.Order) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("cache: encode order %s: %w", order.ID, err)
	}
	if err := o.cache.Set(ctx, o.cache.GenerateKey("order", order.ID), raw, o.ttl); err != nil {
		return fmt.Errorf("cache: put order %s: %w", order.ID, err)
	}
	return nil
}
