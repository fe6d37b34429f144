// Package store selects the order store backend and decorates it with
// tracing.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/jcmexdev/order-pipeline/internal/domain"
	"github.com/jcmexdev/order-pipeline/internal/pkg/retry"
	"github.com/jcmexdev/order-pipeline/internal/pkg/store/memory"
	"github.com/jcmexdev/order-pipeline/internal/pkg/store/postgres"
)

// Open returns the store for rawURL and a function releasing it.
// postgres:// and postgresql:// use Postgres; memory:// keeps everything in
// process; the API and the processor binaries each get their own store, so
// it is only useful for running one binary in isolation.
func Open(ctx context.Context, rawURL string, policy retry.Policy, logger *slog.Logger) (domain.OrderStore, func(), error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("store: parse url: %w", err)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		s, err := postgres.Open(ctx, rawURL, policy, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "memory":
		return memory.New(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("store: unsupported scheme %q", u.Scheme)
	}
}
