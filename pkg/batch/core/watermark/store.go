// Package watermark defines the durable sync boundary shared by transfer runs.
package watermark

import (
	"context"
	"fmt"
	"time"

	"github.com/tigerroll/tablesync/pkg/batch/support/util/exception"
)

// Store persists the watermark: the time up to which the target is known to be in sync.
type Store interface {
	// Get returns the stored watermark, or the zero time if none was ever set.
	Get(ctx context.Context) (time.Time, error)
	// Set replaces the stored watermark.
	Set(ctx context.Context, ts time.Time) error
}

// Monotonic wraps store so that Set refuses to move the watermark backwards.
func Monotonic(store Store) Store {
	return &monotonicStore{Store: store}
}

type monotonicStore struct {
	Store
}

func (s *monotonicStore) Set(ctx context.Context, ts time.Time) error {
	current, err := s.Store.Get(ctx)
	if err != nil {
		return err
	}
	if ts.Before(current) {
		return exception.NewInvalidConfiguration("watermark",
			fmt.Sprintf("refusing to move watermark back from %s to %s", current.Format(time.RFC3339Nano), ts.Format(time.RFC3339Nano)))
	}
	return s.Store.Set(ctx, ts)
}
