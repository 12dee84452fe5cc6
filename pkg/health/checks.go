package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabrielmiguelok/formwizard/pkg/state"
)

const probeKey = "health:probe"

// StoreCheck writes, reads and deletes a probe key.
func StoreCheck(store state.Store) func(context.Context) error {
	return func(ctx context.Context) error {
		want := []byte(time.Now().UTC().Format(time.RFC3339Nano))
		if err := store.Set(ctx, probeKey, want, time.Minute); err != nil {
			return fmt.Errorf("store write: %w", err)
		}
		got, err := store.Get(ctx, probeKey)
		if err != nil {
			return fmt.Errorf("store read: %w", err)
		}
		if string(got) != string(want) {
			return errors.New("store returned a different value")
		}
		if err := store.Delete(ctx, probeKey); err != nil {
			return fmt.Errorf("store delete: %w", err)
		}
		return nil
	}
}

// CapacityCheck fails when count reaches max.
func CapacityCheck(what string, count func() int, max int) func(context.Context) error {
	return func(ctx context.Context) error {
		if n := count(); max > 0 && n >= max {
			return fmt.Errorf("%s at capacity: %d of %d", what, n, max)
		}
		return nil
	}
}

// StateCheck fails while current() reports the bad state, e.g. an open
// circuit breaker.
func StateCheck[S comparable](current func() S, bad S) func(context.Context) error {
	return func(ctx context.Context) error {
		if s := current(); s == bad {
			return fmt.Errorf("state is %v", s)
		}
		return nil
	}
}
