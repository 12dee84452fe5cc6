package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdown_RunsHooksInPriorityOrder(t *testing.T) {
	h := NewHandler(Config{})
	var order []string
	add := func(name string, prio int) {
		h.RegisterFunc(name, prio, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	add("store", PriorityStore)
	add("http", PriorityHTTP)
	add("sessions", PrioritySessions)
	add("store-2", PriorityStore)

	require.NoError(t, h.Shutdown())
	assert.Equal(t, []string{"http", "sessions", "store", "store-2"}, order)

	select {
	case <-h.Done():
	default:
		t.Fatal("done channel should be closed")
	}
	assert.ErrorIs(t, h.Shutdown(), ErrAlreadyClosed)
}

type closer struct{ err error }

func (c closer) Close() error { return c.err }

func TestShutdown_JoinsErrorsAndContinues(t *testing.T) {
	h := NewHandler(Config{})
	boom := errors.New("boom")
	ran := false
	h.RegisterCloser("store", PriorityStore, closer{err: boom})
	h.RegisterFunc("logger", PriorityLogger, func(context.Context) error {
		ran = true
		return nil
	})

	err := h.Shutdown()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "store")
	assert.True(t, ran, "later hooks run after a failure")
}

func TestShutdown_Timeout(t *testing.T) {
	h := NewHandler(Config{Timeout: 10 * time.Millisecond})
	later := false
	h.RegisterFunc("slow", PriorityHTTP, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	h.RegisterFunc("later", PriorityStore, func(context.Context) error {
		later = true
		return nil
	})

	assert.ErrorIs(t, h.Shutdown(), ErrShutdownTimeout)
	assert.False(t, later)
}

func TestWait(t *testing.T) {
	h := NewHandler(Config{})
	called := make(chan struct{})
	h.RegisterFunc("http", PriorityHTTP, func(context.Context) error {
		close(called)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.Wait(ctx) }()
	cancel()

	require.NoError(t, <-errc)
	<-called
}
