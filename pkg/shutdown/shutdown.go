// Package shutdown runs prioritized cleanup hooks when the server stops.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/gabrielmiguelok/formwizard/pkg/logging"
)

var (
	ErrShutdownTimeout = errors.New("shutdown timed out")
	ErrAlreadyClosed   = errors.New("shutdown handler already closed")
)

// Hook priorities. Lower runs earlier.
const (
	PriorityHTTP     = 100
	PrioritySessions = 200
	PriorityStore    = 300
	PriorityLogger   = 1000
)

// Hook is a named cleanup step.
type Hook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// Config configures the shutdown handler.
type Config struct {
	// Timeout bounds the whole hook sequence.
	Timeout time.Duration
	Signals []os.Signal
	Logger  logging.Logger
}

// DefaultConfig returns a 30 second timeout listening for SIGINT and SIGTERM.
func DefaultConfig() Config {
	return Config{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// Handler manages graceful shutdown.
type Handler struct {
	config Config
	hooks  []Hook
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

// NewHandler creates a new shutdown handler.
func NewHandler(config Config) *Handler {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if len(config.Signals) == 0 {
		config.Signals = def.Signals
	}
	if config.Logger == nil {
		config.Logger = logging.NopLogger{}
	}
	return &Handler{config: config, done: make(chan struct{})}
}

// Register adds a shutdown hook.
func (h *Handler) Register(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// RegisterFunc registers fn as a hook.
func (h *Handler) RegisterFunc(name string, priority int, fn func(ctx context.Context) error) {
	h.Register(Hook{Name: name, Priority: priority, Fn: fn})
}

// RegisterCloser registers anything with a Close method.
func (h *Handler) RegisterCloser(name string, priority int, c interface{ Close() error }) {
	h.RegisterFunc(name, priority, func(context.Context) error { return c.Close() })
}

// NotifyContext returns a context cancelled on the first configured signal.
func (h *Handler) NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, h.config.Signals...)
}

// Wait blocks until ctx is done, then runs the hooks.
func (h *Handler) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-h.done:
		return nil
	}
	return h.Shutdown()
}

// Shutdown runs every hook in priority order, registration order breaking
// ties. Hook errors are joined; the sequence stops early on timeout.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrAlreadyClosed
	}
	h.closed = true
	close(h.done)
	hooks := make([]Hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Priority < hooks[j].Priority
	})

	log := h.config.Logger
	log.Info("shutting down", logging.Int("hooks", len(hooks)))

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var errs []error
	for _, hook := range hooks {
		start := time.Now()
		err := hook.Fn(ctx)
		fields := []logging.Field{logging.String("hook", hook.Name), logging.Duration("took", time.Since(start))}
		if err != nil {
			log.Error("shutdown hook failed", append(fields, logging.Err(err))...)
			errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
		} else {
			log.Debug("shutdown hook done", fields...)
		}
		if ctx.Err() != nil {
			return errors.Join(append(errs, ErrShutdownTimeout)...)
		}
	}
	return errors.Join(errs...)
}

// Done is closed once Shutdown starts.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
