package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gabrielmiguelok/formwizard/pkg/forms"
)

// ErrCircuitOpen is returned while a failing submitter is being rested.
var ErrCircuitOpen = errors.New("submission circuit is open")

// CircuitState is the state of a CircuitSubmitter.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a CircuitSubmitter.
type BreakerConfig struct {
	// MaxErrors is the number of consecutive failures that open the circuit.
	MaxErrors int
	// ResetTimeout is how long the circuit stays open before a trial call.
	ResetTimeout time.Duration
	// SuccessThreshold is the number of trial successes that close it again.
	SuccessThreshold int
	// OnStateChange is called on every transition.
	OnStateChange func(from, to CircuitState)
}

// CircuitSubmitter stops calling a failing Submitter until it has had time
// to recover.
type CircuitSubmitter struct {
	next      Submitter
	cfg       BreakerConfig
	now       func() time.Time
	state     CircuitState
	errors    int
	successes int
	openedAt  time.Time
	mu        sync.Mutex
}

// NewCircuitSubmitter wraps next. Zero config values take defaults of 5
// errors, 30s and 1 success.
func NewCircuitSubmitter(next Submitter, cfg BreakerConfig) *CircuitSubmitter {
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &CircuitSubmitter{next: next, cfg: cfg, now: time.Now}
}

// State returns the current state.
func (c *CircuitSubmitter) State() CircuitState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit forwards to the wrapped submitter unless the circuit is open.
func (c *CircuitSubmitter) Submit(ctx context.Context, sessionID string, data forms.Data) error {
	if err := c.allow(); err != nil {
		return err
	}
	err := c.next.Submit(ctx, sessionID, data)
	c.record(err)
	return err
}

func (c *CircuitSubmitter) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == CircuitOpen {
		if c.now().Sub(c.openedAt) < c.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		c.setState(CircuitHalfOpen)
	}
	return nil
}

func (c *CircuitSubmitter) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		switch c.state {
		case CircuitHalfOpen:
			c.successes++
			if c.successes >= c.cfg.SuccessThreshold {
				c.setState(CircuitClosed)
			}
		default:
			c.errors = 0
		}
		return
	}

	switch c.state {
	case CircuitClosed:
		c.errors++
		if c.errors >= c.cfg.MaxErrors {
			c.open()
		}
	case CircuitHalfOpen:
		c.open()
	}
}

func (c *CircuitSubmitter) open() {
	c.openedAt = c.now()
	c.setState(CircuitOpen)
}

func (c *CircuitSubmitter) setState(to CircuitState) {
	from := c.state
	c.state = to
	c.errors = 0
	c.successes = 0
	if c.cfg.OnStateChange != nil && from != to {
		c.cfg.OnStateChange(from, to)
	}
}
