// Package wizard implements the multi-step form flow: step navigation,
// per-step validation, session persistence and submission. A Controller owns
// one session and drives a Surface.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gabrielmiguelok/formwizard/pkg/forms"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/state"
)

// Controller errors.
var (
	ErrSubmitted    = errors.New("wizard already submitted")
	ErrUnknownField = errors.New("unknown field")
	ErrNotFinalStep = errors.New("submit is only allowed from the final step")
)

// DefaultKeyPrefix prefixes every session's storage keys.
const DefaultKeyPrefix = "wizard:"

// SessionState is a point-in-time copy of a controller's state.
type SessionState struct {
	ID        string
	Step      int
	Submitted bool
	Values    forms.Data
	Errors    map[string]string
}

// Controller runs one wizard session. Events are serialized.
type Controller struct {
	id         string
	def        *Definition
	validator  *forms.Validator
	surface    Surface
	nav        *Navigator
	cache      *Cache
	submission *SubmissionHandler
	logger     logging.Logger

	values    forms.Data
	errors    map[string]string
	submitted bool
	mu        sync.Mutex
}

type controllerConfig struct {
	validator *forms.Validator
	submitter Submitter
	logger    logging.Logger
	prefix    string
	ttl       time.Duration
}

// Option configures a Controller.
type Option func(*controllerConfig)

// WithValidator sets the field validator.
func WithValidator(v *forms.Validator) Option {
	return func(c *controllerConfig) {
		c.validator = v
	}
}

// WithSubmitter sets where completed applications go.
func WithSubmitter(s Submitter) Option {
	return func(c *controllerConfig) {
		c.submitter = s
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *controllerConfig) {
		c.logger = l
	}
}

// WithKeyPrefix sets the storage key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *controllerConfig) {
		c.prefix = prefix
	}
}

// WithSessionTTL sets how long persisted entries live.
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *controllerConfig) {
		c.ttl = ttl
	}
}

// NewController creates a controller for session id. Its entries are stored
// under <prefix><id>: in store.
func NewController(id string, def *Definition, store state.Store, surface Surface, opts ...Option) *Controller {
	cfg := &controllerConfig{prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.validator == nil {
		cfg.validator = forms.NewValidator()
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger{}
	}
	if surface == nil {
		surface = NopSurface{}
	}
	logger := cfg.logger.With(logging.Session(id))

	scope := state.NewScope(store, cfg.prefix+id+":", state.WithTTL(cfg.ttl))
	cache := NewCache(scope, logger)

	return &Controller{
		id:         id,
		def:        def,
		validator:  cfg.validator,
		surface:    surface,
		nav:        NewNavigator(def, surface),
		cache:      cache,
		submission: NewSubmissionHandler(cfg.submitter, surface, cache, logger),
		logger:     logger,
		values:     make(forms.Data),
		errors:     make(map[string]string),
	}
}

// ID returns the session ID.
func (c *Controller) ID() string {
	return c.id
}

// Definition returns the wizard layout.
func (c *Controller) Definition() *Definition {
	return c.def
}

// Bind hands the controller to surfaces that dispatch their own events.
func (c *Controller) Bind(b Binder) {
	b.BindNavigation(c)
	b.BindValidation(c)
}

// State returns a copy of the session state.
func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	errs := make(map[string]string, len(c.errors))
	for k, v := range c.errors {
		errs[k] = v
	}
	return SessionState{
		ID:        c.id,
		Step:      c.nav.Current(),
		Submitted: c.submitted,
		Values:    c.values.Clone(),
		Errors:    errs,
	}
}

// Load restores persisted values and position. Values for fields the
// definition does not contain are ignored. Restoring never writes.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.cache.Load(ctx)
	if err != nil {
		return err
	}

	restored := make(forms.Data)
	for _, name := range snap.Data.Keys() {
		if _, _, ok := c.def.Field(name); !ok {
			continue
		}
		value := snap.Data[name]
		restored[name] = value
		c.values[name] = value
		c.surface.SetFieldValue(name, value)
	}
	c.cache.Restore(restored)

	target := c.def.First()
	if snap.Step != 0 {
		if c.def.HasStep(snap.Step) {
			target = snap.Step
		} else {
			c.logger.Warn("saved step not found", logging.Step(snap.Step))
		}
	}
	return c.nav.GoTo(target)
}

// Next validates the current step, saves it and advances to target. A zero
// target means the following step, and so does any existing step past it,
// so steps are never skipped. An invalid step blocks the move and is not an
// error.
func (c *Controller) Next(ctx context.Context, target int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitted {
		return ErrSubmitted
	}
	current := c.nav.Current()
	if !c.validateStep(current) {
		c.logger.Debug("step invalid", logging.Step(current))
		return nil
	}
	following := c.def.After(current)
	if target == 0 || (following != 0 && target > following && c.def.HasStep(target)) {
		target = following
	}
	return c.transition(ctx, current, target)
}

// Previous saves the current step and moves back to target without
// validating. A zero target means the preceding step.
func (c *Controller) Previous(ctx context.Context, target int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitted {
		return ErrSubmitted
	}
	current := c.nav.Current()
	if target == 0 {
		target = c.def.Before(current)
	}
	return c.transition(ctx, current, target)
}

// transition saves current's values with the step the session lands on,
// then navigates. A missing target is logged and leaves current active.
func (c *Controller) transition(ctx context.Context, current, target int) error {
	landing := current
	if c.def.HasStep(target) {
		landing = target
	}
	if err := c.cache.SaveStep(ctx, c.stepValues(current), landing); err != nil {
		return err
	}
	if err := c.nav.GoTo(target); err != nil {
		c.logger.Warn("navigation ignored", logging.Step(target), logging.Err(err))
	}
	return nil
}

// Submit validates every step, saves the final one and hands FormData to
// the submitter. If an earlier step is invalid the session moves back to it
// instead. Once the submitter accepts, the session is terminal.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitted {
		return ErrSubmitted
	}
	current := c.nav.Current()
	if current != c.def.Last() {
		return fmt.Errorf("%w: on step %d", ErrNotFinalStep, current)
	}
	if !c.validateStep(current) {
		return nil
	}
	for _, step := range c.def.Steps {
		if step.Number == current || c.validateStep(step.Number) {
			continue
		}
		c.logger.Debug("earlier step invalid", logging.Step(step.Number))
		return c.transition(ctx, current, step.Number)
	}
	if err := c.cache.SaveStep(ctx, c.stepValues(current), current); err != nil {
		return err
	}
	data := c.cache.Data()
	if err := c.submission.Submit(ctx, c.id, data); err != nil {
		return err
	}
	c.submitted = true
	c.logger.Info("wizard completed", logging.Int("fields", len(data)))
	return nil
}

// Input records a field edit and persists FormData.
func (c *Controller) Input(ctx context.Context, name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitted {
		return ErrSubmitted
	}
	if _, _, ok := c.def.Field(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	c.values[name] = value
	c.surface.SetFieldValue(name, value)
	return c.cache.SaveField(ctx, name, value)
}

// Blur validates one field and updates its error display.
func (c *Controller) Blur(ctx context.Context, name string) (forms.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitted {
		return forms.Result{}, ErrSubmitted
	}
	f, _, ok := c.def.Field(name)
	if !ok {
		return forms.Result{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return c.validateField(f), nil
}

// ValidateStep validates every field of step n and updates their displays.
// An unknown step is invalid.
func (c *Controller) ValidateStep(n int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateStep(n)
}

func (c *Controller) validateStep(n int) bool {
	step, ok := c.def.Step(n)
	if !ok {
		c.logger.Warn("cannot validate missing step", logging.Step(n))
		return false
	}
	results, valid := step.Form().Validate(c.validator, c.values)
	for _, res := range results {
		c.show(res)
	}
	return valid
}

func (c *Controller) validateField(f forms.Field) forms.Result {
	res := c.validator.Validate(f, c.values[f.Name])
	c.show(res)
	return res
}

// show records res and updates the field's error display.
func (c *Controller) show(res forms.Result) {
	delete(c.errors, res.Field)
	c.surface.SetFieldError(res.Field, "")
	if !res.Valid {
		c.errors[res.Field] = res.Message
		c.surface.SetFieldError(res.Field, res.Message)
	}
}

func (c *Controller) stepValues(n int) forms.Data {
	step, ok := c.def.Step(n)
	if !ok {
		return nil
	}
	out := make(forms.Data, len(step.Fields))
	for _, f := range step.Fields {
		out[f.Name] = c.values[f.Name]
	}
	return out
}
