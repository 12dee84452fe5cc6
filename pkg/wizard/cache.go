package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gabrielmiguelok/formwizard/pkg/forms"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/state"
)

// Storage keys inside a session scope.
const (
	FormDataKey    = "admissionFormData"
	CurrentStepKey = "currentStep"
)

// Snapshot is what a session has persisted.
type Snapshot struct {
	Data forms.Data
	// Step is the saved step, zero when none was saved.
	Step int
}

// Cache mirrors FormData into a session scope.
type Cache struct {
	scope  *state.Scope
	data   forms.Data
	logger logging.Logger
}

// NewCache creates a cache over scope.
func NewCache(scope *state.Scope, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Cache{scope: scope, data: make(forms.Data), logger: logger}
}

// Data returns a copy of the in-memory FormData.
func (c *Cache) Data() forms.Data {
	return c.data.Clone()
}

// Restore replaces the in-memory FormData without writing it.
func (c *Cache) Restore(data forms.Data) {
	c.data = data.Clone()
}

// SaveField records one value and writes FormData.
func (c *Cache) SaveField(ctx context.Context, name, value string) error {
	c.data[name] = value
	return c.writeData(ctx)
}

// SaveStep records a step's values and writes FormData and the step number.
func (c *Cache) SaveStep(ctx context.Context, values forms.Data, step int) error {
	for k, v := range values {
		c.data[k] = v
	}
	if err := c.writeData(ctx); err != nil {
		return err
	}
	if err := c.scope.SetString(ctx, CurrentStepKey, strconv.Itoa(step)); err != nil {
		return fmt.Errorf("save current step: %w", err)
	}
	return nil
}

func (c *Cache) writeData(ctx context.Context) error {
	b, err := json.Marshal(c.data)
	if err != nil {
		return fmt.Errorf("encode form data: %w", err)
	}
	if err := c.scope.Set(ctx, FormDataKey, b); err != nil {
		return fmt.Errorf("save form data: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. Missing entries yield zero values.
// Unparseable entries are logged and treated as missing.
func (c *Cache) Load(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Data: make(forms.Data)}

	raw, err := c.scope.Get(ctx, FormDataKey)
	switch {
	case errors.Is(err, state.ErrKeyNotFound):
	case err != nil:
		return snap, fmt.Errorf("load form data: %w", err)
	default:
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			c.logger.Warn("discarding malformed form data", logging.Err(err))
		} else {
			for k, v := range data {
				snap.Data[k] = stringify(v)
			}
		}
	}

	step, err := c.scope.GetString(ctx, CurrentStepKey)
	switch {
	case errors.Is(err, state.ErrKeyNotFound):
	case err != nil:
		return snap, fmt.Errorf("load current step: %w", err)
	default:
		n, perr := strconv.Atoi(strings.TrimSpace(step))
		if perr != nil {
			c.logger.Warn("discarding malformed current step", logging.String("value", step))
		} else {
			snap.Step = n
		}
	}

	return snap, nil
}

// Clear removes both entries, then empties FormData. If the store fails
// FormData is kept.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.scope.Delete(ctx, FormDataKey, CurrentStepKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	c.data = make(forms.Data)
	return nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
