package view

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/gabrielmiguelok/formwizard/pkg/core"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/protocol"
	"github.com/gabrielmiguelok/formwizard/pkg/state"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

// ComponentName identifies the wizard component.
const ComponentName = "admission-wizard"

// Payload keys that are not field values.
const (
	KeyField  = "field"
	KeyTarget = "target"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrNotMounted   = errors.New("component not mounted")
)

// ComponentConfig is shared by every wizard component a factory creates.
type ComponentConfig struct {
	Definition *wizard.Definition
	Store      state.Store
	Logger     logging.Logger
	Options    []wizard.Option
}

// Component serves one browser session's wizard as a LiveView.
type Component struct {
	core.BaseComponent

	cfg     ComponentConfig
	surface *Surface
	ctrl    *wizard.Controller

	// finished is set once the success panel has been rendered.
	finished atomic.Bool
}

var _ core.Component = (*Component)(nil)

// NewFactory returns a constructor suitable for a component registry.
func NewFactory(cfg ComponentConfig) func() core.Component {
	if cfg.Definition == nil {
		cfg.Definition = wizard.DefaultDefinition()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger{}
	}
	return func() core.Component {
		return &Component{cfg: cfg}
	}
}

func (c *Component) Name() string {
	return ComponentName
}

// Mount creates the session's controller and restores any saved progress.
func (c *Component) Mount(ctx context.Context, params core.Params, session core.Session) error {
	sid := session.GetString(core.SessionIDKey)
	if sid == "" {
		return fmt.Errorf("mount %s: missing session id", ComponentName)
	}
	opts := append([]wizard.Option{wizard.WithLogger(c.cfg.Logger)}, c.cfg.Options...)

	c.surface = NewSurface(c.cfg.Definition)
	c.ctrl = wizard.NewController(sid, c.cfg.Definition, c.cfg.Store, c.surface, opts...)
	return c.ctrl.Load(ctx)
}

func (c *Component) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		if c.surface == nil {
			return ErrNotMounted
		}
		success := c.surface.Succeeded()
		if err := c.surface.Render(ctx, w); err != nil {
			return err
		}
		if success {
			c.finished.Store(true)
		}
		return nil
	})
}

// Finished reports whether the success panel has been shown. Nothing is
// left to do in a finished session.
func (c *Component) Finished() bool {
	return c.finished.Load()
}

// HandleEvent applies field values from payload, then runs event. The
// target key selects the destination step of next and prev; blur validates
// the field named by the field key.
func (c *Component) HandleEvent(ctx context.Context, event string, payload map[string]string) error {
	if c.ctrl == nil {
		return ErrNotMounted
	}
	switch event {
	case protocol.EventMount:
		return nil
	case protocol.EventInput, protocol.EventBlur, protocol.EventNext,
		protocol.EventPrev, protocol.EventSubmit:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}

	if err := c.applyValues(ctx, payload); err != nil {
		return err
	}

	msg := protocol.Message{Payload: payload}
	switch event {
	case protocol.EventNext:
		return c.ctrl.Next(ctx, msg.Int(KeyTarget))
	case protocol.EventPrev:
		return c.ctrl.Previous(ctx, msg.Int(KeyTarget))
	case protocol.EventSubmit:
		return c.ctrl.Submit(ctx)
	case protocol.EventBlur:
		_, err := c.ctrl.Blur(ctx, msg.Get(KeyField))
		return err
	}
	return nil
}

// applyValues records changed values for fields the wizard knows. Other
// keys are ignored, so whole form posts can be passed through.
func (c *Component) applyValues(ctx context.Context, payload map[string]string) error {
	current := c.ctrl.State()
	if current.Submitted {
		return nil
	}
	for _, name := range c.cfg.Definition.FieldNames() {
		value, ok := payload[name]
		if !ok {
			continue
		}
		// Unchanged values, and blanks for fields never touched, are not edits.
		if old, ok := current.Values[name]; old == value && (ok || value == "") {
			continue
		}
		if err := c.ctrl.Input(ctx, name, value); err != nil {
			return err
		}
	}
	return nil
}

// Terminate logs why the session ended. Saved progress stays in the store
// until its TTL expires.
func (c *Component) Terminate(ctx context.Context, reason core.TerminateReason) error {
	if c.ctrl != nil {
		c.cfg.Logger.Debug("wizard session terminated",
			logging.Session(c.ctrl.ID()),
			logging.String("reason", reason.String()),
		)
	}
	return nil
}

// State returns the controller's session state.
func (c *Component) State() (wizard.SessionState, bool) {
	if c.ctrl == nil {
		return wizard.SessionState{}, false
	}
	return c.ctrl.State(), true
}

// Surface returns the HTML surface, nil before Mount.
func (c *Component) Surface() *Surface {
	return c.surface
}
