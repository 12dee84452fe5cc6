// Package core provides the LiveView component abstractions the server
// mounts once per browser session.
package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// Component is a stateful server-side view. The server mounts one per
// session, forwards user events to it and re-renders after each event.
type Component interface {
	// Name returns the unique identifier for this component type.
	Name() string

	// Mount is called once when the component is created for a session.
	Mount(ctx context.Context, params Params, session Session) error

	// Render returns the current HTML representation of the component.
	Render(ctx context.Context) Renderer

	// HandleEvent processes a user interaction. The event string identifies
	// the action; payload carries its form values.
	HandleEvent(ctx context.Context, event string, payload map[string]string) error

	// Terminate is called when the component is being destroyed.
	Terminate(ctx context.Context, reason TerminateReason) error
}

// Renderer is the interface for rendering HTML content.
type Renderer interface {
	Render(ctx context.Context, w io.Writer) error
}

// RendererFunc is an adapter to allow ordinary functions to be used as Renderers.
type RendererFunc func(ctx context.Context, w io.Writer) error

func (f RendererFunc) Render(ctx context.Context, w io.Writer) error {
	return f(ctx, w)
}

// RenderString renders r into a string.
func RenderString(ctx context.Context, r Renderer) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return buf.String(), nil
}

// Params contains URL parameters and query strings from the connection.
type Params map[string]string

// Get returns a parameter value or empty string if not found.
func (p Params) Get(key string) string {
	return p[key]
}

// Session contains session data passed from the HTTP handler.
type Session map[string]any

// Get returns a session value.
func (s Session) Get(key string) any {
	return s[key]
}

// GetString returns a session value as string.
func (s Session) GetString(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// TerminateReason indicates why a component is being terminated.
type TerminateReason int

const (
	// TerminateNormal indicates the session finished.
	TerminateNormal TerminateReason = iota
	// TerminateShutdown indicates server shutdown.
	TerminateShutdown
	// TerminateError indicates termination due to an error.
	TerminateError
	// TerminateTimeout indicates the session expired.
	TerminateTimeout
)

func (r TerminateReason) String() string {
	switch r {
	case TerminateNormal:
		return "normal"
	case TerminateShutdown:
		return "shutdown"
	case TerminateError:
		return "error"
	case TerminateTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// BaseComponent provides default implementations for optional methods.
type BaseComponent struct{}

// Mount does nothing by default.
func (BaseComponent) Mount(ctx context.Context, params Params, session Session) error {
	return nil
}

// HandleEvent does nothing by default.
func (BaseComponent) HandleEvent(ctx context.Context, event string, payload map[string]string) error {
	return nil
}

// Terminate does nothing by default.
func (BaseComponent) Terminate(ctx context.Context, reason TerminateReason) error {
	return nil
}
