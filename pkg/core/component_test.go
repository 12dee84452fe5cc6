package core

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter struct {
	BaseComponent
	name string
}

func (g *greeter) Name() string { return "greeter" }

func (g *greeter) Render(ctx context.Context) Renderer {
	return RendererFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "hello "+g.name)
		return err
	})
}

func TestBaseComponentDefaults(t *testing.T) {
	var c Component = &greeter{name: "ada"}
	assert.Equal(t, "greeter", c.Name())
	require.NoError(t, c.Mount(context.Background(), Params{}, Session{}))
	require.NoError(t, c.HandleEvent(context.Background(), "noop", nil))

	html, err := RenderString(context.Background(), c.Render(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, "hello ada", html)
	require.NoError(t, c.Terminate(context.Background(), TerminateNormal))
}

func TestRenderString_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := RenderString(context.Background(), RendererFunc(func(context.Context, io.Writer) error { return boom }))
	assert.ErrorIs(t, err, boom)
}

func TestParamsAndSession(t *testing.T) {
	p := Params{"codec": "msgpack"}
	assert.Equal(t, "msgpack", p.Get("codec"))
	assert.Empty(t, p.Get("missing"))

	s := Session{"id": "abc", "n": 1}
	assert.Equal(t, "abc", s.GetString("id"))
	assert.Equal(t, "", s.GetString("n"))
	assert.Equal(t, 1, s.Get("n"))

	assert.Equal(t, "timeout", TerminateTimeout.String())
	assert.Equal(t, "unknown", TerminateReason(42).String())
}

func TestContextHelpers(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sid")
	assert.Equal(t, "sid", SessionIDFromContext(ctx))
	assert.Empty(t, SessionIDFromContext(context.Background()))

	ctx = WithCSRFToken(ctx, "tok")
	assert.Equal(t, "tok", CSRFTokenFromContext(ctx))
	assert.Empty(t, CSRFTokenFromContext(context.Background()))
}
