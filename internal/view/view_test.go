package view

import (
	"bytes"
	"context"
	"html/template"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/formwizard/pkg/core"
	"github.com/gabrielmiguelok/formwizard/pkg/forms"
	"github.com/gabrielmiguelok/formwizard/pkg/state"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

var fixedNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func render(t *testing.T, ctx context.Context, s *Surface) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, s.Render(ctx, &buf))
	return buf.String()
}

func TestSurface_RenderActiveStep(t *testing.T) {
	def := wizard.DefaultDefinition()
	s := NewSurface(def)
	s.ShowStep(2)
	s.SetProgress(wizard.Progress(def, 2))
	s.SetFieldValue("email", `ada@example.com"><script>`)
	s.SetFieldError("mobilePhone", forms.MsgPhoneLength)

	ctx := core.WithCSRFToken(context.Background(), "tok-123")
	html := render(t, ctx, s)

	assert.Contains(t, html, `<section class="form-step active" data-step="2">`)
	assert.Contains(t, html, `<section class="form-step" data-step="1" hidden>`)
	assert.Contains(t, html, `class="progress-step completed" data-step="1"`)
	assert.Contains(t, html, `class="progress-step active" data-step="2"`)
	assert.Contains(t, html, `name="_csrf" value="tok-123"`)
	assert.Contains(t, html, forms.MsgPhoneLength)
	assert.Contains(t, html, `aria-invalid="true"`)
	assert.NotContains(t, html, "<script>", "values are escaped")
	assert.Contains(t, html, `value="submit"`, "last step has a submit button")
	assert.NotContains(t, html, "successMessage")
}

func TestSurface_ScrollFlagIsConsumed(t *testing.T) {
	s := NewSurface(wizard.DefaultDefinition())
	s.ShowStep(1)
	s.ScrollToTop()

	assert.Contains(t, render(t, context.Background(), s), `data-scroll="top"`)
	assert.NotContains(t, render(t, context.Background(), s), `data-scroll="top"`)
}

func TestSurface_ClearErrorAndSuccess(t *testing.T) {
	s := NewSurface(wizard.DefaultDefinition())
	s.ShowStep(1)
	s.SetFieldError("firstName", forms.MsgRequired)
	assert.Equal(t, forms.MsgRequired, s.Error("firstName"))
	s.SetFieldError("firstName", "")
	assert.Empty(t, s.Error("firstName"))

	s.ShowSuccess()
	html := render(t, context.Background(), s)
	assert.True(t, s.Succeeded())
	assert.Contains(t, html, "Application Submitted!")
	assert.NotContains(t, html, "<form")
	assert.NotContains(t, html, "form-header")
}

func TestRenderPage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPage(&buf, Page{
		Title:     "Admission",
		CSRFToken: "tok",
		Body:      template.HTML(`<div id="wizard"></div>`),
	}))
	html := buf.String()
	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, `<script src="/assets/wizard.js" defer></script>`)
	assert.Contains(t, html, `data-live="/live"`)
	assert.Contains(t, html, `<meta name="csrf-token" content="tok">`)
	assert.Contains(t, html, `<div id="wizard"></div>`)
}

func newComponent(t *testing.T, store state.Store, sid string) *Component {
	t.Helper()
	factory := NewFactory(ComponentConfig{
		Store: store,
		Options: []wizard.Option{
			wizard.WithValidator(forms.NewValidator(forms.WithClock(func() time.Time { return fixedNow }))),
		},
	})
	c := factory().(*Component)
	require.NoError(t, c.Mount(context.Background(), core.Params{}, core.Session{core.SessionIDKey: sid}))
	return c
}

func TestComponent_Flow(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore(state.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	c := newComponent(t, store, "sid-1")

	assert.Equal(t, ComponentName, c.Name())
	assert.Equal(t, 1, c.Surface().Active())

	// Next with an empty step is blocked.
	require.NoError(t, c.HandleEvent(ctx, "next", map[string]string{}))
	st, _ := c.State()
	assert.Equal(t, 1, st.Step)
	assert.Equal(t, forms.MsgRequired, c.Surface().Error("firstName"))

	steps := []map[string]string{
		{"firstName": "Ada", "lastName": "Lovelace", "dob": "2000-06-15", "_csrf": "ignored"},
		{"email": "ada@example.com", "mobilePhone": "(555) 123-4567", "address": "12 St James's Square"},
		{"schoolName": "Saint Marys", "graduationYear": "2018"},
	}
	for i, values := range steps {
		require.NoError(t, c.HandleEvent(ctx, "next", values))
		st, _ = c.State()
		require.Equal(t, i+2, st.Step, "after step %d", i+1)
	}

	// Blur reports the invalid field without moving.
	require.NoError(t, c.HandleEvent(ctx, "blur", map[string]string{KeyField: "kinPhone", "kinPhone": "123"}))
	assert.Equal(t, forms.MsgPhoneLength, c.Surface().Error("kinPhone"))

	// Submitting from the last step with valid values succeeds.
	require.NoError(t, c.HandleEvent(ctx, "submit", map[string]string{
		"kinName": "Anne Byron", "kinRelationship": "Mother", "kinPhone": "555-123-4567",
	}))
	assert.True(t, c.Surface().Succeeded())

	keys, err := store.Keys(ctx, "wizard:sid-1:*")
	require.NoError(t, err)
	assert.Empty(t, keys)

	html, err := core.RenderString(ctx, c.Render(ctx))
	require.NoError(t, err)
	assert.Contains(t, html, "Application Submitted!")
}

func TestComponent_PrevWithTarget(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore(state.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	c := newComponent(t, store, "sid-2")

	require.NoError(t, c.HandleEvent(ctx, "next", map[string]string{
		"firstName": "Ada", "lastName": "Lovelace", "dob": "2000-06-15",
	}))
	require.NoError(t, c.HandleEvent(ctx, "prev", map[string]string{KeyTarget: "1"}))
	st, _ := c.State()
	assert.Equal(t, 1, st.Step)

	// A second component for the same session resumes from the store.
	resumed := newComponent(t, store, "sid-2")
	st, _ = resumed.State()
	assert.Equal(t, 1, st.Step)
	assert.Equal(t, "Ada", st.Values["firstName"])
}

func TestComponent_Errors(t *testing.T) {
	ctx := context.Background()
	c := NewFactory(ComponentConfig{Store: state.NewMemoryStore(state.WithCleanupInterval(0))})().(*Component)

	assert.ErrorIs(t, c.HandleEvent(ctx, "next", nil), ErrNotMounted)
	_, err := core.RenderString(ctx, c.Render(ctx))
	assert.ErrorIs(t, err, ErrNotMounted)
	assert.Error(t, c.Mount(ctx, nil, core.Session{}))

	require.NoError(t, c.Mount(ctx, nil, core.Session{core.SessionIDKey: "sid"}))
	assert.ErrorIs(t, c.HandleEvent(ctx, "explode", nil), ErrUnknownEvent)
	assert.ErrorIs(t, c.HandleEvent(ctx, "blur", map[string]string{KeyField: "nope"}), wizard.ErrUnknownField)
	assert.ErrorIs(t, c.HandleEvent(ctx, "submit", nil), wizard.ErrNotFinalStep)
	assert.NoError(t, c.Terminate(ctx, core.TerminateTimeout))
}

func TestComponent_RendersEnteredValues(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore(state.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	c := newComponent(t, store, "sid-3")

	require.NoError(t, c.HandleEvent(ctx, "input", map[string]string{"firstName": "Ada"}))
	html, err := core.RenderString(ctx, c.Render(ctx))
	require.NoError(t, err)
	assert.Contains(t, html, `name="firstName" value="Ada"`)

	require.NoError(t, c.HandleEvent(ctx, "next", map[string]string{"lastName": "Lovelace", "dob": "2000-06-15"}))
	require.NoError(t, c.HandleEvent(ctx, "prev", nil))
	html, err = core.RenderString(ctx, c.Render(ctx))
	require.NoError(t, err)
	assert.Contains(t, html, `name="firstName" value="Ada"`)
	assert.Contains(t, html, `name="lastName" value="Lovelace"`)

	// Posting the values back unchanged keeps them.
	require.NoError(t, c.HandleEvent(ctx, "next", map[string]string{
		"firstName": "Ada", "middleName": "", "lastName": "Lovelace", "dob": "2000-06-15", "email": "",
	}))
	st, _ := c.State()
	assert.Equal(t, 2, st.Step)
	assert.Equal(t, "Lovelace", st.Values["lastName"])
}

func TestComponent_FinishedAfterSuccessRendered(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore(state.WithCleanupInterval(0))
	t.Cleanup(func() { _ = store.Close() })
	c := newComponent(t, store, "sid-4")

	steps := []map[string]string{
		{"firstName": "Ada", "lastName": "Lovelace", "dob": "2000-06-15"},
		{"email": "ada@example.com", "mobilePhone": "(555) 123-4567", "address": "12 St James's Square"},
		{"schoolName": "Saint Marys", "graduationYear": "2018"},
	}
	for _, values := range steps {
		require.NoError(t, c.HandleEvent(ctx, "next", values))
	}
	require.NoError(t, c.HandleEvent(ctx, "submit", map[string]string{
		"kinName": "Anne Byron", "kinRelationship": "Mother", "kinPhone": "555-123-4567",
	}))
	assert.False(t, c.Finished(), "success not rendered yet")

	_, err := core.RenderString(ctx, c.Render(ctx))
	require.NoError(t, err)
	assert.True(t, c.Finished())
}
