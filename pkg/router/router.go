// Package router serves wizard sessions over HTTP: full page loads, a
// form-post fallback and a WebSocket live channel, all backed by one
// mounted component per browser session.
package router

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielmiguelok/formwizard/internal/view"
	"github.com/gabrielmiguelok/formwizard/pkg/core"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/protocol"
	"github.com/gabrielmiguelok/formwizard/pkg/security"
	"github.com/gabrielmiguelok/formwizard/pkg/transport"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

// ErrSessionRequired is returned for event and live requests without a
// valid session cookie.
var ErrSessionRequired = errors.New("session cookie required")

// DefaultSessionCookie names the cookie holding the session ID.
const DefaultSessionCookie = "wizard_sid"

// Form fields of the fallback POST that are not field values.
const eventField = "event"

// ErrorHandler handles errors during request processing.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Config configures a Router.
type Config struct {
	// Title is the page title.
	Title string

	SessionCookie string
	// SecureCookie sets the Secure attribute on the session cookie.
	SecureCookie bool

	Transport transport.Config
	Codecs    *protocol.CodecRegistry

	// CSRF protects the fallback POST. Nil disables the check.
	CSRF *security.CSRFProtection

	Sessions SessionManagerConfig
	Logger   logging.Logger

	// Assets is served under /assets/ when set.
	Assets fs.FS

	// Guard wraps the event and live endpoints, typically with rate limits.
	Guard Middleware
}

// Router handles HTTP routing for the wizard.
type Router struct {
	mux          *http.ServeMux
	cfg          Config
	sessions     *SessionManager
	middleware   []Middleware
	errorHandler ErrorHandler
	mu           sync.RWMutex
}

// New creates a router mounting components from factory.
func New(factory func() core.Component, cfg Config) *Router {
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = DefaultSessionCookie
	}
	if cfg.Codecs == nil {
		cfg.Codecs = protocol.DefaultCodecRegistry
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger{}
	}
	if cfg.Sessions.Logger == nil {
		cfg.Sessions.Logger = cfg.Logger
	}

	r := &Router{
		mux:      http.NewServeMux(),
		cfg:      cfg,
		sessions: NewSessionManager(factory, cfg.Sessions),
	}
	r.errorHandler = r.defaultErrorHandler

	r.mux.HandleFunc("GET /{$}", r.handlePage)
	guard := func(h http.Handler) http.Handler { return h }
	if cfg.Guard != nil {
		guard = cfg.Guard
	}
	var event http.Handler = http.HandlerFunc(r.handleEvent)
	if cfg.CSRF != nil {
		event = cfg.CSRF.Middleware()(event)
	}
	r.mux.Handle("POST /event", guard(event))
	r.mux.Handle("GET /live", guard(http.HandlerFunc(r.handleLive)))
	if cfg.Assets != nil {
		r.mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServerFS(cfg.Assets)))
	}
	return r
}

// Use adds middleware around every route.
func (r *Router) Use(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw)
}

// SetErrorHandler sets the error handler.
func (r *Router) SetErrorHandler(handler ErrorHandler) {
	r.errorHandler = handler
}

// Handle registers an additional handler, e.g. health endpoints.
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, handler)
}

// HandleFunc registers an additional handler function.
func (r *Router) HandleFunc(pattern string, handler http.HandlerFunc) {
	r.Handle(pattern, handler)
}

// Sessions returns the session manager.
func (r *Router) Sessions() *SessionManager {
	return r.sessions
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	h := Chain(r.mux, r.middleware...)
	r.mu.RUnlock()
	h.ServeHTTP(w, req)
}

// handlePage renders the full wizard page, issuing a session cookie on the
// first visit.
func (r *Router) handlePage(w http.ResponseWriter, req *http.Request) {
	sid, ok := r.sessionID(req)
	if !ok {
		sid = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     r.cfg.SessionCookie,
			Value:    sid,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.cfg.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}

	// A finished wizard has shown its success panel. Loading the page again
	// starts a fresh application.
	if sess, ok := r.sessions.Get(sid); ok {
		if f, ok := sess.Component.(interface{ Finished() bool }); ok && f.Finished() {
			r.sessions.Remove(req.Context(), sid, core.TerminateNormal)
		}
	}
	sess, err := r.sessions.GetOrCreate(req.Context(), sid, extractParams(req))
	if err != nil {
		r.errorHandler(w, req, err)
		return
	}
	ctx, token, err := r.sessionContext(req.Context(), sid)
	if err != nil {
		r.errorHandler(w, req, err)
		return
	}
	body, err := core.RenderString(ctx, sess.Component.Render(ctx))
	if err != nil {
		r.errorHandler(w, req, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := view.RenderPage(w, view.Page{
		Title:     r.cfg.Title,
		CSRFToken: token,
		Body:      template.HTML(body),
	}); err != nil {
		r.cfg.Logger.Error("write page", logging.Session(sid), logging.Err(err))
	}
}

// handleEvent is the no-script fallback: apply one event from a form post
// and redirect back to the page.
func (r *Router) handleEvent(w http.ResponseWriter, req *http.Request) {
	sid, ok := r.sessionID(req)
	if !ok {
		r.errorHandler(w, req, ErrSessionRequired)
		return
	}
	if err := req.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	sess, err := r.sessions.GetOrCreate(req.Context(), sid, extractParams(req))
	if err != nil {
		r.errorHandler(w, req, err)
		return
	}
	event := req.PostForm.Get(eventField)
	ctx := core.WithSessionID(req.Context(), sid)
	if err := sess.Component.HandleEvent(ctx, event, r.formPayload(req.PostForm)); err != nil {
		r.errorHandler(w, req, err)
		return
	}
	http.Redirect(w, req, "/", http.StatusSeeOther)
}

// handleLive upgrades to the live channel and answers events with fresh
// markup until the client disconnects.
func (r *Router) handleLive(w http.ResponseWriter, req *http.Request) {
	sid, ok := r.sessionID(req)
	if !ok {
		r.errorHandler(w, req, ErrSessionRequired)
		return
	}
	codec, err := r.cfg.Codecs.Lookup(req.URL.Query().Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess, release, err := r.sessions.Connect(req.Context(), sid, extractParams(req))
	if err != nil {
		r.errorHandler(w, req, err)
		return
	}
	defer release()
	ctx, _, err := r.sessionContext(req.Context(), sid)
	if err != nil {
		r.errorHandler(w, req, err)
		return
	}

	logger := r.cfg.Logger.With(logging.Session(sid), logging.String("codec", codec.Name()))
	ctx = logging.ContextWithLogger(ctx, logger)

	conn, err := transport.Accept(w, req.WithContext(ctx), r.cfg.Transport, codec)
	if err != nil {
		logger.Warn("live channel rejected", logging.Err(err))
		return
	}
	defer conn.Close("")

	logger.Debug("live channel open")
	if err := conn.Serve(ctx, r.liveHandler(sess, logger)); err != nil && !errors.Is(err, context.Canceled) {
		logger.Debug("live channel closed", logging.Err(err))
	}
}

func (r *Router) liveHandler(sess *LiveViewSession, logger logging.Logger) protocol.MessageHandler {
	router := protocol.NewRouter()
	router.Use(protocol.RecoveryMiddleware(func(rec any) {
		logger.Error("panic handling event", logging.Any("panic", rec))
	}))
	router.Use(protocol.LoggingMiddleware(logger))

	render := func(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
		if err := sess.Component.HandleEvent(ctx, msg.Event, security.SanitizeValues(msg.Payload)); err != nil {
			return nil, err
		}
		html, err := core.RenderString(ctx, sess.Component.Render(ctx))
		if err != nil {
			return nil, err
		}
		return protocol.RenderMessage(msg.Ref, html), nil
	}
	for _, ev := range []string{protocol.EventMount, protocol.EventNext, protocol.EventPrev, protocol.EventSubmit, protocol.EventBlur} {
		router.OnFunc(ev, render)
	}

	// Keystrokes only update state; the client already shows the value.
	router.OnFunc(protocol.EventInput, func(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
		return nil, sess.Component.HandleEvent(ctx, msg.Event, security.SanitizeValues(msg.Payload))
	})

	// Every frame counts as activity, heartbeats included.
	return protocol.MessageHandlerFunc(func(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
		sess.Touch(time.Now())
		return router.HandleMessage(ctx, msg)
	})
}

// sessionID returns the request's session ID if its cookie holds a UUID.
func (r *Router) sessionID(req *http.Request) (string, bool) {
	c, err := req.Cookie(r.cfg.SessionCookie)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func (r *Router) sessionContext(ctx context.Context, sid string) (context.Context, string, error) {
	ctx = core.WithSessionID(ctx, sid)
	if r.cfg.CSRF == nil {
		return ctx, "", nil
	}
	token, err := r.cfg.CSRF.Token(sid)
	if err != nil {
		return nil, "", err
	}
	return core.WithCSRFToken(ctx, token), token, nil
}

// formPayload keeps the first value of each posted field, sanitized.
func (r *Router) formPayload(form url.Values) map[string]string {
	payload := make(map[string]string, len(form))
	for key, values := range form {
		if key == eventField || len(values) == 0 {
			continue
		}
		if r.cfg.CSRF != nil && key == r.cfg.CSRF.FormField() {
			continue
		}
		payload[key] = values[0]
	}
	return security.SanitizeValues(payload)
}

func extractParams(req *http.Request) core.Params {
	params := make(core.Params)
	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionRequired),
		errors.Is(err, view.ErrUnknownEvent),
		errors.Is(err, wizard.ErrUnknownField),
		errors.Is(err, wizard.ErrNotFinalStep):
		return http.StatusBadRequest
	case errors.Is(err, wizard.ErrSubmitted):
		return http.StatusConflict
	case errors.Is(err, ErrSessionLimit):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (r *Router) defaultErrorHandler(w http.ResponseWriter, req *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		r.cfg.Logger.Error("request failed", logging.String("path", req.URL.Path), logging.Err(err))
		http.Error(w, http.StatusText(code), code)
		return
	}
	http.Error(w, err.Error(), code)
}
