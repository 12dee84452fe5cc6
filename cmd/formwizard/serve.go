package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gabrielmiguelok/formwizard/client"
	"github.com/gabrielmiguelok/formwizard/internal/config"
	"github.com/gabrielmiguelok/formwizard/internal/view"
	"github.com/gabrielmiguelok/formwizard/pkg/health"
	"github.com/gabrielmiguelok/formwizard/pkg/limits"
	"github.com/gabrielmiguelok/formwizard/pkg/logging"
	"github.com/gabrielmiguelok/formwizard/pkg/router"
	"github.com/gabrielmiguelok/formwizard/pkg/security"
	"github.com/gabrielmiguelok/formwizard/pkg/shutdown"
	"github.com/gabrielmiguelok/formwizard/pkg/state"
	"github.com/gabrielmiguelok/formwizard/pkg/transport"
	"github.com/gabrielmiguelok/formwizard/pkg/wizard"
)

const (
	sessionSweepInterval = time.Minute
	storeSweepInterval   = 5 * time.Minute
	bucketIdle           = 10 * time.Minute
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the wizard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Addr = addr
			}
			return runServe(cmd.Context(), a.cfg, a.logger, a.sync)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides WIZARD_ADDR")
	return cmd
}

// server is the assembled HTTP application.
type server struct {
	handler http.Handler
	router  *router.Router
	store   state.Store
	checker *health.Checker
	buckets *limits.TokenBucket // nil when rate limiting is off
}

func newServer(cfg config.Config, logger logging.Logger) (*server, error) {
	def, err := loadDefinition(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	csrf, err := security.NewCSRFProtection(security.CSRFConfig{
		Secret:        []byte(cfg.CSRFSecret),
		SessionCookie: router.DefaultSessionCookie,
		FormField:     view.CSRFField,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	submitter, breaker := buildSubmitter(cfg, logger)
	factory := view.NewFactory(view.ComponentConfig{
		Definition: def,
		Store:      store,
		Logger:     logger,
		Options: []wizard.Option{
			wizard.WithSubmitter(submitter),
			wizard.WithSessionTTL(cfg.SessionTTL),
		},
	})

	guard, buckets := buildGuard(cfg, logger)

	tc := transport.DefaultConfig()
	tc.AllowedOrigins = cfg.AllowedOrigins
	tc.InsecureDevMode = cfg.DevMode

	r := router.New(factory, router.Config{
		Title:        def.Title,
		SecureCookie: cfg.SecureCookie,
		Transport:    tc,
		CSRF:         csrf,
		Sessions: router.SessionManagerConfig{
			MaxSessions: cfg.MaxSessions,
			SessionTTL:  cfg.SessionTTL,
		},
		Logger: logger,
		Assets: client.Assets(),
		Guard:  guard,
	})
	r.Use(logging.RequestLogger(logger))
	r.Use(router.Recovery(logger))
	r.Use(router.SecureHeaders(router.DefaultSecureHeadersConfig()))

	checker := health.NewChecker(version)
	checker.AddCriticalCheck("store", health.StoreCheck(store), 2*time.Second)
	checker.AddCheck("sessions", health.CapacityCheck("sessions", r.Sessions().Count, cfg.MaxSessions), time.Second)
	if breaker != nil {
		checker.AddCheck("submission", health.StateCheck(breaker.State, wizard.CircuitOpen), time.Second)
	}
	r.Handle("GET /healthz", checker.HealthHandler())
	r.Handle("GET /livez", checker.LivenessHandler())
	r.Handle("GET /readyz", checker.ReadinessHandler())

	return &server{handler: r, router: r, store: store, checker: checker, buckets: buckets}, nil
}

// buildGuard limits request rate and concurrent connections per client.
func buildGuard(cfg config.Config, logger logging.Logger) (router.Middleware, *limits.TokenBucket) {
	key := limits.KeyFunc(limits.ClientIP)
	if cfg.TrustProxy {
		key = limits.ForwardedClientIP
	}

	var mw []router.Middleware
	var buckets *limits.TokenBucket
	if cfg.RateLimit > 0 {
		buckets = limits.NewTokenBucket(cfg.RateLimit, cfg.RateBurst)
		mw = append(mw, limits.RateLimitMiddleware(buckets, key, logger))
	}
	if cfg.MaxConnsPerIP > 0 {
		mw = append(mw, limits.NewConnectionLimiter(cfg.MaxConnsPerIP).Middleware(key))
	}
	return func(h http.Handler) http.Handler { return router.Chain(h, mw...) }, buckets
}

func runServe(ctx context.Context, cfg config.Config, logger logging.Logger, syncLogger func()) error {
	srv, err := newServer(cfg, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sh := shutdown.NewHandler(shutdown.Config{
		Timeout: cfg.ShutdownTimeout,
		Signals: shutdown.DefaultConfig().Signals,
		Logger:  logger,
	})
	sh.RegisterFunc("http", shutdown.PriorityHTTP, httpServer.Shutdown)
	sh.RegisterFunc("sessions", shutdown.PrioritySessions, srv.router.Sessions().Close)
	sh.RegisterCloser("store", shutdown.PriorityStore, srv.store)
	sh.RegisterFunc("logger", shutdown.PriorityLogger, func(context.Context) error {
		syncLogger()
		return nil
	})

	ctx, stop := sh.NotifyContext(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", logging.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-srv.router.Sessions().StartCleanupRoutine(gctx, sessionSweepInterval)
		return nil
	})
	if sweeper, ok := srv.store.(interface {
		Sweep(context.Context) (int64, error)
	}); ok {
		g.Go(func() error {
			sweepStore(gctx, sweeper.Sweep, storeSweepInterval, logger)
			return nil
		})
	}
	if srv.buckets != nil {
		g.Go(func() error {
			ticker := time.NewTicker(bucketIdle)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					srv.buckets.Sweep(bucketIdle)
				}
			}
		})
	}
	g.Go(func() error {
		return sh.Wait(gctx)
	})
	return g.Wait()
}

// sweepStore removes expired rows until ctx is done.
func sweepStore(ctx context.Context, sweep func(context.Context) (int64, error), interval time.Duration, logger logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweep(ctx)
			if err != nil {
				logger.Warn("store sweep failed", logging.Err(err))
				continue
			}
			if n > 0 {
				logger.Debug("store swept", logging.Int("removed", int(n)))
			}
		}
	}
}
