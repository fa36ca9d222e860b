package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nspcc-dev/neo-go/pkg/util"

	"github.com/Perfect-Abstractions/Compose-sub004/internal/access"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/config"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/diamond"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/events"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/engine/metrics"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/facets/script"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/httpapi"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/manifest"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/middleware"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/state"
	"github.com/Perfect-Abstractions/Compose-sub004/internal/storage/postgres"
	"github.com/Perfect-Abstractions/Compose-sub004/pkg/logger"
)

// EventBufferSize is the number of audit events kept in memory.
const EventBufferSize = 4096

// Application is a configured diamond node.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	journal state.Journal
	closers []func() error

	Diamond *diamond.Diamond
	Code    *diamond.CodeStore
	Events  *events.RingBuffer
	Metrics *metrics.Collector

	limiter *middleware.RateLimiter
	server  *http.Server
	stop    chan struct{}
}

// Option customizes New.
type Option func(*Application)

// WithJournal overrides the journal selected by the database config.
func WithJournal(j state.Journal) Option {
	return func(a *Application) { a.journal = j }
}

// New builds an application from cfg: it restores persisted state,
// bootstraps the diamond and prepares the HTTP server.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("diamondd", logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	}

	a := &Application{
		cfg:    cfg,
		log:    log,
		Code:   diamond.NewCodeStore(),
		Events: events.NewRingBuffer(EventBufferSize),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	unsubscribe := a.Events.Subscribe(auditLog(log.Named("audit")))
	a.closers = append(a.closers, func() error {
		unsubscribe()
		return nil
	})
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.NewCollector("diamond")
	}

	if a.journal == nil && cfg.Database.DSN != "" {
		j, err := postgres.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if err := j.Migrate(ctx); err != nil {
			_ = j.Close()
			return nil, err
		}
		a.journal = j
		a.closers = append(a.closers, j.Close)
	}

	root := state.NewRoot()
	if a.journal != nil {
		n, err := state.Restore(ctx, root, a.journal)
		if err != nil {
			a.close()
			return nil, err
		}
		log.WithField("keys", n).Info("State restored")
	}

	guard, err := buildGuard(cfg.Diamond.Guard)
	if err != nil {
		a.close()
		return nil, err
	}

	dopts := []diamond.Option{
		diamond.WithGuard(guard),
		diamond.WithLogger(log.Named("diamond")),
		diamond.WithEvents(a.Events),
		diamond.WithMaxDepth(cfg.Diamond.MaxDepth),
	}
	if a.Metrics != nil {
		dopts = append(dopts, diamond.WithMetrics(a.Metrics))
	}
	if a.journal != nil {
		dopts = append(dopts, diamond.WithJournal(a.journal))
	}
	a.Diamond, err = diamond.New(root, a.Code, dopts...)
	if err != nil {
		a.close()
		return nil, err
	}

	if err := a.bootstrap(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.limiter = middleware.NewRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst, log.Named("ratelimit"))
	a.server = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return a, nil
}

func buildGuard(cfg config.GuardConfig) (diamond.Guard, error) {
	switch cfg.Kind {
	case config.GuardRole:
		return access.AnyGuard{access.OwnerGuard{}, access.RoleGuard{Role: access.ParseRole(cfg.Role)}}, nil
	case config.GuardPolicy:
		return access.NewPolicyGuard(cfg.Policy)
	default:
		return access.OwnerGuard{}, nil
	}
}

// bootstrap deploys the manifest facets and runs the bootstrap cut once.
// Deployment is deterministic, so on restart the facets land at the
// addresses the restored registry points to.
func (a *Application) bootstrap(ctx context.Context) error {
	var owner util.Uint160
	if a.cfg.Diamond.Owner != "" {
		var err error
		if owner, err = diamond.ParseAddress(a.cfg.Diamond.Owner); err != nil {
			return err
		}
	}

	var cuts []diamond.Cut
	var init *diamond.Init
	if path := a.cfg.Diamond.Manifest; path != "" {
		m, err := manifest.Load(path)
		if err != nil {
			return err
		}
		plan, err := m.Deploy(a.Code, owner)
		if err != nil {
			return fmt.Errorf("deploy manifest: %w", err)
		}
		for name, addr := range plan.Addresses {
			a.log.WithField("facet", name).WithField("address", diamond.FormatAddress(addr)).Debug("Facet deployed")
		}
		cuts, init = plan.Cuts, plan.Init
	}

	// script facets deployed at runtime; manifest facets go first so their
	// deterministic addresses match the first start
	var restored int
	var err error
	a.Diamond.Read(func(st state.Store) {
		restored, err = script.Restore(a.Code, st)
	})
	if err != nil {
		return fmt.Errorf("restore script facets: %w", err)
	}
	if restored > 0 {
		a.log.WithField("facets", restored).Info("Script facets restored")
	}

	if owner.Equals(util.Uint160{}) {
		if len(cuts) > 0 || init != nil {
			return errors.New("bootstrap: owner is required to apply a manifest")
		}
		a.log.Warn("No owner configured; diamond starts without bootstrap")
		return nil
	}

	err = a.Diamond.Bootstrap(ctx, owner, cuts, init)
	switch {
	case errors.Is(err, diamond.ErrAlreadyBootstrapped):
		a.log.WithField("selectors", len(a.Diamond.Selectors())).Info("Diamond already bootstrapped")
		return nil
	case err != nil:
		return fmt.Errorf("bootstrap: %w", err)
	}
	a.log.WithFields(map[string]interface{}{
		"owner":     diamond.FormatAddress(owner),
		"selectors": len(a.Diamond.Selectors()),
	}).Info("Diamond bootstrapped")
	return nil
}

// Handler returns the HTTP handler with the middleware chain applied.
func (a *Application) Handler() http.Handler {
	opts := httpapi.Options{Events: a.Events, Logger: a.log.Named("httpapi")}
	if a.Metrics != nil {
		opts.Metrics = a.Metrics.Registry()
	}
	r := httpapi.NewHandler(a.Diamond, opts)

	auth := middleware.NewAuthMiddleware(a.cfg.Auth.JWTSecret, a.log.Named("auth"), []string{"/healthz", "/metrics"})
	chain := []mux.MiddlewareFunc{middleware.RequestID(a.log.Named("http"))}
	if a.Metrics != nil {
		chain = append(chain, middleware.MetricsMiddleware(a.Metrics))
	}
	chain = append(chain, auth.Handler)
	if a.limiter != nil {
		chain = append(chain, a.limiter.Handler)
	}
	r.Use(chain...)
	return r
}

// Name implements the lifecycle contract.
func (a *Application) Name() string { return "diamondd" }

// Start serves HTTP until Stop is called. It returns once the listener is
// bound.
func (a *Application) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	a.limiter.StartCleanup(10*time.Minute, a.stop)
	if a.Metrics != nil {
		go a.tickUptime()
	}

	a.log.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("HTTP server stopped")
		}
	}()
	return nil
}

func (a *Application) tickUptime() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.Metrics.UpdateUptime()
		case <-a.stop:
			return
		}
	}
}

// Stop shuts the server down and releases the journal.
func (a *Application) Stop(ctx context.Context) error {
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := a.server.Shutdown(ctx)
	a.close()
	return err
}

func (a *Application) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.WithError(err).Warn("Close failed")
		}
	}
	a.closers = nil
}
