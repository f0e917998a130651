package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolshelf/health"
	"github.com/jonwraymond/toolshelf/kv"
	"github.com/jonwraymond/toolshelf/observe"
	"github.com/jonwraymond/toolshelf/offline"
	"github.com/jonwraymond/toolshelf/resilience"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *cliOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, metrics and an offline-capable proxy of the configured origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				if listen != "" {
					a.cfg.Server.ListenAddress = listen
				}
				return a.serve(cmd.Context())
			})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "override server.listenAddress")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	var proxy http.Handler
	if origin := a.cfg.Offline.Origin; origin != "" {
		if _, err := a.prepareOffline(ctx, false); err != nil {
			a.logger.Warn(ctx, "offline cache not ready, proxying to the network",
				observe.F("origin", origin),
				observe.F("error", err),
			)
		}
		p, err := offline.NewProxy(origin, a.reg, a.logger)
		if err != nil {
			return err
		}
		proxy = p
	}

	handler, err := a.newRouter(proxy)
	if err != nil {
		return err
	}

	sc := a.cfg.Server
	srv := &http.Server{
		Addr:         sc.ListenAddress,
		Handler:      handler,
		ReadTimeout:  time.Duration(sc.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(sc.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info(ctx, "server listening", observe.F("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info(ctx, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newRouter mounts health and metrics endpoints, and proxy under "/*" when
// it is non-nil. Proxied requests are capped by server.maxConcurrent and
// bounded by server.writeTimeoutSeconds.
func (a *app) newRouter(proxy http.Handler) (http.Handler, error) {
	agg, err := a.newAggregator()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)

	health.Mount(r, agg)
	r.Handle("/metrics", promhttp.Handler())

	if proxy != nil {
		exec := resilience.NewExecutor(
			resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: a.cfg.Server.MaxConcurrent})),
			resilience.WithTimeout(time.Duration(a.cfg.Server.WriteTimeoutSeconds)*time.Second),
		)
		r.Handle("/*", exec.Middleware(proxy))
	}
	return r, nil
}

func (a *app) newAggregator() (*health.Aggregator, error) {
	agg := health.NewAggregator()

	store := a.store
	checkers := []health.Checker{
		health.PingChecker("favorites", func(ctx context.Context) error { return kv.Ping(ctx, store) }),
		a.catalogChecker(),
		health.NewCheckerFunc("offline", a.offlineHealth),
	}
	for _, c := range checkers {
		if err := agg.Register(c); err != nil {
			return nil, err
		}
	}
	return agg, nil
}

func (a *app) catalogChecker() health.Checker {
	c := a.cfg.Catalog
	if c.IsRemote() {
		return health.HTTPChecker("catalog", &http.Client{Timeout: c.Timeout()}, c.Source)
	}
	return health.PingChecker("catalog", func(context.Context) error {
		_, err := os.Stat(c.Source)
		return err
	})
}

func (a *app) offlineHealth(_ context.Context) health.Result {
	if a.cfg.Offline.Origin == "" {
		return health.Healthy("offline proxy disabled")
	}
	w := a.reg.Active()
	if w == nil {
		return health.Degraded("no active cache version, serving from the network")
	}
	return health.Healthy(fmt.Sprintf("serving %s", w.Config().Version)).
		WithDetails(map[string]any{"version": w.Config().Version, "state": w.State().String()})
}
