package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/sitecover/core"
	"github.com/signalsfoundry/sitecover/internal/cache"
	"github.com/signalsfoundry/sitecover/internal/config"
	"github.com/signalsfoundry/sitecover/internal/enrich"
	"github.com/signalsfoundry/sitecover/internal/httpapi"
	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/internal/observability"
	"github.com/signalsfoundry/sitecover/internal/overlaysearch"
	"github.com/signalsfoundry/sitecover/internal/refresh"
	"github.com/signalsfoundry/sitecover/internal/rpc"
	"github.com/signalsfoundry/sitecover/internal/simprovider"
	"github.com/signalsfoundry/sitecover/internal/sitestore"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC, HTTP and metrics servers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logging.New(cfg.LoggingConfig()))
		},
	}
}

// components holds everything runServe wires together, so tests can build
// the stack without listening.
type components struct {
	store    sitestore.Writer
	cache    cache.Cache
	searcher enrich.OverlaySearcher
	service  *enrich.Service
	rpcStats *observability.RPCCollector
	coverage *observability.CoverageCollector
	closers  []func()
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func buildComponents(ctx context.Context, cfg config.Config, reg prometheus.Registerer, log logging.Logger) (*components, error) {
	c := &components{}
	var err error

	c.rpcStats, err = observability.NewRPCCollector(reg)
	if err != nil {
		return nil, err
	}
	c.coverage, err = observability.NewCoverageCollector(reg)
	if err != nil {
		return nil, err
	}

	c.store, err = openStore(ctx, cfg.Store, c.rpcStats, log)
	if err != nil {
		return nil, err
	}
	if pg, ok := c.store.(*sitestore.Postgres); ok {
		c.closers = append(c.closers, pg.Close)
	}

	c.cache, err = cache.New(cache.Config{
		Backend:       cfg.Cache.Backend,
		TTL:           cfg.Cache.TTL,
		MaxCost:       cfg.Cache.MaxCost,
		RedisAddr:     cfg.Cache.RedisAddr,
		RedisDB:       cfg.Cache.RedisDB,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisPrefix:   cfg.Cache.RedisPrefix,
	})
	if err != nil {
		c.close()
		return nil, err
	}
	c.closers = append(c.closers, func() { _ = c.cache.Close() })
	if rc, ok := c.cache.(*cache.Redis); ok {
		if err := rc.Ping(ctx); err != nil {
			log.Warn(ctx, "redis cache unreachable; lookups will miss", logging.String("addr", cfg.Cache.RedisAddr), logging.Err(err))
		}
	}

	c.searcher, err = newSearcher(cfg, log)
	if err != nil {
		c.close()
		return nil, err
	}

	ops, err := core.OpsForBackend(cfg.Engine.Backend)
	if err != nil {
		c.close()
		return nil, err
	}
	engine := core.NewEngine(cfg.CoreConfig(),
		core.WithOps(ops),
		core.WithLogger(log),
		core.WithMetrics(c.coverage),
	)

	c.service = enrich.NewService(c.store, c.searcher, engine, cfg.LinkBuilder(),
		enrich.WithCache(c.cache),
		enrich.WithMetrics(c.coverage),
		enrich.WithLogger(log),
		enrich.WithSiteManager(c.store),
		enrich.WithConfig(enrich.Config{
			Concurrency:  cfg.Enrich.Concurrency,
			Window:       cfg.Enrich.Window,
			SharedSearch: cfg.Enrich.SharedSearch,
		}),
	)
	c.closers = append(c.closers, c.service.WatchStore(c.store))
	return c, nil
}

func runServe(ctx context.Context, cfg config.Config, log logging.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.TracingConfig(), log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	c, err := buildComponents(ctx, cfg, prometheus.NewRegistry(), log)
	if err != nil {
		return err
	}
	defer c.close()

	grpcServer, healthServer := rpc.NewServer(rpc.NewCoverageService(c.service, log), rpc.ServerOptions{
		Logger:  log,
		Metrics: c.rpcStats,
		Tracing: cfg.Tracing.Enabled,
	})
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.Server.GRPCAddr), logging.Err(err))
		return err
	}
	log.Info(ctx, "starting coverage gRPC server", logging.String("addr", cfg.Server.GRPCAddr))
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Error(ctx, "gRPC server exited", logging.Err(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpapi.NewRouter(c.service, log, c.rpcStats),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server exited", logging.Err(err))
		}
	}()
	log.Info(ctx, "starting coverage HTTP server", logging.String("addr", cfg.Server.HTTPAddr))

	metricsServer := serveMetrics(cfg.Server.MetricsAddr, c.rpcStats, log)

	var refresher *refresh.Refresher
	if c.searcher != nil && cfg.Refresh.Interval > 0 {
		refresher = refresh.New(c.store, c.service, refresh.Config{
			Interval: cfg.Refresh.Interval,
			Groups:   cfg.Refresh.Groups,
		}, refresh.WithMetrics(c.coverage), refresh.WithLogger(log))
		refresher.Start(ctx)
	}

	<-ctx.Done()
	log.Info(context.Background(), "shutting down sitecover")

	healthServer.Shutdown()
	if refresher != nil {
		refresher.Stop()
	}
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn(shutdownCtx, "HTTP shutdown failed", logging.Err(err))
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, metrics sitestore.MetricsRecorder, log logging.Logger) (sitestore.Writer, error) {
	switch {
	case cfg.PostgresDSN != "":
		pg, err := sitestore.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "using postgres site store")
		return pg, nil
	case cfg.SeedFile != "":
		mem, err := sitestore.LoadSeedFile(cfg.SeedFile, sitestore.WithMetrics(metrics))
		if err != nil {
			return nil, err
		}
		sites, groups := mem.Counts()
		log.Info(ctx, "loaded seed site store",
			logging.String("path", cfg.SeedFile),
			logging.Int("sites", sites),
			logging.Int("groups", groups),
		)
		return mem, nil
	default:
		log.Warn(ctx, "no site store configured; starting with an empty in-memory store")
		return sitestore.NewMemory(sitestore.WithMetrics(metrics)), nil
	}
}

// newSearcher prefers the simulated provider when a TLE file is set. It
// returns a nil searcher when nothing is configured.
func newSearcher(cfg config.Config, log logging.Logger) (enrich.OverlaySearcher, error) {
	ctx := context.Background()
	if path := cfg.Simulation.TLEFile; path != "" {
		sats, err := simprovider.LoadTLEFile(path)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "using simulated overlay provider",
			logging.String("path", path),
			logging.Int("satellites", len(sats)),
		)
		return simprovider.New(sats, simprovider.Config{
			FootprintKm:     cfg.Simulation.FootprintKm,
			Step:            cfg.Simulation.Step,
			ResolutionPerKm: cfg.Simulation.ResolutionPerKm,
		}), nil
	}

	client, err := overlaysearch.NewClient(overlaysearch.Config{
		BaseURL:     cfg.OverlaySearch.BaseURL,
		Endpoint:    cfg.OverlaySearch.Endpoint,
		QueryParams: cfg.OverlaySearch.QueryParams,
		Headers:     config.ParseHeaders(cfg.OverlaySearch.Headers),
		Timeout:     cfg.OverlaySearch.Timeout,
		RateLimit:   cfg.OverlaySearch.RateLimit,
		Burst:       cfg.OverlaySearch.Burst,
		Techniques:  cfg.OverlaySearch.ImagingTechniques,
	}, overlaysearch.WithLogger(log))
	if errors.Is(err, overlaysearch.ErrNotConfigured) {
		log.Warn(ctx, "overlay search not configured; only caller-supplied overlays can be evaluated")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return client, nil
}

func serveMetrics(addr string, collector *observability.RPCCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
