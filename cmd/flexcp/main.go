// Command flexcp runs the control plane: the REST front door, the ADS
// gRPC server, and the metrics/health admin endpoint, sharing one
// database pool and one snapshot cache (spec 6.4's three listen
// addresses). Wiring and shutdown follow the teacher's cmd/flexds/main.go
// almost exactly -- context cancellation on SIGINT/SIGTERM, a WaitGroup
// per background server, a bounded grace period before forcing exit --
// generalized from one discovery-driven server to three HTTP/gRPC
// listeners sharing a database-backed core.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"log/slog"

	cachev3 "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	serverv3 "github.com/envoyproxy/go-control-plane/pkg/server/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flexcp/flexcp/internal/common/config"
	"github.com/flexcp/flexcp/internal/propagator"
	"github.com/flexcp/flexcp/internal/repo"
	"github.com/flexcp/flexcp/internal/rest"
	"github.com/flexcp/flexcp/internal/snapshot"
	"github.com/flexcp/flexcp/internal/telemetry"
	"github.com/flexcp/flexcp/internal/xds"
)

func main() {
	cfg, err := config.Load(nil)
	if err != nil {
		slog.Error("loading configuration", "error", err)
		os.Exit(1)
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.LogLevel.Level()}
	var logger *slog.Logger
	if cfg.LogJSON {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
	}
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := repo.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		slog.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewRecorder(registry)

	auditRepo := repo.NewAuditRepo(db)
	clusterRepo := repo.NewClusterRepo(db, auditRepo)
	routeConfigRepo := repo.NewRouteConfigRepo(db, auditRepo)
	listenerRepo := repo.NewListenerRepo(db, auditRepo)
	filterRepo := repo.NewFilterRepo(db, auditRepo)
	dataplaneRepo := repo.NewDataplaneRepo(db, auditRepo)

	store := xds.NewStore(clusterRepo, routeConfigRepo, listenerRepo, filterRepo, dataplaneRepo)
	builder := snapshot.NewBuilder(store)
	delegate := cachev3.NewSnapshotCache(true, cachev3.IDHash{}, nil)
	snapCache := snapshot.NewCache(builder, delegate, metrics)
	prop := propagator.New(snapCache, store)

	keyFunc := func(t *jwt.Token) (any, error) { return cfg.JWTSigningKey, nil }

	runCtx, runCancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	slog.Info("creating ads server")
	callbacks := &xds.ServerCallbacks{Snapshots: snapCache, Metrics: metrics}
	adsServer := serverv3.NewServer(runCtx, delegate, callbacks)

	_, portStr, err := net.SplitHostPort(cfg.XDSBindAddr)
	if err != nil {
		slog.Error("parsing XDS_BIND_ADDR", "addr", cfg.XDSBindAddr, "error", err)
		os.Exit(1)
	}
	xdsPort, err := strconv.Atoi(portStr)
	if err != nil {
		slog.Error("parsing XDS_BIND_ADDR port", "addr", cfg.XDSBindAddr, "error", err)
		os.Exit(1)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		xds.RunGRPC(runCtx, adsServer, xdsPort, cfg.XDSKeepaliveTime, cfg.XDSKeepaliveTimeout)
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	admin := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("starting admin http server", "addr", cfg.MetricsAddr)
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin server failed", "error", err)
			os.Exit(1)
		}
	}()

	router := rest.New(rest.Deps{
		Clusters:     clusterRepo,
		RouteConfigs: routeConfigRepo,
		Listeners:    listenerRepo,
		Filters:      filterRepo,
		Dataplanes:   dataplaneRepo,
		Audit:        auditRepo,
		Propagator:   prop,
		JWTKeyFunc:   keyFunc,
		Metrics:      metrics,
	})
	restServer := &http.Server{
		Addr:         cfg.RESTAddr,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("starting rest server", "addr", cfg.RESTAddr)
		if err := restServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("rest server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	slog.Info("shutdown signal received")
	runCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	_ = admin.Shutdown(shutdownCtx)
	_ = restServer.Shutdown(shutdownCtx)

	select {
	case <-done:
		slog.Info("all services stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("shutdown timeout exceeded, forcing exit")
	}
	slog.Info("exiting")
}
