package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/markerstore/marker-node/internal/command"
	"github.com/markerstore/marker-node/internal/config"
	"github.com/markerstore/marker-node/internal/entityview"
	"github.com/markerstore/marker-node/internal/eventlog"
	"github.com/markerstore/marker-node/internal/hlc"
	"github.com/markerstore/marker-node/internal/icons"
	"github.com/markerstore/marker-node/internal/metrics"
	"github.com/markerstore/marker-node/internal/peerserver"
	"github.com/markerstore/marker-node/internal/replication"
	"github.com/markerstore/marker-node/internal/storage"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("starting marker node",
		zap.Uint64("node_id", cfg.NodeID),
		zap.String("listen_addr", cfg.ListenAddr),
		zap.Int("peer_count", len(cfg.Peers)))

	m := metrics.NewMetrics("marker")

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer db.Close()
	logger.Info("storage opened", zap.String("path", cfg.DBPath))

	hlcClock := hlc.NewClock(cfg.NodeID, cfg.HLCMaxDrift)
	logger.Info("hlc clock initialized", zap.Uint64("node_id", cfg.NodeID), zap.Duration("max_drift", cfg.HLCMaxDrift))

	events := eventlog.NewBoltStore(db)
	view := entityview.NewBoltStore(db)
	checkpoints := checkpointStore(db)
	iconSet := icons.NewSet(cfg.Icons)

	commandService := command.NewService(cfg.NodeID, hlcClock, events, view, iconSet, m, logger)

	peerClient := replication.NewHTTPPeerClient(&http.Client{Timeout: 10 * time.Second})
	replicator := replication.NewReplicator(cfg.NodeID, events, view, checkpoints, hlcClock, peerClient, cfg.Peers, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go replicator.Run(ctx, time.Duration(cfg.PullIntervalSecs)*time.Second)
	logger.Info("replication loop started", zap.Int("pull_interval_secs", cfg.PullIntervalSecs))

	router := chi.NewRouter()
	router.Mount("/replication", peerserver.NewHandler(cfg.NodeID, events, logger).Routes())
	router.Mount("/api/v1/markers", markerRoutes(commandService, logger))

	apiServer := &http.Server{Addr: cfg.ListenAddr, Handler: router}
	go func() {
		logger.Info("api server listening", zap.String("addr", cfg.ListenAddr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server failed", zap.Error(err))
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	apiServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)
	logger.Info("shutdown complete")
}
