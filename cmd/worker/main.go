// Package main is the entry point for the outpost worker.
// The worker leases dispatched jobs from the queue and drives each one to a
// terminal state.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"outpost/internal/audit"
	"outpost/internal/config"
	"outpost/internal/logger"
	"outpost/internal/observability"
	"outpost/internal/secrets"
	"outpost/internal/store/postgres"
	"outpost/internal/worker"
	"outpost/internal/worker/runtime"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: outpost.yaml in current directory)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := postgres.New(ctx, cfg.DatabaseURL, postgres.WithVisibilityTimeout(cfg.VisibilityTimeout))
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer st.Close()

	shutdownTracer, err := observability.InitTracer(ctx, "outpost-worker", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	var rt runtime.Runtime
	switch cfg.Runtime {
	case "docker":
		dockerRT, err := runtime.NewDockerRuntime()
		if err != nil {
			log.Fatalf("Failed to create Docker runtime: %v", err)
		}
		rt = dockerRT
		log.Println("Using docker runtime")
	case "exec":
		fallthrough
	default:
		rt = runtime.NewExecRuntime()
		log.Printf("Using exec runtime (workspace root: %s)", cfg.WorkspaceRoot)
	}

	auditSvc := audit.NewService(st, slogger, audit.WithRetentionDays(cfg.AuditRetentionDays))
	secretMgr := secrets.NewManager(st, cfg.SecretCacheTTL)

	executor := worker.NewExecutor(st, auditSvc, rt, secretMgr, worker.ExecutorConfig{
		WorkspaceRoot: cfg.WorkspaceRoot,
		JobTimeout:    cfg.JobTimeout,
	}, slogger)

	poller := worker.NewPoller(st, executor, auditSvc, worker.PollerConfig{
		ReceiveWait: cfg.ReceiveWait,
	}, slogger)

	go poller.Run(ctx)

	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		log.Printf("Worker metrics listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down worker...")
	cancel()

	<-poller.Done()
}
