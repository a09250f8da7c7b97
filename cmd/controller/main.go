// Package main is the entry point for the outpost controller.
// The controller is the control plane: tenant and key administration, job
// submission, and the audit query surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"outpost/internal/audit"
	"outpost/internal/auth"
	"outpost/internal/config"
	"outpost/internal/controller"
	"outpost/internal/logger"
	"outpost/internal/observability"
	"outpost/internal/store/postgres"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	configPath := flag.String("config", "", "Path to config file (default: outpost.yaml in current directory)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogger := logger.New()

	ctx := context.Background()
	st, err := postgres.New(ctx, cfg.DatabaseURL, postgres.WithVisibilityTimeout(cfg.VisibilityTimeout))
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer st.Close()

	if *migrateFlag {
		log.Println("Running database migrations...")
		if err := postgres.Migrate(st.DB()); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")
	}

	shutdownTracer, err := observability.InitTracer(ctx, "outpost-controller", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("Failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Printf("Failed to shutdown metrics: %v", err)
		}
	}()

	// Observable gauge so queue depth is only queried when scraped.
	meter := otel.Meter("outpost-controller")
	_, err = meter.Int64ObservableGauge("outpost.queue.depth",
		metric.WithDescription("Current number of messages in the dispatch queue"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			count, err := st.Count(ctx)
			if err != nil {
				log.Printf("Failed to count queue depth: %v", err)
				return nil // Don't crash metrics scrape on DB error
			}
			obs.Observe(count)
			return nil
		}),
	)
	if err != nil {
		log.Printf("Failed to register queue depth metric: %v", err)
	}

	if cfg.SystemSecret == "" {
		log.Fatalf("system_secret is required (OUTPOST_SYSTEM_SECRET)")
	}

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(addr, controller.Deps{
		Store:          st,
		Queue:          st,
		Audit:          audit.NewService(st, slogger, audit.WithRetentionDays(cfg.AuditRetentionDays)),
		Authorizer:     auth.NewAuthorizer(st, slogger),
		SystemSecret:   cfg.SystemSecret,
		MetricsHandler: metricsHandler,
		Logger:         slogger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		log.Printf("Outpost controller starting on %s", addr)
		if err := srv.Run(runCtx); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down controller...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited properly")
}
