package app

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumora-app/billing-service/config"
	"github.com/lumora-app/billing-service/internal/controller/rest"
	"github.com/lumora-app/billing-service/internal/controller/rest/handlers"
	"github.com/lumora-app/billing-service/internal/domain/billing"
	"github.com/lumora-app/billing-service/internal/external/crestpay"
	"github.com/lumora-app/billing-service/internal/external/kafka"
	"github.com/lumora-app/billing-service/internal/external/opensearch"
	order_repo "github.com/lumora-app/billing-service/internal/repo/order"
	"github.com/lumora-app/billing-service/internal/webhook"
	"github.com/lumora-app/billing-service/pkg/health"
	"github.com/lumora-app/billing-service/pkg/logger"
	"github.com/lumora-app/billing-service/pkg/postgres"
)

//go:embed migrations/*.sql
var MigrationFS embed.FS

const httpShutdownTimeout = 10 * time.Second

func Run(cfg config.Config) {
	l := logger.New(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.CrestpayAPIKey == "" {
		l.Warn("CRESTPAY_API_KEY is not set: order confirmation will fail until it is configured")
	}

	engine := NewGinEngine(l)

	pool, err := postgres.New(cfg.PgURL, postgres.MaxPoolSize(cfg.PgPoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pool.Close()

	if err := ApplyMigrations(cfg.PgURL, MigrationFS); err != nil {
		l.Fatal(fmt.Errorf("app - Run - ApplyMigrations: %w", err))
	}

	orderRepo := order_repo.NewPgOrderRepo(pool)

	gatewayClient := crestpay.New(
		cfg.CrestpayBaseURL,
		cfg.CrestpayAPIKey,
		&http.Client{Timeout: cfg.HTTPCrestpayClientTimeout},
	)

	var auditSink billing.AuditSink
	if len(cfg.OpensearchUrls) > 0 {
		sink, err := opensearch.NewAuditSink(ctx, cfg.OpensearchUrls, cfg.OpensearchIndexAudit)
		if err != nil {
			l.Fatal(fmt.Errorf("app - Run - opensearch.NewAuditSink: %w", err))
		}
		auditSink = sink
	} else {
		l.Info("OpenSearch not configured: audit trail disabled")
	}

	reconciler := billing.NewReconcilerService(orderRepo, gatewayClient, auditSink, l)

	checkers := []health.Checker{health.NewPostgresChecker(pool.Pool)}

	var processor webhook.Processor
	if cfg.WebhookMode == "kafka" {
		l.Info("Webhook mode: kafka - publishing webhooks for deferred reconciliation")
		publisher := kafka.NewPublisher(l, cfg.KafkaBrokers, cfg.KafkaWebhooksTopic)
		defer publisher.Close()

		processor = webhook.NewAsyncProcessor(publisher)
		checkers = append(checkers, health.NewKafkaChecker(cfg.KafkaBrokers))

		StartWorkers(ctx, l, cfg, reconciler)
	} else {
		l.Info("Webhook mode: sync - reconciling webhooks in the request path")
		processor = webhook.NewSyncProcessor(reconciler)
	}

	billingHandler := handlers.NewBillingHandler(reconciler, processor, auditSink, l)
	router := rest.NewRouter(billingHandler, health.NewRegistry(checkers...))
	router.SetUp(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	go func() {
		l.Info("Starting HTTP server: port=%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Error("HTTP server error: error=%v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	l.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("HTTP server shutdown error: error=%v", err)
	}
}
