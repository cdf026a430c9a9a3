package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"tiergate/internal/api"
	"tiergate/internal/api/handlers"
	"tiergate/internal/engine/tiering"
	"tiergate/internal/pkg/logger"
	"tiergate/internal/platform/audit"
	"tiergate/internal/platform/config"
	"tiergate/internal/platform/procore"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	store, err := audit.Open(cfg.Audit.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open decision store: %v", err)
	}
	defer store.Close()

	loc, err := time.LoadLocation(cfg.Tiering.DisplayTimezone)
	if err != nil {
		log.Fatalf("Invalid display timezone %q: %v", cfg.Tiering.DisplayTimezone, err)
	}

	// Procore access
	creds := procore.NewCredentials(cfg.Procore)
	client := procore.NewClient(cfg.Procore, creds)
	fetcher := procore.NewFetcher(client)

	// Decision engine
	writer := tiering.NewWriter(fetcher, cfg.Tiering.Fields, loc)
	service, err := tiering.NewService(fetcher, creds, writer, store, cfg.Tiering)
	if err != nil {
		log.Fatalf("Failed to build tiering service: %v", err)
	}

	// Handlers
	metrics := handlers.NewMetrics()
	webhookHandler := handlers.NewWebhookHandler(service, metrics)
	oauthHandler := handlers.NewOAuthHandler(creds)
	healthHandler := handlers.NewHealthHandler(store, creds)
	metricsHandler := handlers.NewMetricsHandler(metrics)
	auditHandler := handlers.NewAuditHandler(store)

	deps := &api.Dependencies{
		WebhookHandler: webhookHandler,
		OAuthHandler:   oauthHandler,
		HealthHandler:  healthHandler,
		MetricsHandler: metricsHandler,
		AuditHandler:   auditHandler,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
