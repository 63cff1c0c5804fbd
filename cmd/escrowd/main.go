package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/StarShopCr/escrowd/auth"
	"github.com/StarShopCr/escrowd/chain"
	"github.com/StarShopCr/escrowd/config"
	"github.com/StarShopCr/escrowd/escrow"
	"github.com/StarShopCr/escrowd/models"
	"github.com/StarShopCr/escrowd/notify"
	"github.com/StarShopCr/escrowd/observability/logging"
	"github.com/StarShopCr/escrowd/observability/otel"
	"github.com/StarShopCr/escrowd/server"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.Setup("escrowd", cfg.Environment)

	if cfg.OTLPEndpoint != "" {
		shutdown, err := otel.Init(context.Background(), otel.Config{
			ServiceName: "escrowd",
			Environment: cfg.Environment,
			Endpoint:    cfg.OTLPEndpoint,
			Insecure:    cfg.OTLPInsecure,
			Headers:     otel.ParseHeaders(cfg.OTLPHeaders),
		})
		if err != nil {
			log.Fatalf("telemetry init error: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				logger.Warn("telemetry shutdown failed", "err", err)
			}
		}()
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("database connection error: %v", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("auto migrate error: %v", err)
	}

	chainClient := chain.NewClient(chain.Config{URL: cfg.ChainRPCBase, Timeout: cfg.ChainTimeout})

	var sink notify.Sink = notify.LogSink{Logger: logger}
	if cfg.WebhookURL != "" {
		sink = notify.NewWebhookSink(notify.WebhookConfig{
			URL:     cfg.WebhookURL,
			Secret:  cfg.WebhookSecret,
			Timeout: cfg.WebhookTimeout,
		})
	}

	engine := escrow.New(escrow.Config{
		DB:     db,
		Chain:  chainClient,
		Sink:   sink,
		Logger: logger,
	})

	verifier, err := auth.NewVerifier(auth.Options{
		Secret:         []byte(cfg.JWTSecret),
		Issuer:         cfg.JWTIssuer,
		Audience:       cfg.JWTAudience,
		MaxSkewSeconds: cfg.JWTMaxSkew,
	})
	if err != nil {
		log.Fatalf("auth verifier error: %v", err)
	}

	srv := server.New(server.Config{
		DB:       db,
		Engine:   engine,
		Verifier: verifier,
		Logger:   logger,
	})

	addr := ":" + cfg.Port
	logger.Info("starting escrowd", "addr", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
