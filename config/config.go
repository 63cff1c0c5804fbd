package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration for the escrow service.
type Config struct {
	Port           string
	Environment    string
	DatabaseURL    string
	ChainRPCBase   string
	ChainTimeout   time.Duration
	WebhookURL     string
	WebhookSecret  string
	WebhookTimeout time.Duration
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	JWTMaxSkew     int
	OTLPEndpoint   string
	OTLPInsecure   bool
	OTLPHeaders    string
}

// FromEnv loads configuration from environment variables required by the
// service. ESCROW_WEBHOOK_URL is optional; when empty, events go to the log
// sink.
func FromEnv() (*Config, error) {
	dbURL := os.Getenv("ESCROW_DB_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("ESCROW_DB_URL is required")
	}

	rpcBase := os.Getenv("ESCROW_CHAIN_RPC_BASE")
	if rpcBase == "" {
		return nil, fmt.Errorf("ESCROW_CHAIN_RPC_BASE is required")
	}

	jwtSecret := strings.TrimSpace(os.Getenv("ESCROW_JWT_SECRET"))
	if jwtSecret == "" {
		return nil, fmt.Errorf("ESCROW_JWT_SECRET is required")
	}

	webhookURL := strings.TrimSpace(os.Getenv("ESCROW_WEBHOOK_URL"))
	webhookSecret := strings.TrimSpace(os.Getenv("ESCROW_WEBHOOK_SECRET"))
	if webhookURL != "" && webhookSecret == "" {
		return nil, fmt.Errorf("ESCROW_WEBHOOK_SECRET is required when ESCROW_WEBHOOK_URL is set")
	}

	chainTimeout := parseIntEnv("ESCROW_CHAIN_TIMEOUT_SECONDS", 15)
	if chainTimeout <= 0 {
		return nil, fmt.Errorf("invalid ESCROW_CHAIN_TIMEOUT_SECONDS %d", chainTimeout)
	}
	webhookTimeout := parseIntEnv("ESCROW_WEBHOOK_TIMEOUT_SECONDS", 10)
	if webhookTimeout <= 0 {
		return nil, fmt.Errorf("invalid ESCROW_WEBHOOK_TIMEOUT_SECONDS %d", webhookTimeout)
	}

	return &Config{
		Port:           normalizePort(getEnvDefault("ESCROW_PORT", "8080")),
		Environment:    strings.TrimSpace(os.Getenv("ESCROW_ENV")),
		DatabaseURL:    dbURL,
		ChainRPCBase:   rpcBase,
		ChainTimeout:   time.Duration(chainTimeout) * time.Second,
		WebhookURL:     webhookURL,
		WebhookSecret:  webhookSecret,
		WebhookTimeout: time.Duration(webhookTimeout) * time.Second,
		JWTSecret:      jwtSecret,
		JWTIssuer:      strings.TrimSpace(os.Getenv("ESCROW_JWT_ISSUER")),
		JWTAudience:    strings.TrimSpace(os.Getenv("ESCROW_JWT_AUDIENCE")),
		JWTMaxSkew:     parseIntEnv("ESCROW_JWT_MAX_SKEW_SECONDS", 60),
		OTLPEndpoint:   strings.TrimSpace(os.Getenv("ESCROW_OTLP_ENDPOINT")),
		OTLPInsecure:   parseBoolEnv("ESCROW_OTLP_INSECURE"),
		OTLPHeaders:    strings.TrimSpace(os.Getenv("ESCROW_OTLP_HEADERS")),
	}, nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func normalizePort(port string) string {
	if port == "" {
		return "8080"
	}
	if _, err := strconv.Atoi(port); err == nil {
		return port
	}
	// Allow values like ":8080".
	if len(port) > 0 && port[0] == ':' {
		return port[1:]
	}
	return port
}

func parseBoolEnv(key string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && parsed
}

func parseIntEnv(key string, def int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return def
}
