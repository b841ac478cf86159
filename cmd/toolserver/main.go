package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"wattwise/internal/adapter/gateway"
	"wattwise/internal/adapter/tool"
	"wattwise/internal/infra/config"
	"wattwise/internal/infra/logger"
	"wattwise/internal/infra/tracer"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`toolserver - Renewable energy tool execution service

USAGE:
    toolserver [FLAGS]

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./config.yaml)
    --addr ADDR        Listen address (default: :8000)

ENDPOINTS:
    GET  /health            Liveness check
    GET  /tools             Tool catalog
    POST /api/generate_key  Exchange client credentials for an API key
    POST /api/tool          Execute a tool (X-API-Key required)

CONFIGURATION:
    Client credentials come from gateway.client_id / gateway.client_secret
    (WATTWISE_GATEWAY_CLIENT_ID / WATTWISE_GATEWAY_CLIENT_SECRET).`)
}

func parseFlags() (configPath, addr string) {
	configPath = "config.yaml"
	if p := os.Getenv("WATTWISE_CONFIG"); p != "" {
		configPath = p
	}
	addr = ":8000"

	for i := 1; i < len(os.Args); i++ {
		arg := os.Args[i]
		switch {
		case arg == "--config" && i+1 < len(os.Args):
			configPath = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--addr" && i+1 < len(os.Args):
			addr = os.Args[i+1]
			i++
		case strings.HasPrefix(arg, "--addr="):
			addr = strings.TrimPrefix(arg, "--addr=")
		}
	}
	return configPath, addr
}

func run() error {
	configPath, addr := parseFlags()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	if cfg.Gateway.ClientID == "" || cfg.Gateway.ClientSecret == "" {
		return fmt.Errorf("gateway.client_id and gateway.client_secret must be configured")
	}
	cred, err := gateway.NewClientCredential(cfg.Gateway.ClientID, cfg.Gateway.ClientSecret)
	if err != nil {
		return fmt.Errorf("client credential: %w", err)
	}
	issuer := gateway.NewKeyIssuer([]gateway.ClientCredential{cred})

	catalog := tool.NewDefaultCatalog(log)
	srv := gateway.NewServer(catalog, tool.NewSynthesizer(), issuer, gateway.ServerConfig{
		Addr: addr,
	}, log)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("toolserver starting", "addr", addr, "tools", len(catalog.Definitions()))

	// Start blocks until the context is cancelled, then shuts down.
	return srv.Start(ctx)
}
