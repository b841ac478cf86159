package main

import (
	"context"
	"fmt"
	"log/slog"

	"wattwise/internal/adapter/llm"
	"wattwise/internal/domain"
	"wattwise/internal/infra/config"
)

// LLMComponents holds all LLM-related components.
type LLMComponents struct {
	Registry *llm.Registry
	// DefaultName is the registry name the orchestrator resolves when the
	// caller does not request a provider. Points at the failover-wrapped
	// provider when failover is enabled.
	DefaultName string
}

// initLLM initializes LLM providers, registry, and failover.
func initLLM(cfg *config.Config, log *slog.Logger) (*LLMComponents, error) {
	registry := llm.NewRegistry()

	cbCfg := cfg.LLM.CircuitBreaker
	for _, pc := range cfg.LLM.Providers {
		provider, err := createLLMProvider(pc, log)
		if err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}

		// Wrap with circuit breaker if enabled (per-provider).
		if cbCfg.Enabled {
			provider = llm.NewCircuitBreakerProvider(provider, cbCfg, log)
		}

		if err := registry.Register(provider); err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
	}

	if cbCfg.Enabled {
		log.Info("llm circuit breaker enabled",
			"max_failures", cbCfg.MaxFailures,
			"timeout", cbCfg.Timeout,
			"interval", cbCfg.Interval,
		)
	}

	defaultName := cfg.LLM.DefaultProvider
	defaultLLM, err := registry.Get(defaultName)
	if err != nil {
		return nil, fmt.Errorf("default llm provider: %w", err)
	}

	// Wrap the default with failover if enabled and register the wrapped
	// provider under its own name, so turns without an explicit provider
	// get the failover chain while explicit requests get the raw provider.
	if cfg.LLM.Failover.Enabled && len(cfg.LLM.Failover.Fallbacks) > 0 {
		var fallbacks []domain.LLMProvider
		for _, name := range cfg.LLM.Failover.Fallbacks {
			fb, err := registry.Get(name)
			if err != nil {
				return nil, fmt.Errorf("failover provider %s: %w", name, err)
			}
			fallbacks = append(fallbacks, fb)
		}
		failover := llm.NewFailoverProvider(defaultLLM, fallbacks, log)
		if err := registry.Register(failover); err != nil {
			return nil, fmt.Errorf("failover provider: %w", err)
		}
		defaultName = failover.Name()
		log.Info("model failover enabled", "fallbacks", cfg.LLM.Failover.Fallbacks)
	}

	log.Info("llm providers registered",
		"providers", registry.Names(),
		"default", defaultName,
	)

	return &LLMComponents{
		Registry:    registry,
		DefaultName: defaultName,
	}, nil
}

// createLLMProvider creates an LLM provider based on the type field.
func createLLMProvider(pc config.ProviderConfig, log *slog.Logger) (domain.LLMProvider, error) {
	switch pc.Type {
	case "openai", "":
		return llm.NewOpenAIProvider(pc, log)
	case "anthropic":
		return llm.NewAnthropicProvider(pc, log)
	case "legacy":
		return llm.NewLegacyProvider(pc, log)
	case "ollama":
		p := llm.NewOllamaProvider(pc, log)
		// Local models take a while to page in; warm up off the hot path.
		go func() {
			if err := p.Warmup(context.Background()); err != nil {
				log.Warn("ollama warmup failed", "provider", pc.Name, "error", err)
			}
		}()
		return p, nil
	case "bedrock":
		return llm.NewBedrockProvider(pc, log)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", pc.Type)
	}
}
