package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"wattwise/internal/domain"
	"wattwise/internal/infra/config"
)

func TestCircuitBreakerPassesThroughSuccess(t *testing.T) {
	inner := &mockProvider{
		name: "openai",
		chatFunc: func(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
			return &domain.ChatResponse{Message: domain.Message{Content: "ok"}}, nil
		},
	}

	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{}, slog.Default())
	resp, err := cb.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message.Content != "ok" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if cb.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	inner := &mockProvider{
		name: "openai",
		chatFunc: func(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
			calls++
			return nil, errors.New("down")
		},
	}

	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{
		MaxFailures: 2,
		Timeout:     time.Minute,
	}, slog.Default())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := cb.Chat(ctx, domain.ChatRequest{}); err == nil {
			t.Fatal("expected error")
		}
	}
	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	// Open circuit fails fast without reaching the provider.
	_, err := cb.Chat(ctx, domain.ChatRequest{})
	if err == nil {
		t.Fatal("expected circuit-open error")
	}
	if calls != 2 {
		t.Errorf("provider calls = %d, want 2", calls)
	}
}

func TestCircuitBreakerName(t *testing.T) {
	inner := &mockProvider{name: "openai"}
	cb := NewCircuitBreakerProvider(inner, config.CircuitBreakerConfig{}, slog.Default())
	if cb.Name() != "openai" {
		t.Errorf("Name = %q, want openai", cb.Name())
	}
}
