package llm

import (
	"errors"
	"strings"
	"testing"

	"wattwise/internal/domain"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	p := &mockProvider{name: "openai"}

	if err := r.Register(p); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Get("openai")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name() != "openai" {
		t.Errorf("Name = %q", got.Name())
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&mockProvider{name: "openai"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&mockProvider{name: "openai"}); err == nil {
		t.Fatal("expected error on duplicate registration")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&mockProvider{name: "openai"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := r.Get("nope")
	if !errors.Is(err, domain.ErrProviderNotFound) {
		t.Errorf("error = %v, want ErrProviderNotFound", err)
	}
	if !strings.Contains(err.Error(), "openai") {
		t.Errorf("error should name the registered providers, got %v", err)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"ollama", "anthropic", "anthropic+failover"} {
		if err := r.Register(&mockProvider{name: name}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	got := r.Names()
	want := []string{"anthropic", "anthropic+failover", "ollama"}
	if len(got) != len(want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
