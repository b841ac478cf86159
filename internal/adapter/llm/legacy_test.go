package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wattwise/internal/domain"
	"wattwise/internal/infra/config"
)

func newLegacyTestProvider(t *testing.T, handler http.HandlerFunc) *LegacyProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewLegacyProvider(config.ProviderConfig{
		Name:    "legacy",
		Model:   "claude-2.1",
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewLegacyProvider: %v", err)
	}
	return p
}

func TestLegacyRequiresAPIKey(t *testing.T) {
	_, err := NewLegacyProvider(config.ProviderConfig{Name: "legacy"}, slog.Default())
	if !errors.Is(err, domain.ErrProviderConfig) {
		t.Fatalf("error = %v, want ErrProviderConfig", err)
	}
}

func TestLegacyChatFlattensConversation(t *testing.T) {
	p := newLegacyTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/complete" {
			t.Errorf("path = %q, want /v1/complete", r.URL.Path)
		}

		var req legacyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !strings.Contains(req.Prompt, "\n\nHuman:") || !strings.HasSuffix(req.Prompt, "\n\nAssistant:") {
			t.Errorf("prompt not in Human/Assistant form: %q", req.Prompt)
		}
		if !strings.Contains(req.Prompt, "be helpful") {
			t.Errorf("system prompt not folded into first human turn: %q", req.Prompt)
		}

		json.NewEncoder(w).Encode(legacyResponse{Completion: " plain text answer", StopReason: "stop_sequence"})
	})

	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: "be helpful"},
			{Role: domain.RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "plain text answer" {
		t.Errorf("content = %q", resp.Message.Content)
	}
}

// The legacy API has no tool support: schemas must be dropped from the wire
// request and the response must carry no tool calls.
func TestLegacyIgnoresToolSchemas(t *testing.T) {
	p := newLegacyTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if _, ok := raw["tools"]; ok {
			t.Error("legacy request must not carry tool schemas")
		}

		json.NewEncoder(w).Encode(legacyResponse{Completion: "text only"})
	})

	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "solar data"}},
		Tools: []domain.ToolSchema{{
			Name:       "fetch_renewable_data",
			Parameters: json.RawMessage(`{"type":"object"}`),
		}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.Message.ToolCalls) != 0 {
		t.Errorf("legacy response must not contain tool calls: %+v", resp.Message.ToolCalls)
	}
	if resp.Message.Content != "text only" {
		t.Errorf("content = %q", resp.Message.Content)
	}
}

func TestFlattenToPromptOrdering(t *testing.T) {
	prompt := flattenToPrompt([]domain.Message{
		{Role: domain.RoleUser, Content: "first"},
		{Role: domain.RoleAssistant, Content: "second"},
		{Role: domain.RoleUser, Content: "third"},
	})

	iFirst := strings.Index(prompt, "first")
	iSecond := strings.Index(prompt, "second")
	iThird := strings.Index(prompt, "third")
	if iFirst < 0 || iSecond < 0 || iThird < 0 || !(iFirst < iSecond && iSecond < iThird) {
		t.Errorf("turn order lost: %q", prompt)
	}
	if !strings.HasSuffix(prompt, legacyAssistantPrompt) {
		t.Errorf("prompt must end with assistant cue: %q", prompt)
	}
}
