package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"wattwise/internal/domain"
	"wattwise/internal/infra/config"
)

func newAnthropicTestProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewAnthropicProvider(config.ProviderConfig{
		Name:    "anthropic",
		Model:   "claude-sonnet-4",
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewAnthropicProvider: %v", err)
	}
	return p
}

func TestAnthropicRequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicProvider(config.ProviderConfig{Name: "anthropic"}, slog.Default())
	if !errors.Is(err, domain.ErrProviderConfig) {
		t.Fatalf("error = %v, want ErrProviderConfig", err)
	}
}

func TestAnthropicChatText(t *testing.T) {
	p := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q, want /v1/messages", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != defaultAnthropicVersion {
			t.Errorf("anthropic-version = %q", got)
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System != "be helpful" {
			t.Errorf("system = %q, want extracted system prompt", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			ID:      "msg_1",
			Model:   "claude-sonnet-4",
			Content: []anthropicContent{{Type: "text", Text: "hello"}},
			Usage:   anthropicUsage{InputTokens: 10, OutputTokens: 5},
		})
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
	if resp.Message.Content != "hello" {
		t.Errorf("content = %q, want %q", resp.Message.Content, "hello")
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total tokens = %d, want 15", resp.Usage.TotalTokens)
	}
}

func TestAnthropicChatToolUse(t *testing.T) {
	p := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Tools) != 1 || req.Tools[0].Name != "calculate_roi" {
			t.Errorf("tools not forwarded: %+v", req.Tools)
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			ID:    "msg_2",
			Model: "claude-sonnet-4",
			Content: []anthropicContent{
				{Type: "text", Text: "let me calculate that"},
				{Type: "tool_use", ID: "toolu_1", Name: "calculate_roi",
					Input: json.RawMessage(`{"project_type":"solar"}`)},
			},
		})
	})

	resp, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "roi?"}},
		Tools: []domain.ToolSchema{{
			Name:       "calculate_roi",
			Parameters: json.RawMessage(`{"type":"object"}`),
		}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "let me calculate that" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.Message.ToolCalls))
	}
	if resp.Message.ToolCalls[0].ID != "toolu_1" || resp.Message.ToolCalls[0].Name != "calculate_roi" {
		t.Errorf("tool call = %+v", resp.Message.ToolCalls[0])
	}
}

func TestAnthropicToolResultBlocks(t *testing.T) {
	p := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		// Tool results travel as user-role tool_result content blocks.
		last := req.Messages[len(req.Messages)-1]
		if last.Role != "user" {
			t.Errorf("tool result role = %q, want user", last.Role)
		}
		if len(last.Content) != 1 || last.Content[0].Type != "tool_result" ||
			last.Content[0].ToolUseID != "toolu_1" {
			t.Errorf("tool result block = %+v", last.Content)
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicContent{{Type: "text", Text: "summary"}},
		})
	})

	_, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: "roi?"},
			{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{{
				ID: "toolu_1", Name: "calculate_roi", Arguments: json.RawMessage(`{}`),
			}}},
			{Role: domain.RoleTool, Content: `{"roi_percentage":275}`, ToolCalls: []domain.ToolCall{{ID: "toolu_1"}}},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
}

func TestAnthropicRateLimit(t *testing.T) {
	p := newAnthropicTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	})

	_, err := p.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hi"}},
	})
	if !errors.Is(err, domain.ErrRateLimit) {
		t.Errorf("error = %v, want ErrRateLimit", err)
	}
}
