package usecase

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"wattwise/internal/domain"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	store, err := NewSessionStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSessionStoreAppendAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := store.NewSessionID()
	if err := store.Ensure(ctx, id); err != nil {
		t.Fatalf("Ensure: %v", err)
	}

	turn := []domain.Message{
		{Role: domain.RoleUser, Content: "how much solar output last week?"},
		{Role: domain.RoleAssistant, ToolCalls: []domain.ToolCall{
			{ID: "call_1", Name: "fetch_renewable_data", Arguments: json.RawMessage(`{"energy_type":"solar"}`)},
		}},
		{Role: domain.RoleTool, Content: `{"status":"success"}`, Name: "fetch_renewable_data",
			ToolCalls: []domain.ToolCall{{ID: "call_1", Name: "fetch_renewable_data"}}},
		{Role: domain.RoleAssistant, Content: "Solar output averaged around 100 MWh per day."},
	}
	if err := store.Append(ctx, id, turn); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.History(ctx, id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != len(turn) {
		t.Fatalf("history length = %d, want %d", len(got), len(turn))
	}
	for i := range turn {
		if got[i].Role != turn[i].Role || got[i].Content != turn[i].Content {
			t.Errorf("message %d = {%s %q}, want {%s %q}",
				i, got[i].Role, got[i].Content, turn[i].Role, turn[i].Content)
		}
	}
	if got[1].ToolCalls[0].ID != "call_1" {
		t.Errorf("tool call id not round-tripped: %+v", got[1].ToolCalls)
	}
	if got[2].ToolCalls[0].ID != "call_1" {
		t.Errorf("tool message call id not round-tripped: %+v", got[2].ToolCalls)
	}
}

func TestSessionStoreEnsureIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Ensure(ctx, "sess-1"); err != nil {
		t.Fatalf("first Ensure: %v", err)
	}
	if err := store.Ensure(ctx, "sess-1"); err != nil {
		t.Fatalf("second Ensure: %v", err)
	}

	ids, err := store.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("sessions = %d, want 1", len(ids))
	}
}

func TestSessionStoreIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := store.Ensure(ctx, id); err != nil {
			t.Fatalf("Ensure %s: %v", id, err)
		}
	}
	if err := store.Append(ctx, "a", []domain.Message{{Role: domain.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := store.History(ctx, "b")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("session b has %d messages, want 0", len(got))
	}
}

func TestSessionStoreUnknownSessionEmptyHistory(t *testing.T) {
	store := newTestStore(t)

	got, err := store.History(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("history = %d messages, want 0", len(got))
	}
}

func TestNewSessionIDUnique(t *testing.T) {
	store := newTestStore(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := store.NewSessionID()
		if seen[id] {
			t.Fatalf("duplicate session id %q", id)
		}
		seen[id] = true
	}
}
