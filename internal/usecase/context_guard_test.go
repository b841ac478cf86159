package usecase

import (
	"log/slog"
	"testing"

	"wattwise/internal/domain"
	"wattwise/internal/infra/config"
)

// wordCounter approximates tokens as content length over four, a
// deterministic stand-in for the BPE tokenizer.
type wordCounter struct{}

func (wordCounter) CountMessages(msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += len(m.Content) / 4
	}
	return total
}

func newTestGuard(maxTokens int) *ContextGuard {
	return NewContextGuard(config.ContextGuardConfig{
		MaxTokens:     maxTokens,
		ReserveTokens: 1,
		SafetyMargin:  0.01,
	}, wordCounter{}, slog.Default())
}

func msgOfLen(role string, n int) domain.Message {
	content := make([]byte, n)
	for i := range content {
		content[i] = 'x'
	}
	return domain.Message{Role: role, Content: string(content)}
}

func TestTrimNoopUnderBudget(t *testing.T) {
	guard := newTestGuard(10000)

	msgs := []domain.Message{
		msgOfLen(domain.RoleSystem, 40),
		msgOfLen(domain.RoleUser, 40),
	}
	got := guard.Trim(msgs)
	if len(got) != 2 {
		t.Errorf("trimmed to %d messages, want 2 untouched", len(got))
	}
}

func TestTrimDropsOldestFirst(t *testing.T) {
	guard := newTestGuard(60)

	msgs := []domain.Message{
		{Role: domain.RoleSystem, Content: "system"},
		{Role: domain.RoleUser, Content: "oldest exchange about solar panels and such"},
		{Role: domain.RoleAssistant, Content: "an older answer with plenty of words in it"},
		{Role: domain.RoleUser, Content: "newest question"},
	}
	got := guard.Trim(msgs)

	if got[0].Role != domain.RoleSystem {
		t.Errorf("first message role = %s, want system", got[0].Role)
	}
	if got[len(got)-1].Content != "newest question" {
		t.Errorf("newest message dropped: last = %q", got[len(got)-1].Content)
	}
	if len(got) >= len(msgs) {
		t.Errorf("nothing trimmed: %d messages", len(got))
	}
}

func TestTrimNeverDropsNewest(t *testing.T) {
	// Budget too small for even one message: the newest still survives.
	guard := newTestGuard(10)

	msgs := []domain.Message{
		{Role: domain.RoleSystem, Content: "system prompt"},
		msgOfLen(domain.RoleUser, 400),
	}
	got := guard.Trim(msgs)

	found := false
	for _, m := range got {
		if m.Role == domain.RoleUser {
			found = true
		}
	}
	if !found {
		t.Error("newest user message was dropped")
	}
}

func TestTrimDoesNotMutateInput(t *testing.T) {
	guard := newTestGuard(60)

	msgs := []domain.Message{
		{Role: domain.RoleSystem, Content: "system"},
		msgOfLen(domain.RoleUser, 200),
		msgOfLen(domain.RoleAssistant, 200),
		{Role: domain.RoleUser, Content: "newest"},
	}
	guard.Trim(msgs)

	if msgs[1].Role != domain.RoleUser || msgs[2].Role != domain.RoleAssistant {
		t.Error("input slice was mutated")
	}
}
