package usecase

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"wattwise/internal/domain"
	"wattwise/internal/infra/config"
)

// perMessageOverhead approximates the wrapping tokens each chat message
// costs on top of its content.
const perMessageOverhead = 4

// TiktokenCounter implements domain.TokenCounter with a real BPE
// tokenizer. Counting is approximate across vendors but close enough for
// budget decisions.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a counter using the cl100k_base encoding.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

// CountMessages implements domain.TokenCounter.
func (c *TiktokenCounter) CountMessages(msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += perMessageOverhead
		total += len(c.enc.Encode(m.Content, nil, nil))
		for _, tc := range m.ToolCalls {
			total += len(c.enc.Encode(tc.Name, nil, nil))
			total += len(c.enc.Encode(string(tc.Arguments), nil, nil))
		}
	}
	return total
}

// ContextGuard keeps the conversation under the model's context window by
// dropping the oldest non-system messages when the budget is exceeded.
type ContextGuard struct {
	maxTokens     int
	reserveTokens int
	safetyMargin  float64
	counter       domain.TokenCounter
	logger        *slog.Logger
}

// NewContextGuard creates a guard. Zero-valued config fields get defaults.
func NewContextGuard(cfg config.ContextGuardConfig, counter domain.TokenCounter, logger *slog.Logger) *ContextGuard {
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = 0.15
	}
	if cfg.SafetyMargin > 0.5 {
		cfg.SafetyMargin = 0.5
	}
	if cfg.ReserveTokens <= 0 {
		cfg.ReserveTokens = 1000
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 128000
	}
	return &ContextGuard{
		maxTokens:     cfg.MaxTokens,
		reserveTokens: cfg.ReserveTokens,
		safetyMargin:  cfg.SafetyMargin,
		counter:       counter,
		logger:        logger,
	}
}

// limit returns the usable token budget.
func (g *ContextGuard) limit() int {
	return int(float64(g.maxTokens)*(1-g.safetyMargin)) - g.reserveTokens
}

// Trim drops the oldest non-system messages until the conversation fits
// the budget. The system prompt and the most recent message always
// survive. Returns the (possibly shortened) slice.
func (g *ContextGuard) Trim(msgs []domain.Message) []domain.Message {
	limit := g.limit()
	if g.counter.CountMessages(msgs) <= limit {
		return msgs
	}

	kept := append([]domain.Message(nil), msgs...)
	dropped := 0
	for g.counter.CountMessages(kept) > limit {
		idx := -1
		for i, m := range kept[:len(kept)-1] { // never drop the newest message
			if m.Role != domain.RoleSystem {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		kept = append(kept[:idx], kept[idx+1:]...)
		dropped++
	}

	if dropped > 0 {
		g.logger.Warn("context guard trimmed history",
			"dropped", dropped,
			"remaining", len(kept),
			"limit", limit,
		)
	}
	return kept
}
