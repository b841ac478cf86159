package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"wattwise/internal/domain"
	"wattwise/internal/infra/config"
	"wattwise/internal/infra/tracer"
)

const (
	legacyHumanPrompt     = "\n\nHuman:"
	legacyAssistantPrompt = "\n\nAssistant:"
)

// LegacyProvider implements domain.LLMProvider for the pre-Messages
// Anthropic text-completions API. This vendor has no tool-calling support
// at all: tool schemas on the request are silently ignored and the
// response carries text only. The conversation is flattened into a single
// Human/Assistant prompt string.
type LegacyProvider struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	version string
}

// NewLegacyProvider creates a provider for the legacy completions API.
// Fails when no API key is configured.
func NewLegacyProvider(cfg config.ProviderConfig, logger *slog.Logger) (*LegacyProvider, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewDomainError("NewLegacyProvider", domain.ErrProviderConfig, "api key missing for "+cfg.Name)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &LegacyProvider{
		name:    cfg.Name,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  NewHTTPClient(cfg),
		logger:  logger,
		version: defaultAnthropicVersion,
	}, nil
}

// Chat implements domain.LLMProvider. req.Tools is ignored: the legacy
// wire format has nowhere to put schemas, so the adapter degrades to
// text-only completion rather than failing.
func (p *LegacyProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", p.name),
			tracer.StringAttr("llm.model", req.Model),
		),
	)
	defer span.End()

	if req.Model == "" {
		req.Model = p.model
	}
	if len(req.Tools) > 0 {
		p.logger.Debug("legacy provider ignoring tool schemas", "provider", p.name, "tools", len(req.Tools))
	}

	legReq := legacyRequest{
		Model:             req.Model,
		Prompt:            flattenToPrompt(req.Messages),
		MaxTokensToSample: req.MaxTokens,
	}
	if legReq.MaxTokensToSample <= 0 {
		legReq.MaxTokensToSample = 4096
	}
	if req.Temperature > 0 {
		legReq.Temperature = &req.Temperature
	}

	body, err := json.Marshal(legReq)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": p.version,
	}

	respBody, err := doJSONRequest(ctx, p.client, p.baseURL+"/v1/complete", body, headers)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var legResp legacyResponse
	if err := json.Unmarshal(respBody, &legResp); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("%w: unmarshal response: %v", domain.ErrProviderCall, err)
	}

	now := time.Now()
	result := &domain.ChatResponse{
		Model: req.Model,
		Message: domain.Message{
			Role:      domain.RoleAssistant,
			Content:   strings.TrimSpace(legResp.Completion),
			Timestamp: now,
		},
		CreatedAt: now,
	}

	tracer.SetOK(span)
	logChatCompleted(p.logger, p.name, result)

	return result, nil
}

// Name implements domain.LLMProvider.
func (p *LegacyProvider) Name() string { return p.name }

// --- Legacy completions wire types ---

type legacyRequest struct {
	Model             string   `json:"model"`
	Prompt            string   `json:"prompt"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
	Temperature       *float64 `json:"temperature,omitempty"`
}

type legacyResponse struct {
	Completion string `json:"completion"`
	StopReason string `json:"stop_reason"`
}

// flattenToPrompt renders a conversation as the Human/Assistant prompt
// string the legacy API expects. System content is prepended to the first
// human turn; tool-role messages are folded in as human-visible context
// since the wire format cannot express them.
func flattenToPrompt(msgs []domain.Message) string {
	var b strings.Builder

	var system string
	for _, m := range msgs {
		if m.Role == domain.RoleSystem {
			system = m.Content
			break
		}
	}

	wroteHuman := false
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			continue
		case domain.RoleUser:
			b.WriteString(legacyHumanPrompt)
			b.WriteString(" ")
			if system != "" && !wroteHuman {
				b.WriteString(system)
				b.WriteString("\n\n")
			}
			b.WriteString(m.Content)
			wroteHuman = true
		case domain.RoleAssistant:
			b.WriteString(legacyAssistantPrompt)
			b.WriteString(" ")
			b.WriteString(m.Content)
		case domain.RoleTool:
			b.WriteString(legacyHumanPrompt)
			b.WriteString(" [tool output] ")
			b.WriteString(m.Content)
			wroteHuman = true
		}
	}

	b.WriteString(legacyAssistantPrompt)
	return b.String()
}
