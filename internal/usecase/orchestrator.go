package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"wattwise/internal/adapter/tool"
	"wattwise/internal/domain"
	"wattwise/internal/infra/config"
	"wattwise/internal/infra/tracer"
)

// ProviderResolver resolves provider names to providers. Implemented by
// llm.Registry.
type ProviderResolver interface {
	Get(name string) (domain.LLMProvider, error)
}

// ToolExecutor runs one tool call to completion. Implemented by
// tool.Executor.
type ToolExecutor interface {
	Execute(ctx context.Context, call domain.ToolCall) domain.ToolResult
}

// ConversationStore persists session history. Implemented by SessionStore.
type ConversationStore interface {
	Ensure(ctx context.Context, sessionID string) error
	History(ctx context.Context, sessionID string) ([]domain.Message, error)
	Append(ctx context.Context, sessionID string, msgs []domain.Message) error
}

// TurnOptions carries per-turn overrides from the caller.
type TurnOptions struct {
	// Provider names the provider to use for this turn. Empty selects the
	// configured default.
	Provider string
	// DashboardHint signals that the caller's UI wants a dashboard for
	// this turn. It is surfaced to the model as an instruction; the model
	// still decides whether and how to call create_dashboard.
	DashboardHint bool
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	ResponseText string `json:"response_text"`
	// UsedTools lists the tool names invoked this turn, in dispatch
	// order. A non-empty list is the "tools were used" signal for
	// callers that only need the boolean.
	UsedTools     []string `json:"used_tools"`
	ToolSummaries []string `json:"tool_summaries"`
	DashboardURL  string   `json:"dashboard_url,omitempty"`
}

// Orchestrator runs the two-phase completion loop: a first completion that
// may request tools, parallel tool execution, and a second completion that
// folds the results into the final answer. Session history is committed in
// one transaction only after the turn fully succeeds.
type Orchestrator struct {
	resolver        ProviderResolver
	defaultProvider string
	catalog         *tool.Catalog
	executor        ToolExecutor
	store           ConversationStore
	guard           *ContextGuard
	cfg             config.AssistantConfig
	logger          *slog.Logger
}

// NewOrchestrator wires the turn-processing pipeline. guard may be nil to
// disable history trimming.
func NewOrchestrator(
	resolver ProviderResolver,
	defaultProvider string,
	catalog *tool.Catalog,
	executor ToolExecutor,
	store ConversationStore,
	guard *ContextGuard,
	cfg config.AssistantConfig,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		resolver:        resolver,
		defaultProvider: defaultProvider,
		catalog:         catalog,
		executor:        executor,
		store:           store,
		guard:           guard,
		cfg:             cfg,
		logger:          logger,
	}
}

const dashboardDirective = "The user's interface has requested a dashboard for this conversation turn. Call the create_dashboard tool with an appropriate dashboard_type and title before answering."

// ProcessTurn runs one conversational turn for a session. On any error the
// session history is left untouched; a retry of the same turn starts from
// the same state.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, userText string, opts TurnOptions) (*TurnResult, error) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.process_turn",
		trace.WithAttributes(tracer.StringAttr("session.id", sessionID)),
	)
	defer span.End()

	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	if err := o.store.Ensure(ctx, sessionID); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}
	history, err := o.store.History(ctx, sessionID)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	systemPrompt := o.cfg.SystemPrompt
	if opts.DashboardHint {
		systemPrompt += "\n\n" + dashboardDirective
	}

	userMsg := domain.Message{
		Role:      domain.RoleUser,
		Content:   userText,
		Timestamp: time.Now(),
	}

	msgs := make([]domain.Message, 0, len(history)+2)
	msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: systemPrompt})
	msgs = append(msgs, history...)
	msgs = append(msgs, userMsg)
	if o.guard != nil {
		msgs = o.guard.Trim(msgs)
	}

	providerName := opts.Provider
	if providerName == "" {
		providerName = o.defaultProvider
	}
	provider, err := o.resolver.Get(providerName)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	first, err := provider.Chat(ctx, domain.ChatRequest{
		Messages:  msgs,
		Tools:     o.catalog.Schemas(),
		MaxTokens: o.cfg.MaxTokens,
	})
	if err != nil {
		tracer.RecordError(span, err)
		o.logger.Error("first completion failed",
			"session", sessionID,
			"provider", provider.Name(),
			"code", domain.ErrorCodeOf(err),
			"error", err)
		return nil, fmt.Errorf("first completion: %w", err)
	}

	// Turn-local buffer. Committed in one Append only when the turn is done.
	buffer := []domain.Message{userMsg}

	calls := first.Message.ToolCalls
	if len(calls) == 0 {
		buffer = append(buffer, assistantMessage(first.Message.Content))
		if err := o.store.Append(ctx, sessionID, buffer); err != nil {
			tracer.RecordError(span, err)
			return nil, err
		}
		tracer.SetOK(span)
		return &TurnResult{ResponseText: first.Message.Content}, nil
	}
	buffer = append(buffer, first.Message)

	span.SetAttributes(tracer.IntAttr("tool.calls", len(calls)))
	results := o.dispatch(ctx, calls)

	result := &TurnResult{
		UsedTools:     make([]string, 0, len(calls)),
		ToolSummaries: make([]string, 0, len(calls)),
	}
	toolMsgs := make([]domain.Message, 0, len(calls))
	for i, call := range calls {
		res := results[i]
		result.UsedTools = append(result.UsedTools, call.Name)
		result.ToolSummaries = append(result.ToolSummaries, summarizeResult(res))
		if call.Name == tool.NameCreateDashboard && !res.IsError {
			if url := dashboardURL(res.Content); url != "" {
				result.DashboardURL = url
			}
		}
		toolMsgs = append(toolMsgs, domain.Message{
			Role:      domain.RoleTool,
			Content:   res.Content,
			Name:      call.Name,
			ToolCalls: []domain.ToolCall{{ID: call.ID, Name: call.Name}},
			Timestamp: time.Now(),
		})
	}
	buffer = append(buffer, toolMsgs...)

	second, err := provider.Chat(ctx, domain.ChatRequest{
		Messages:  append(append(msgs, first.Message), toolMsgs...),
		Tools:     o.catalog.Schemas(),
		MaxTokens: o.cfg.MaxTokens,
	})
	if err != nil {
		tracer.RecordError(span, err)
		o.logger.Error("second completion failed",
			"session", sessionID,
			"provider", provider.Name(),
			"code", domain.ErrorCodeOf(err),
			"error", err)
		return nil, fmt.Errorf("second completion: %w", err)
	}
	if len(second.Message.ToolCalls) > 0 {
		// One round of tools per turn. Further requests are dropped.
		o.logger.Debug("ignoring tool calls from second completion",
			"count", len(second.Message.ToolCalls))
	}

	result.ResponseText = second.Message.Content
	if strings.TrimSpace(result.ResponseText) == "" {
		result.ResponseText = composeFallbackText(first.Message.Content, result.ToolSummaries)
	}
	buffer = append(buffer, assistantMessage(result.ResponseText))

	if err := o.store.Append(ctx, sessionID, buffer); err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	o.logger.Info("turn completed",
		"session", sessionID,
		"provider", provider.Name(),
		"tools", result.UsedTools,
	)
	tracer.SetOK(span)
	return result, nil
}

// dispatch executes all tool calls in parallel and returns results indexed
// by call position, preserving the model's ordering.
func (o *Orchestrator) dispatch(ctx context.Context, calls []domain.ToolCall) []domain.ToolResult {
	results := make([]domain.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call domain.ToolCall) {
			defer wg.Done()
			results[i] = o.executor.Execute(ctx, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

func assistantMessage(text string) domain.Message {
	return domain.Message{
		Role:      domain.RoleAssistant,
		Content:   text,
		Timestamp: time.Now(),
	}
}

// summarizeResult extracts a one-line summary from a tool result payload.
func summarizeResult(res domain.ToolResult) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(res.Content), &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	if res.IsError {
		return "failed"
	}
	return "completed"
}

// dashboardURL pulls the url field from a create_dashboard payload.
func dashboardURL(content string) string {
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return ""
	}
	return payload.URL
}

// composeFallbackText builds a response when the second completion returns
// no text: the first completion's text (if any) plus the tool summaries.
func composeFallbackText(firstText string, summaries []string) string {
	parts := make([]string, 0, 1+len(summaries))
	if strings.TrimSpace(firstText) != "" {
		parts = append(parts, firstText)
	}
	parts = append(parts, summaries...)
	return strings.Join(parts, "\n")
}
