package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"wattwise/internal/domain"
	"wattwise/internal/infra/tracer"
)

// RemoteInvoker executes tools on the remote service. Implemented by
// gateway.Client.
type RemoteInvoker interface {
	Invoke(ctx context.Context, tool string, parameters json.RawMessage) (json.RawMessage, error)
	MockMode() bool
}

// Executor runs tool calls remote-first with a local synthetic fallback.
// Execute never returns a Go error: every call produces exactly one
// ToolResult carrying the call's id, with IsError marking failures, so the
// conversation always gets an answer for every dispatched call.
type Executor struct {
	catalog *Catalog
	remote  RemoteInvoker
	synth   *Synthesizer
	logger  *slog.Logger
}

// NewExecutor creates an executor. remote may be nil, in which case every
// tool runs on the local synthesizer.
func NewExecutor(catalog *Catalog, remote RemoteInvoker, synth *Synthesizer, logger *slog.Logger) *Executor {
	if synth == nil {
		synth = NewSynthesizer()
	}
	return &Executor{
		catalog: catalog,
		remote:  remote,
		synth:   synth,
		logger:  logger,
	}
}

// errorPayload is the stable shape of an error tool result's content.
func errorPayload(message string) string {
	b, _ := json.Marshal(map[string]string{"message": message})
	return string(b)
}

// Execute runs one tool call.
func (e *Executor) Execute(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	ctx, span := tracer.StartSpan(ctx, "tool.execute",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)),
	)
	defer span.End()

	result := e.execute(ctx, call)
	if result.IsError {
		tracer.RecordError(span, fmt.Errorf("tool %s: %s", call.Name, result.Content))
	} else {
		tracer.SetOK(span)
	}
	return result
}

func (e *Executor) execute(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	// Unknown tools never reach the remote service.
	if _, ok := e.catalog.Lookup(call.Name); !ok {
		return domain.ToolResult{
			ToolCallID: call.ID,
			Content:    errorPayload("unknown tool: " + call.Name),
			IsError:    true,
		}
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	if err := e.catalog.Validate(call.Name, args); err != nil {
		return domain.ToolResult{
			ToolCallID: call.ID,
			Content:    errorPayload(err.Error()),
			IsError:    true,
		}
	}

	// Pure arithmetic stays local regardless of service health.
	if call.Name != NameCalculateROI && e.remote != nil && !e.remote.MockMode() {
		payload, err := e.remote.Invoke(ctx, call.Name, args)
		if err == nil {
			return domain.ToolResult{
				ToolCallID: call.ID,
				Content:    string(payload),
			}
		}
		e.logger.Warn("remote tool execution failed, using synthetic data",
			"tool", call.Name, "error", err)
	}

	payload, err := e.synth.Run(call.Name, args)
	if err != nil {
		e.logger.Error("synthetic tool execution failed", "tool", call.Name, "error", err)
		return domain.ToolResult{
			ToolCallID: call.ID,
			Content:    errorPayload("tool execution failed: " + call.Name),
			IsError:    true,
		}
	}

	return domain.ToolResult{
		ToolCallID: call.ID,
		Content:    string(payload),
	}
}
