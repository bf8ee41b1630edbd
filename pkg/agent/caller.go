package agent

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/llm"
	"github.com/kadirpekel/maestro/pkg/observability"
	"github.com/kadirpekel/maestro/pkg/protocol"
)

// callRequest describes one model turn.
type callRequest struct {
	messages []llm.Message
	tools    []llm.ToolDefinition
	// thought is the event type streamed while the model talks; empty
	// disables delta streaming for this turn.
	thought protocol.MessageType
	persona string
}

// turn is one assembled model response.
type turn struct {
	text      string
	toolCalls []llm.ToolCall
	reason    string
}

// caller runs model turns for an agent: it prunes the prompt to the
// input budget, forwards thought deltas through the run's printer in
// stream mode and records every call in traces and metrics.
type caller struct {
	provider llm.Provider
	counter  llm.Counter
	run      *maestrocontext.Context
	agent    string
}

func newCaller(m Model, run *maestrocontext.Context, agent string) *caller {
	return &caller{provider: m.Provider, counter: m.Counter, run: run, agent: agent}
}

func (c *caller) call(ctx context.Context, req callRequest) (*turn, error) {
	pruned, err := llm.Prune(req.messages, c.counter, c.provider.MaxInputTokens())
	if err != nil {
		return nil, err
	}

	tracer := observability.GetTracer("maestro.agent")
	ctx, span := tracer.Start(ctx, observability.SpanLLMCall,
		trace.WithAttributes(
			attribute.String(observability.AttrGenAISystem, "openai"),
			attribute.String(observability.AttrGenAIOperationName, observability.OpChat),
			attribute.String(observability.AttrGenAIRequestModel, c.provider.Model()),
			attribute.String(observability.AttrAgentName, c.agent),
		),
	)
	defer span.End()

	start := time.Now()
	var t *turn
	if c.run.StreamMode() && req.thought != "" {
		t, err = c.stream(ctx, pruned, req)
	} else {
		t, err = c.complete(ctx, pruned, req)
	}

	inTokens := c.counter.CountMessages(pruned)
	outTokens := 0
	if t != nil {
		outTokens = c.counter.Count(t.text)
	}
	observability.GetGlobalMetrics().RecordLLMCall(ctx, c.provider.Model(), time.Since(start), inTokens, outTokens, err)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(
		attribute.String(observability.AttrGenAIResponseFinishReason, t.reason),
		attribute.Int(observability.AttrGenAIUsageInputTokens, inTokens),
		attribute.Int(observability.AttrGenAIUsageOutputTokens, outTokens),
	)
	return t, nil
}

func (c *caller) complete(ctx context.Context, messages []llm.Message, req callRequest) (*turn, error) {
	comp, err := c.provider.Complete(ctx, messages, req.tools)
	if err != nil {
		return nil, err
	}
	return &turn{text: comp.Text, toolCalls: comp.ToolCalls, reason: comp.FinishReason}, nil
}

// stream consumes the delta channel, forwarding text increments as
// thought events while assembling the turn. All deltas of one turn
// share a messageId; the closing frame restates the full text.
func (c *caller) stream(ctx context.Context, messages []llm.Message, req callRequest) (*turn, error) {
	ch, err := c.provider.Stream(ctx, messages, req.tools)
	if err != nil {
		return nil, err
	}

	messageID := c.run.Printer().NewMessageID()
	t := &turn{}
	var text strings.Builder
	var streamErr error
	streamed := false
	for chunk := range ch {
		switch chunk.Type {
		case llm.ChunkText:
			text.WriteString(chunk.Text)
			if streamErr == nil {
				streamErr = c.emitThought(messageID, req, chunk.Text, false)
				streamed = streamErr == nil
			}
		case llm.ChunkToolCall:
			if chunk.ToolCall != nil {
				t.toolCalls = append(t.toolCalls, *chunk.ToolCall)
			}
		case llm.ChunkError:
			if streamErr == nil {
				streamErr = chunk.Err
			}
		case llm.ChunkDone:
		}
	}
	if streamErr != nil {
		return nil, streamErr
	}

	t.text = text.String()
	if streamed {
		if err := c.emitThought(messageID, req, t.text, true); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (c *caller) emitThought(messageID string, req callRequest, text string, final bool) error {
	return c.run.Printer().Send(protocol.Event{
		MessageID:       messageID,
		MessageType:     req.thought,
		DigitalEmployee: req.persona,
		TaskID:          c.run.RequestID(),
		ResultMap:       thoughtPayload(req.thought, text),
		IsFinal:         final,
	})
}

// thoughtPayload shapes the delta for the wire: planning turns speak
// planThought, everything else toolThought.
func thoughtPayload(t protocol.MessageType, text string) any {
	if t == protocol.TypePlanThought {
		return protocol.PlanThoughtPayload{PlanThought: text}
	}
	return protocol.ToolThoughtPayload{ToolThought: text}
}
