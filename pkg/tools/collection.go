// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tools

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/errdefs"
	"github.com/kadirpekel/maestro/pkg/llm"
	"github.com/kadirpekel/maestro/pkg/observability"
	"github.com/kadirpekel/maestro/pkg/registry"
)

// Collection is the set of tools an agent may call. It is built once at
// startup (or derived per request via Without) and read concurrently
// afterwards.
type Collection struct {
	reg *registry.BaseRegistry[Tool]

	mu       sync.RWMutex
	personas map[string]string
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{
		reg:      registry.NewBaseRegistry[Tool](),
		personas: make(map[string]string),
	}
}

// Register adds a tool, replacing any existing tool of the same name.
func (c *Collection) Register(t Tool) {
	if replaced := c.reg.Put(t.Name(), t); replaced {
		slog.Warn("Tool replaced in collection", "tool", t.Name())
	}
}

// Get returns the named tool.
func (c *Collection) Get(name string) (Tool, bool) {
	return c.reg.Get(name)
}

// Names returns the registered tool names in registration order.
func (c *Collection) Names() []string {
	return c.reg.Names()
}

// Len returns the number of registered tools.
func (c *Collection) Len() int {
	return c.reg.Count()
}

// SetPersona assigns a digital-employee label to a tool. Events tied to
// the tool's results carry the label so clients can attribute work.
func (c *Collection) SetPersona(toolName, persona string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.personas[toolName] = persona
}

// Persona returns the tool's digital-employee label, or "".
func (c *Collection) Persona(toolName string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.personas[toolName]
}

// Definitions renders the collection for the LLM's tools parameter, in
// registration order.
func (c *Collection) Definitions() []llm.ToolDefinition {
	tools := c.reg.List()
	defs := make([]llm.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}

// Without returns a view of the collection that hides the named tools.
// The remaining tools and personas are shared, not copied.
func (c *Collection) Without(names ...string) *Collection {
	hidden := make(map[string]struct{}, len(names))
	for _, name := range names {
		hidden[name] = struct{}{}
	}

	out := NewCollection()
	for _, t := range c.reg.List() {
		if _, skip := hidden[t.Name()]; skip {
			continue
		}
		out.reg.Put(t.Name(), t)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, persona := range c.personas {
		if _, skip := hidden[name]; !skip {
			out.personas[name] = persona
		}
	}
	return out
}

// ExecuteOne runs a single call, folding every failure mode (unknown
// tool, returned error, panic, cancellation) into an error-status result
// so the agent loop can always record something into memory.
func (c *Collection) ExecuteOne(ctx context.Context, run *maestrocontext.Context, call llm.ToolCall) ToolResult {
	start := time.Now()

	tracer := observability.GetTracer("maestro.tools")
	ctx, span := tracer.Start(ctx, observability.SpanToolExecution,
		trace.WithAttributes(
			attribute.String(observability.AttrGenAIOperationName, observability.OpToolCall),
			attribute.String(observability.AttrGenAIToolName, call.Name),
			attribute.String(observability.AttrGenAIToolCallID, call.ID),
		),
	)
	defer span.End()

	result := c.execute(ctx, run, call)
	result.ToolName = call.Name
	result.Duration = time.Since(start)

	var recordErr error
	if result.Failed() {
		recordErr = &errdefs.ToolError{Tool: call.Name, Reason: result.Error}
		span.SetStatus(codes.Error, result.Error)
		span.SetAttributes(attribute.String(observability.AttrErrorType, "ToolError"))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(
		attribute.Bool("tool.success", !result.Failed()),
		attribute.Float64("tool.duration_ms", float64(result.Duration.Milliseconds())),
	)
	observability.GetGlobalMetrics().RecordToolExecution(ctx, call.Name, result.Duration, recordErr)

	return result
}

func (c *Collection) execute(ctx context.Context, run *maestrocontext.Context, call llm.ToolCall) (result ToolResult) {
	if err := errdefs.FromContext(ctx); err != nil {
		return Failf("cancelled: %v", err)
	}

	tool, ok := c.reg.Get(call.Name)
	if !ok {
		return Failf("unknown tool %q", call.Name)
	}

	// A panicking tool must not take down sibling calls or the request.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked",
				"tool", call.Name,
				"panic", r,
				"stack", string(debug.Stack()))
			result = Failf("tool %s panicked: %v", call.Name, r)
		}
	}()

	res, err := tool.Execute(ctx, run, call.Arguments)
	if err != nil {
		if errdefs.IsCancelled(err) {
			return Failf("cancelled: %v", err)
		}
		return Failf("%v", err)
	}
	return res
}

// ExecuteMany runs the calls concurrently, one goroutine per call, and
// joins on all of them. The returned slice follows the call order, not
// completion order; a failing call never affects its siblings.
func (c *Collection) ExecuteMany(ctx context.Context, run *maestrocontext.Context, calls []llm.ToolCall) []CallResult {
	if len(calls) == 0 {
		return nil
	}

	results := make([]CallResult, len(calls))
	if len(calls) == 1 {
		call := calls[0]
		results[0] = CallResult{CallID: call.ID, Name: call.Name, Result: c.ExecuteOne(ctx, run, call)}
		return results
	}

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, tc llm.ToolCall) {
			defer wg.Done()
			results[idx] = CallResult{CallID: tc.ID, Name: tc.Name, Result: c.ExecuteOne(ctx, run, tc)}
		}(i, call)
	}
	wg.Wait()

	return results
}
