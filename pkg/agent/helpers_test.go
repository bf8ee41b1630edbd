package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kadirpekel/maestro/pkg/config"
	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/llm"
	"github.com/kadirpekel/maestro/pkg/protocol"
	"github.com/kadirpekel/maestro/pkg/sse"
	"github.com/kadirpekel/maestro/pkg/tools"
)

type captureWriter struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (w *captureWriter) WriteEvent(ev protocol.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, ev)
	return nil
}

func (w *captureWriter) snapshot() []protocol.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]protocol.Event, len(w.events))
	copy(out, w.events)
	return out
}

func (w *captureWriter) ofType(t protocol.MessageType) []protocol.Event {
	var out []protocol.Event
	for _, ev := range w.snapshot() {
		if ev.MessageType == t {
			out = append(out, ev)
		}
	}
	return out
}

func runContext(t *testing.T, mode protocol.Mode, stream bool, style protocol.OutputStyle) (*maestrocontext.Context, *captureWriter, *sse.Printer) {
	t.Helper()
	w := &captureWriter{}
	p := sse.NewPrinter(context.Background(), "req-1", w)
	t.Cleanup(func() { p.Close(nil) })
	run := maestrocontext.New(&protocol.RunRequest{
		RequestID:   "req-1",
		SessionID:   "sess-1",
		Query:       "do the task",
		Mode:        mode,
		OutputStyle: style,
		Stream:      stream,
	}, p)
	return run, w, p
}

// scriptTurn is one scripted model response.
type scriptTurn struct {
	text      string
	toolCalls []llm.ToolCall
	err       error
}

// scriptedLLM replays its turns in order, repeating the last one when
// the script runs out, and records every prompt it sees.
type scriptedLLM struct {
	mu     sync.Mutex
	turns  []scriptTurn
	calls  int
	seen   [][]llm.Message
	budget int
}

func (s *scriptedLLM) next(messages []llm.Message) (scriptTurn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prompt := make([]llm.Message, len(messages))
	copy(prompt, messages)
	s.seen = append(s.seen, prompt)

	i := s.calls
	s.calls++
	if i >= len(s.turns) {
		i = len(s.turns) - 1
	}
	if i < 0 {
		return scriptTurn{}, fmt.Errorf("scriptedLLM has no turns")
	}
	t := s.turns[i]
	return t, t.err
}

func (s *scriptedLLM) Complete(_ context.Context, messages []llm.Message, _ []llm.ToolDefinition) (*llm.Completion, error) {
	t, err := s.next(messages)
	if err != nil {
		return nil, err
	}
	reason := "stop"
	if len(t.toolCalls) > 0 {
		reason = "tool_calls"
	}
	return &llm.Completion{Text: t.text, ToolCalls: t.toolCalls, FinishReason: reason}, nil
}

func (s *scriptedLLM) Stream(_ context.Context, messages []llm.Message, _ []llm.ToolDefinition) (<-chan llm.StreamChunk, error) {
	t, err := s.next(messages)
	if err != nil {
		return nil, err
	}
	ch := make(chan llm.StreamChunk, len(t.toolCalls)+4)
	go func() {
		defer close(ch)
		if t.text != "" {
			// Split in two so delta assembly is observable.
			mid := len(t.text) / 2
			for _, part := range []string{t.text[:mid], t.text[mid:]} {
				if part != "" {
					ch <- llm.StreamChunk{Type: llm.ChunkText, Text: part}
				}
			}
		}
		for i := range t.toolCalls {
			call := t.toolCalls[i]
			ch <- llm.StreamChunk{Type: llm.ChunkToolCall, ToolCall: &call}
		}
		ch <- llm.StreamChunk{Type: llm.ChunkDone}
	}()
	return ch, nil
}

func (s *scriptedLLM) Model() string { return "scripted" }

func (s *scriptedLLM) MaxInputTokens() int {
	if s.budget > 0 {
		return s.budget
	}
	return 1 << 20
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedLLM) prompt(i int) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[i]
}

// fakeTool is an in-process tool whose behavior the test scripts.
type fakeTool struct {
	name   string
	result func(args map[string]any) tools.ToolResult

	mu    sync.Mutex
	calls []map[string]any
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "test tool " + f.name }

func (f *fakeTool) Parameters() map[string]any {
	return map[string]any{"type": "object"}
}

func (f *fakeTool) Execute(_ context.Context, _ *maestrocontext.Context, args map[string]any) (tools.ToolResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()
	if f.result != nil {
		return f.result(args), nil
	}
	return tools.Success("ok"), nil
}

func (f *fakeTool) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func sleepTool(name string) *fakeTool {
	return &fakeTool{name: name, result: func(args map[string]any) tools.ToolResult {
		if ms, ok := args["ms"].(int); ok {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
		tag, _ := args["tag"].(string)
		return tools.Success(tag)
	}}
}

func testCollection(extra ...tools.Tool) *tools.Collection {
	c := tools.NewCollection()
	c.Register(tools.NewPlanningTool())
	for _, t := range extra {
		c.Register(t)
	}
	return c
}

func testDeps(provider llm.Provider, coll *tools.Collection) Deps {
	return Deps{
		Models:  UniformModels(Model{Provider: provider, Counter: llm.ApproxCounter{}}),
		Tools:   coll,
		Prompts: ResolvePrompts(config.PromptsConfig{}),
		Agent:   config.AgentConfig{MaxSteps: 10, DuplicateThreshold: 2},
	}
}
