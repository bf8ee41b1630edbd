package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/maestro/pkg/errdefs"
	"github.com/kadirpekel/maestro/pkg/llm"
	"github.com/kadirpekel/maestro/pkg/protocol"
	"github.com/kadirpekel/maestro/pkg/tools"
)

func TestReactPlainReplyBecomesAnswer(t *testing.T) {
	run, w, p := runContext(t, protocol.ModeReact, false, protocol.StyleDefault)
	stub := &scriptedLLM{turns: []scriptTurn{{text: "4"}}}

	a := NewExecutor(run, testDeps(stub, testCollection()))
	out, err := a.Run(context.Background(), "what is 2+2?")

	require.NoError(t, err)
	assert.Equal(t, "4", out)
	assert.Equal(t, StateFinished, a.State())
	// Two toolless turns stall the loop.
	assert.Equal(t, 2, stub.callCount())

	msgs := a.Memory().Snapshot()
	require.GreaterOrEqual(t, len(msgs), 3)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, "what is 2+2?", msgs[1].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "4", msgs[2].Content)

	p.Close(nil)
	assert.Empty(t, w.ofType(protocol.TypeToolResult))
}

func TestReactNextStepPromptStaysOutOfMemory(t *testing.T) {
	run, _, _ := runContext(t, protocol.ModeReact, false, protocol.StyleDefault)
	stub := &scriptedLLM{turns: []scriptTurn{{text: "done"}}}

	a := NewExecutor(run, testDeps(stub, testCollection()))
	_, err := a.Run(context.Background(), "task")
	require.NoError(t, err)

	// The model sees the nudge as the last prompt message.
	prompt := stub.prompt(0)
	require.NotEmpty(t, prompt)
	assert.Equal(t, llm.RoleUser, prompt[len(prompt)-1].Role)
	assert.Equal(t, defaultNextStepPrompt, prompt[len(prompt)-1].Content)

	// Memory never records it.
	for _, m := range a.Memory().Snapshot() {
		assert.NotEqual(t, defaultNextStepPrompt, m.Content)
	}
}

func TestReactExecutesToolCalls(t *testing.T) {
	run, w, p := runContext(t, protocol.ModeReact, false, protocol.StyleDefault)
	echo := &fakeTool{name: "echo", result: func(args map[string]any) tools.ToolResult {
		return tools.Success(fmt.Sprintf("echo: %v", args["value"]))
	}}
	coll := testCollection(echo)
	coll.SetPersona("echo", "Echo Bot")

	stub := &scriptedLLM{turns: []scriptTurn{
		{toolCalls: []llm.ToolCall{{ID: "call-1", Name: "echo", Arguments: map[string]any{"value": "55"}}}},
		{text: "Sum is 55"},
	}}

	a := NewExecutor(run, testDeps(stub, coll))
	out, err := a.Run(context.Background(), "sum the numbers")

	require.NoError(t, err)
	assert.Equal(t, "Sum is 55", out)
	assert.Equal(t, 1, echo.callCount())

	msgs := a.Memory().Snapshot()
	require.Len(t, msgs, 6)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "call-1", msgs[2].ToolCalls[0].ID)
	assert.Equal(t, llm.RoleTool, msgs[3].Role)
	assert.Equal(t, "call-1", msgs[3].ToolCallID)
	assert.Equal(t, "echo: 55", msgs[3].Content)
	assert.Equal(t, "Sum is 55", msgs[4].Content)

	p.Close(nil)
	results := w.ofType(protocol.TypeToolResult)
	require.Len(t, results, 1)
	assert.Equal(t, "Echo Bot", results[0].DigitalEmployee)
	payload, ok := results[0].ResultMap.(protocol.ToolResultPayload)
	require.True(t, ok)
	assert.Equal(t, "echo", payload.ToolName)
	assert.JSONEq(t, `{"value":"55"}`, payload.Command)
	assert.Equal(t, "echo: 55", payload.ToolResult)
}

func TestReactPreservesCallOrder(t *testing.T) {
	run, w, p := runContext(t, protocol.ModeReact, false, protocol.StyleDefault)
	coll := testCollection(sleepTool("sleepy"))

	stub := &scriptedLLM{turns: []scriptTurn{
		{toolCalls: []llm.ToolCall{
			{ID: "call-a", Name: "sleepy", Arguments: map[string]any{"ms": 30, "tag": "first"}},
			{ID: "call-b", Name: "sleepy", Arguments: map[string]any{"ms": 20, "tag": "second"}},
			{ID: "call-c", Name: "sleepy", Arguments: map[string]any{"ms": 10, "tag": "third"}},
		}},
		{text: "all done"},
	}}

	a := NewExecutor(run, testDeps(stub, coll))
	out, err := a.Run(context.Background(), "run them")

	require.NoError(t, err)
	assert.Equal(t, "all done", out)

	// Tool messages keep the call order even though the calls finish in
	// reverse.
	msgs := a.Memory().Snapshot()
	require.GreaterOrEqual(t, len(msgs), 6)
	assert.Equal(t, "call-a", msgs[3].ToolCallID)
	assert.Equal(t, "first", msgs[3].Content)
	assert.Equal(t, "call-b", msgs[4].ToolCallID)
	assert.Equal(t, "second", msgs[4].Content)
	assert.Equal(t, "call-c", msgs[5].ToolCallID)
	assert.Equal(t, "third", msgs[5].Content)

	p.Close(nil)
	results := w.ofType(protocol.TypeToolResult)
	require.Len(t, results, 3)
	for i, want := range []string{"first", "second", "third"} {
		payload, ok := results[i].ResultMap.(protocol.ToolResultPayload)
		require.True(t, ok)
		assert.Equal(t, want, payload.ToolResult)
	}
}

func TestReactRecordsToolFailure(t *testing.T) {
	run, w, p := runContext(t, protocol.ModeReact, false, protocol.StyleDefault)
	broken := &fakeTool{name: "broken", result: func(map[string]any) tools.ToolResult {
		return tools.Failf("disk full")
	}}

	stub := &scriptedLLM{turns: []scriptTurn{
		{toolCalls: []llm.ToolCall{{ID: "call-1", Name: "broken", Arguments: map[string]any{}}}},
		{text: "could not finish"},
	}}

	a := NewExecutor(run, testDeps(stub, testCollection(broken)))
	out, err := a.Run(context.Background(), "try it")

	require.NoError(t, err)
	assert.Equal(t, "could not finish", out)

	msgs := a.Memory().Snapshot()
	assert.Equal(t, "Error: disk full", msgs[3].Content)

	p.Close(nil)
	results := w.ofType(protocol.TypeToolResult)
	require.Len(t, results, 1)
	payload := results[0].ResultMap.(protocol.ToolResultPayload)
	assert.Equal(t, "Error: disk full", payload.ToolResult)
}

func TestReactNeverAdvertisesPlanningTool(t *testing.T) {
	run, _, _ := runContext(t, protocol.ModeReact, false, protocol.StyleDefault)
	stub := &scriptedLLM{turns: []scriptTurn{{text: "fine"}}}

	a := NewExecutor(run, testDeps(stub, testCollection(&fakeTool{name: "echo"})))
	_, err := a.Run(context.Background(), "task")
	require.NoError(t, err)

	names := []string{}
	for _, def := range a.tools.Definitions() {
		names = append(names, def.Name)
	}
	assert.ElementsMatch(t, []string{"echo"}, names)
}

func TestReactStreamsThoughts(t *testing.T) {
	run, w, p := runContext(t, protocol.ModeReact, true, protocol.StyleDefault)
	stub := &scriptedLLM{turns: []scriptTurn{{text: "The answer is 4"}}}

	a := NewExecutor(run, testDeps(stub, testCollection()))
	out, err := a.Run(context.Background(), "what is 2+2?")

	require.NoError(t, err)
	assert.Equal(t, "The answer is 4", out)

	p.Close(nil)
	thoughts := w.ofType(protocol.TypeToolThought)
	// Two turns, each streaming two increments plus the closing frame.
	require.Len(t, thoughts, 6)

	assert.Equal(t, thoughts[0].MessageID, thoughts[1].MessageID)
	assert.Equal(t, thoughts[0].MessageID, thoughts[2].MessageID)
	assert.NotEqual(t, thoughts[0].MessageID, thoughts[3].MessageID)

	assert.False(t, thoughts[0].IsFinal)
	assert.False(t, thoughts[1].IsFinal)
	assert.True(t, thoughts[2].IsFinal)

	closing, ok := thoughts[2].ResultMap.(protocol.ToolThoughtPayload)
	require.True(t, ok)
	assert.Equal(t, "The answer is 4", closing.ToolThought)
}

func TestCallerPrunesToBudget(t *testing.T) {
	run, _, _ := runContext(t, protocol.ModeReact, false, protocol.StyleDefault)
	stub := &scriptedLLM{budget: 60, turns: []scriptTurn{{text: "ok"}}}
	c := newCaller(Model{Provider: stub, Counter: llm.ApproxCounter{}}, run, "test")

	messages := []llm.Message{llm.SystemMessage("stay brief")}
	for i := 0; i < 12; i++ {
		messages = append(messages, llm.UserMessage(fmt.Sprintf("filler message number %d with some extra words", i)))
	}

	_, err := c.call(context.Background(), callRequest{messages: messages})
	require.NoError(t, err)

	sent := stub.prompt(0)
	require.NotEmpty(t, sent)
	assert.Less(t, len(sent), len(messages))
	assert.Equal(t, llm.RoleSystem, sent[0].Role)
	assert.Equal(t, messages[len(messages)-1].Content, sent[len(sent)-1].Content)
}

func TestCallerRejectsImpossibleBudget(t *testing.T) {
	run, _, _ := runContext(t, protocol.ModeReact, false, protocol.StyleDefault)
	stub := &scriptedLLM{budget: 4, turns: []scriptTurn{{text: "ok"}}}
	c := newCaller(Model{Provider: stub, Counter: llm.ApproxCounter{}}, run, "test")

	_, err := c.call(context.Background(), callRequest{messages: []llm.Message{
		llm.SystemMessage("a very long system prompt that cannot possibly fit in four tokens"),
		llm.UserMessage("hello"),
	}})

	require.Error(t, err)
	assert.True(t, errdefs.IsBudget(err))
	assert.Equal(t, 0, stub.callCount())
}
