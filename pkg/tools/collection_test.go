package tools

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/llm"
)

type stubTool struct {
	name string
	fn   func(ctx context.Context, run *maestrocontext.Context, args map[string]any) (ToolResult, error)
}

func (s *stubTool) Name() string               { return s.name }
func (s *stubTool) Description() string        { return "stub " + s.name }
func (s *stubTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (s *stubTool) Execute(ctx context.Context, run *maestrocontext.Context, args map[string]any) (ToolResult, error) {
	return s.fn(ctx, run, args)
}

func okTool(name, content string) *stubTool {
	return &stubTool{name: name, fn: func(context.Context, *maestrocontext.Context, map[string]any) (ToolResult, error) {
		return Success(content), nil
	}}
}

func TestRegisterReplacesDuplicate(t *testing.T) {
	c := NewCollection()
	c.Register(okTool("echo", "first"))
	c.Register(okTool("echo", "second"))

	require.Equal(t, 1, c.Len())
	result := c.ExecuteOne(context.Background(), nil, llm.ToolCall{ID: "c1", Name: "echo"})
	assert.Equal(t, "second", result.Content)
}

func TestDefinitionsFollowRegistrationOrder(t *testing.T) {
	c := NewCollection()
	c.Register(okTool("beta", ""))
	c.Register(okTool("alpha", ""))
	c.Register(okTool("gamma", ""))

	defs := c.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "beta", defs[0].Name)
	assert.Equal(t, "alpha", defs[1].Name)
	assert.Equal(t, "gamma", defs[2].Name)
	assert.Equal(t, "stub alpha", defs[1].Description)
	assert.NotNil(t, defs[0].Parameters)
}

func TestWithoutHidesTools(t *testing.T) {
	c := NewCollection()
	c.Register(okTool("planning", ""))
	c.Register(okTool("file", ""))
	c.SetPersona("file", "Archivist")

	trimmed := c.Without("planning")
	assert.Equal(t, []string{"file"}, trimmed.Names())
	assert.Equal(t, "Archivist", trimmed.Persona("file"))

	// The original collection is untouched.
	assert.Equal(t, 2, c.Len())
}

func TestExecuteOneUnknownTool(t *testing.T) {
	c := NewCollection()

	result := c.ExecuteOne(context.Background(), nil, llm.ToolCall{ID: "c1", Name: "missing"})
	require.True(t, result.Failed())
	assert.Contains(t, result.Error, "unknown tool")
	assert.Equal(t, "missing", result.ToolName)
}

func TestExecuteOneFoldsToolError(t *testing.T) {
	c := NewCollection()
	c.Register(&stubTool{name: "broken", fn: func(context.Context, *maestrocontext.Context, map[string]any) (ToolResult, error) {
		return ToolResult{}, fmt.Errorf("backend unreachable")
	}})

	result := c.ExecuteOne(context.Background(), nil, llm.ToolCall{ID: "c1", Name: "broken"})
	require.True(t, result.Failed())
	assert.Contains(t, result.Error, "backend unreachable")
}

func TestExecuteOneRecoversPanic(t *testing.T) {
	c := NewCollection()
	c.Register(&stubTool{name: "bomb", fn: func(context.Context, *maestrocontext.Context, map[string]any) (ToolResult, error) {
		panic("kaboom")
	}})

	result := c.ExecuteOne(context.Background(), nil, llm.ToolCall{ID: "c1", Name: "bomb"})
	require.True(t, result.Failed())
	assert.Contains(t, result.Error, "panicked")
	assert.Contains(t, result.Error, "kaboom")
}

func TestExecuteOneCancelledContext(t *testing.T) {
	c := NewCollection()
	c.Register(okTool("echo", "never reached"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.ExecuteOne(ctx, nil, llm.ToolCall{ID: "c1", Name: "echo"})
	require.True(t, result.Failed())
	assert.Contains(t, result.Error, "cancelled")
}

func TestExecuteOneRecordsDuration(t *testing.T) {
	c := NewCollection()
	c.Register(&stubTool{name: "slow", fn: func(context.Context, *maestrocontext.Context, map[string]any) (ToolResult, error) {
		time.Sleep(10 * time.Millisecond)
		return Success("done"), nil
	}})

	result := c.ExecuteOne(context.Background(), nil, llm.ToolCall{ID: "c1", Name: "slow"})
	assert.False(t, result.Failed())
	assert.GreaterOrEqual(t, result.Duration, 10*time.Millisecond)
}

func TestExecuteManyPreservesCallOrder(t *testing.T) {
	delays := map[string]time.Duration{"a": 30 * time.Millisecond, "b": 0, "c": 10 * time.Millisecond}
	c := NewCollection()
	for name := range delays {
		delay := delays[name]
		content := name
		c.Register(&stubTool{name: name, fn: func(context.Context, *maestrocontext.Context, map[string]any) (ToolResult, error) {
			time.Sleep(delay)
			return Success(content), nil
		}})
	}

	calls := []llm.ToolCall{
		{ID: "c1", Name: "a"},
		{ID: "c2", Name: "b"},
		{ID: "c3", Name: "c"},
	}
	results := c.ExecuteMany(context.Background(), nil, calls)

	require.Len(t, results, 3)
	for i, call := range calls {
		assert.Equal(t, call.ID, results[i].CallID)
		assert.Equal(t, call.Name, results[i].Name)
		assert.Equal(t, call.Name, results[i].Result.Content)
	}
}

func TestExecuteManyIsolatesFailures(t *testing.T) {
	c := NewCollection()
	c.Register(okTool("good", "fine"))
	c.Register(&stubTool{name: "bad", fn: func(context.Context, *maestrocontext.Context, map[string]any) (ToolResult, error) {
		panic("dead")
	}})

	results := c.ExecuteMany(context.Background(), nil, []llm.ToolCall{
		{ID: "c1", Name: "good"},
		{ID: "c2", Name: "bad"},
		{ID: "c3", Name: "good"},
	})

	require.Len(t, results, 3)
	assert.False(t, results[0].Result.Failed())
	assert.True(t, results[1].Result.Failed())
	assert.False(t, results[2].Result.Failed())
}

func TestExecuteManyEmpty(t *testing.T) {
	c := NewCollection()
	assert.Nil(t, c.ExecuteMany(context.Background(), nil, nil))
}

func TestToolResultText(t *testing.T) {
	assert.Equal(t, "all good", Success("all good").Text())
	assert.Equal(t, "Error: it broke", Failf("it %s", "broke").Text())
}
