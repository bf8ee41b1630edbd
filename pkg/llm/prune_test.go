package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/maestro/pkg/errdefs"
)

// flatCounter charges one token per message so budgets read as message
// counts plus the reply priming.
type flatCounter struct{}

func (flatCounter) Count(string) int         { return 1 }
func (flatCounter) CountMessage(Message) int { return 1 }
func (flatCounter) CountMessages(m []Message) int {
	return replyPriming + len(m)
}

func TestPruneKeepsConversationUnderBudget(t *testing.T) {
	messages := []Message{
		SystemMessage("be helpful"),
		UserMessage("hi"),
		AssistantMessage("hello"),
	}

	got, err := Prune(messages, flatCounter{}, 100)

	require.NoError(t, err)
	assert.Equal(t, messages, got)
}

func TestPruneDropsOldestNonSystemFirst(t *testing.T) {
	messages := []Message{
		SystemMessage("be helpful"),
		UserMessage("first question"),
		AssistantMessage("first answer"),
		UserMessage("second question"),
		AssistantMessage("second answer"),
	}

	// priming (3) + system (1) + two newest messages.
	got, err := Prune(messages, flatCounter{}, 6)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, RoleSystem, got[0].Role)
	assert.Equal(t, "second question", got[1].Content)
	assert.Equal(t, "second answer", got[2].Content)
}

func TestPruneKeepsToolExchangesWhole(t *testing.T) {
	exchange := []Message{
		AssistantToolCalls("", []ToolCall{{ID: "a"}, {ID: "b"}}),
		ToolMessage("a", "result a"),
		ToolMessage("b", "result b"),
	}
	messages := append([]Message{
		SystemMessage("be helpful"),
		UserMessage("do two things"),
	}, append(exchange, AssistantMessage("done"))...)

	// Room for system and the closing assistant text only: the tool
	// exchange must drop as one unit, leaving no orphaned tool reply.
	got, err := Prune(messages, flatCounter{}, 5)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, RoleSystem, got[0].Role)
	assert.Equal(t, "done", got[1].Content)
	for _, msg := range got {
		assert.NotEqual(t, RoleTool, msg.Role)
		assert.Empty(t, msg.ToolCalls)
	}

	// One more token of budget fits the whole exchange back in.
	got, err = Prune(messages, flatCounter{}, 8)

	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "a", got[1].ToolCalls[0].ID)
	assert.Equal(t, RoleTool, got[2].Role)
	assert.Equal(t, RoleTool, got[3].Role)
}

func TestPruneRejectsOversizedSystemPrompt(t *testing.T) {
	messages := []Message{
		SystemMessage("enormous instructions"),
		UserMessage("hi"),
	}

	_, err := Prune(messages, flatCounter{}, 2)

	require.Error(t, err)
	assert.True(t, errdefs.IsBudget(err))
}

func TestPruneRejectsOversizedNewestExchange(t *testing.T) {
	messages := []Message{
		SystemMessage("be helpful"),
		AssistantToolCalls("", []ToolCall{{ID: "a"}, {ID: "b"}, {ID: "c"}}),
		ToolMessage("a", "x"),
		ToolMessage("b", "y"),
		ToolMessage("c", "z"),
	}

	// System fits, the only exchange never will.
	_, err := Prune(messages, flatCounter{}, 5)

	require.Error(t, err)
	assert.True(t, errdefs.IsBudget(err))
}

func TestPruneEmptyConversation(t *testing.T) {
	got, err := Prune(nil, flatCounter{}, 10)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestApproxCounterFourCharsPerToken(t *testing.T) {
	c := ApproxCounter{}

	assert.Equal(t, 2, c.Count("abcdefgh"))

	// Message framing adds the per-message overhead and the role cost.
	msg := UserMessage("abcdefgh")
	assert.Equal(t, perMessageOverhead+1+2, c.CountMessage(msg))

	assert.Equal(t, replyPriming+c.CountMessage(msg), c.CountMessages([]Message{msg}))
}
