package llm

import (
	"github.com/kadirpekel/maestro/pkg/errdefs"
)

// Prune returns the suffix of the conversation that fits the token
// budget. System messages always survive. An assistant message that
// requested tools moves together with its tool results: either the
// whole exchange fits or none of it does, so the API never sees an
// orphaned tool message.
func Prune(messages []Message, counter Counter, budget int) ([]Message, error) {
	if len(messages) == 0 {
		return messages, nil
	}

	var system []Message
	var rest []Message
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}

	used := replyPriming
	for _, msg := range system {
		used += counter.CountMessage(msg)
	}
	if used > budget {
		return nil, &errdefs.BudgetError{Op: "llm.prune", Tokens: used, Limit: budget}
	}

	blocks := groupBlocks(rest)

	// Fit whole blocks from the newest backwards.
	kept := 0
	for i := len(blocks) - 1; i >= 0; i-- {
		cost := 0
		for _, msg := range blocks[i] {
			cost += counter.CountMessage(msg)
		}
		if used+cost > budget {
			break
		}
		used += cost
		kept++
	}

	if kept == 0 && len(blocks) > 0 {
		// Even the newest exchange does not fit.
		cost := used
		for _, msg := range blocks[len(blocks)-1] {
			cost += counter.CountMessage(msg)
		}
		return nil, &errdefs.BudgetError{Op: "llm.prune", Tokens: cost, Limit: budget}
	}

	result := make([]Message, 0, len(messages))
	result = append(result, system...)
	for _, block := range blocks[len(blocks)-kept:] {
		result = append(result, block...)
	}
	return result, nil
}

// groupBlocks splits a conversation into atomic units: a tool-calling
// assistant message plus the tool results that answer it form one
// block, every other message its own.
func groupBlocks(messages []Message) [][]Message {
	var blocks [][]Message
	for i := 0; i < len(messages); {
		msg := messages[i]
		if msg.Role == RoleAssistant && len(msg.ToolCalls) > 0 {
			j := i + 1
			for j < len(messages) && messages[j].Role == RoleTool {
				j++
			}
			blocks = append(blocks, messages[i:j])
			i = j
			continue
		}
		blocks = append(blocks, messages[i:i+1])
		i++
	}
	return blocks
}
