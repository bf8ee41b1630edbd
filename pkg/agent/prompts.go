package agent

import (
	"github.com/kadirpekel/maestro/pkg/config"
	"github.com/kadirpekel/maestro/pkg/protocol"
)

const defaultPlanningPrompt = `You are the planner of a multi-agent team. Break the user's task into a short ordered plan.

Call the planning tool with action "create" exactly once. Keep the plan tight: one to five stages, each a concrete deliverable a single specialist can finish. Put short stage names in "stages" and a one-sentence instruction per stage in "steps". Do not execute any stage yourself.`

const defaultExecutorPrompt = `You are a specialist agent executing one task with tools.

Work in small steps: pick a tool, inspect its result, decide the next move. Call tools only when they move the task forward. When the task is done, reply with the final answer as plain text and no tool calls. Keep the answer precise and self-contained.`

const defaultSummaryPrompt = `You write the final answer of a multi-agent run.

You receive the original task and the collected stage results. Produce one coherent answer: lead with the outcome, keep every load-bearing fact from the results, drop the process chatter. Mention produced files by name where they matter.`

// defaultNextStepPrompt nudges the executor between turns. It is shown
// to the model transiently and never recorded into memory.
const defaultNextStepPrompt = `Decide the next action. Call a tool to make progress, or reply with the final answer in plain text when the task is complete.`

var defaultStylePrompts = map[protocol.OutputStyle]string{
	protocol.StyleHTML:  "Format the final answer as a single self-contained HTML document.",
	protocol.StyleDocs:  "Format the final answer as a well-structured Markdown document with headings.",
	protocol.StyleTable: "Format the final answer as a Markdown table with a short lead-in sentence.",
}

// PromptSet is the resolved system-prompt text for every agent role
// plus the output-style fragments appended to executor and summary
// prompts.
type PromptSet struct {
	planning string
	executor string
	summary  string
	styles   map[protocol.OutputStyle]string
}

// ResolvePrompts merges configured overrides over the built-in
// prompts. Empty config fields keep the built-in text; configured
// style fragments shadow built-in ones per style.
func ResolvePrompts(cfg config.PromptsConfig) *PromptSet {
	p := &PromptSet{
		planning: defaultPlanningPrompt,
		executor: defaultExecutorPrompt,
		summary:  defaultSummaryPrompt,
		styles:   make(map[protocol.OutputStyle]string, len(defaultStylePrompts)),
	}
	for style, text := range defaultStylePrompts {
		p.styles[style] = text
	}

	if cfg.Planning != "" {
		p.planning = cfg.Planning
	}
	if cfg.Executor != "" {
		p.executor = cfg.Executor
	}
	if cfg.Summary != "" {
		p.summary = cfg.Summary
	}
	for style, text := range cfg.OutputStyles {
		p.styles[protocol.OutputStyle(style)] = text
	}
	return p
}

// Planning returns the planning agent's system prompt.
func (p *PromptSet) Planning() string { return p.planning }

// Executor returns the executor system prompt with the fragment for
// the requested output style appended.
func (p *PromptSet) Executor(style protocol.OutputStyle) string {
	return withStyle(p.executor, p.styles[style])
}

// Summary returns the summary system prompt with the fragment for the
// requested output style appended.
func (p *PromptSet) Summary(style protocol.OutputStyle) string {
	return withStyle(p.summary, p.styles[style])
}

func withStyle(prompt, fragment string) string {
	if fragment == "" {
		return prompt
	}
	return prompt + "\n\n" + fragment
}
