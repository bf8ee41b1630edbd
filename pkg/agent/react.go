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

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/llm"
	"github.com/kadirpekel/maestro/pkg/memory"
	"github.com/kadirpekel/maestro/pkg/protocol"
	"github.com/kadirpekel/maestro/pkg/tools"
)

// thoughtComplete is the step output of a turn that called no tools.
// Two of them in a row stall the loop, which ends the run with the
// model's actual reply as the answer.
const thoughtComplete = "thought complete"

// toolResultClip bounds how much of a tool result goes on the wire in
// tool_result events. Memory keeps the full text.
const toolResultClip = 2000

// ReactAgent is the think/act loop: each step asks the model for its
// next move and executes whatever tools it calls. It serves react
// mode directly and runs plan stages as the executor. The planning
// tool is never advertised here; the plan belongs to the planner.
type ReactAgent struct {
	core     *Core
	llm      *caller
	tools    *tools.Collection
	persona  string
	nextStep string
}

// NewExecutor builds a ReactAgent over the executor prompt and the
// run's output style. Callers pass the user query or the stage
// instruction to Run.
func NewExecutor(run *maestrocontext.Context, deps Deps) *ReactAgent {
	mem := memory.WithSystem(deps.Prompts.Executor(run.OutputStyle()))
	return &ReactAgent{
		core:     NewCore("executor", mem, run, deps.Agent),
		llm:      newCaller(deps.Models.Executor, run, "executor"),
		tools:    deps.Tools.Without("planning"),
		persona:  deps.Agent.DigitalEmployee,
		nextStep: defaultNextStepPrompt,
	}
}

// Run drives the loop and returns the model's final reply.
func (a *ReactAgent) Run(ctx context.Context, query string) (string, error) {
	out, err := a.core.Run(ctx, query, a)
	if err != nil {
		return "", err
	}
	if text := lastAssistantText(a.core.memory); text != "" {
		return text, nil
	}
	return out, nil
}

// State returns the run state.
func (a *ReactAgent) State() State { return a.core.State() }

// Memory returns the conversation log of this run.
func (a *ReactAgent) Memory() *memory.Memory { return a.core.memory }

// Step is one think/act turn.
func (a *ReactAgent) Step(ctx context.Context) (StepResult, error) {
	t, err := a.think(ctx)
	if err != nil {
		return StepResult{}, err
	}
	if len(t.toolCalls) == 0 {
		return StepResult{Output: thoughtComplete}, nil
	}
	out, err := a.act(ctx, t)
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{Output: out}, nil
}

// think asks the model for the next move and records its reply.
func (a *ReactAgent) think(ctx context.Context) (*turn, error) {
	messages := a.core.memory.Snapshot()
	if a.nextStep != "" {
		messages = append(messages, llm.UserMessage(a.nextStep))
	}

	t, err := a.llm.call(ctx, callRequest{
		messages: messages,
		tools:    a.tools.Definitions(),
		thought:  protocol.TypeToolThought,
		persona:  a.persona,
	})
	if err != nil {
		return nil, err
	}

	if len(t.toolCalls) > 0 {
		a.core.memory.Append(llm.AssistantToolCalls(t.text, t.toolCalls))
	} else {
		a.core.memory.Append(llm.AssistantMessage(t.text))
	}
	return t, nil
}

// act executes the turn's tool calls and appends one tool message per
// call, in call order, so every toolCallId pairs with the assistant
// turn that issued it.
func (a *ReactAgent) act(ctx context.Context, t *turn) (string, error) {
	results := a.tools.ExecuteMany(ctx, a.core.run, t.toolCalls)

	var digest strings.Builder
	for i, res := range results {
		a.core.memory.Append(llm.ToolMessage(res.CallID, res.Result.Text()))
		if err := a.emitToolResult(t.toolCalls[i], res.Result); err != nil {
			return "", err
		}
		if i > 0 {
			digest.WriteString("\n\n")
		}
		fmt.Fprintf(&digest, "%s: %s", res.Name, res.Result.Text())
	}
	return digest.String(), nil
}

// emitToolResult publishes the outcome of one call under the tool's
// persona.
func (a *ReactAgent) emitToolResult(call llm.ToolCall, res tools.ToolResult) error {
	command := ""
	if len(call.Arguments) > 0 {
		if b, err := json.Marshal(call.Arguments); err == nil {
			command = string(b)
		}
	}
	return a.core.run.EmitAs(a.tools.Persona(call.Name), protocol.TypeToolResult, protocol.ToolResultPayload{
		ToolName:   call.Name,
		Command:    command,
		ToolResult: clip(res.Text(), toolResultClip),
	})
}
