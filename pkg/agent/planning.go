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
	"fmt"
	"strings"

	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/errdefs"
	"github.com/kadirpekel/maestro/pkg/llm"
	"github.com/kadirpekel/maestro/pkg/memory"
	"github.com/kadirpekel/maestro/pkg/protocol"
	"github.com/kadirpekel/maestro/pkg/tools"
)

// PlanningAgent owns the top-level plan of a run. Its first step has
// the model create the plan through the planning tool; every later
// step mechanically executes one stage through a fresh executor
// sub-run and moves the plan forward. The plan, not the conversation,
// is the durable state between stages.
type PlanningAgent struct {
	core    *Core
	llm     *caller
	tools   *tools.Collection
	deps    Deps
	persona string
}

// NewPlanning builds the planning agent over the full collection.
func NewPlanning(run *maestrocontext.Context, deps Deps) *PlanningAgent {
	mem := memory.WithSystem(deps.Prompts.Planning())
	return &PlanningAgent{
		core:    NewCore("planning", mem, run, deps.Agent),
		llm:     newCaller(deps.Models.Planning, run, "planning"),
		tools:   deps.Tools,
		deps:    deps,
		persona: deps.Agent.DigitalEmployee,
	}
}

// Run drives plan creation and stage execution. It returns the
// aggregated stage results for the summary agent to fold.
func (a *PlanningAgent) Run(ctx context.Context, query string) (string, error) {
	out, err := a.core.Run(ctx, query, a)
	if err != nil {
		return "", err
	}
	if s := a.core.run.Summary(); s != "" {
		return s, nil
	}
	return out, nil
}

// State returns the run state.
func (a *PlanningAgent) State() State { return a.core.State() }

// Step creates the plan on the first pass and executes one stage per
// pass after that.
func (a *PlanningAgent) Step(ctx context.Context) (StepResult, error) {
	if a.core.run.Plan() == nil {
		return a.createPlan(ctx)
	}
	return a.runStage(ctx)
}

// createPlan asks the model for the initial plan. The planning tool
// call materializes it on the run context and publishes the first
// plan event.
func (a *PlanningAgent) createPlan(ctx context.Context) (StepResult, error) {
	t, err := a.llm.call(ctx, callRequest{
		messages: a.core.memory.Snapshot(),
		tools:    planningDefinitions(a.tools),
		thought:  protocol.TypePlanThought,
		persona:  a.persona,
	})
	if err != nil {
		return StepResult{}, err
	}
	if len(t.toolCalls) == 0 {
		a.core.memory.Append(llm.AssistantMessage(t.text))
		return StepResult{}, &errdefs.StateError{Component: "agent.planning", Detail: "model did not call the planning tool"}
	}

	a.core.memory.Append(llm.AssistantToolCalls(t.text, t.toolCalls))
	for _, res := range a.tools.ExecuteMany(ctx, a.core.run, t.toolCalls) {
		a.core.memory.Append(llm.ToolMessage(res.CallID, res.Result.Text()))
	}

	p := a.core.run.Plan()
	if p == nil {
		return StepResult{}, &errdefs.StateError{Component: "agent.planning", Detail: "planning call produced no plan"}
	}
	return StepResult{Output: "plan created: " + p.Title()}, nil
}

// runStage starts the next pending stage, delegates it to a fresh
// executor and records the outcome on the plan. A failed stage blocks
// the plan and ends the run; the summary still covers everything that
// completed before it.
func (a *PlanningAgent) runStage(ctx context.Context) (StepResult, error) {
	run := a.core.run
	p := run.Plan()
	if p.Blocked() {
		return StepResult{Output: "plan blocked", Done: true}, nil
	}
	idx, ok := p.NextPending()
	if !ok {
		return StepResult{Output: run.Summary(), Done: true}, nil
	}

	stage, step, err := p.Step(idx)
	if err != nil {
		return StepResult{}, err
	}
	if err := p.Start(idx); err != nil {
		return StepResult{}, err
	}
	if err := run.PublishPlan(); err != nil {
		return StepResult{}, err
	}

	taskID := run.Printer().NewMessageID()
	if err := run.EmitAs(a.persona, protocol.TypeTask, protocol.TaskPayload{Task: stageTask(stage, step), TaskID: taskID}); err != nil {
		return StepResult{}, err
	}

	before := len(run.Files())
	answer, err := a.delegate(ctx, stage, step)
	if err != nil {
		if errdefs.IsCancelled(err) {
			return StepResult{}, err
		}
		if berr := p.Block(idx, clip(err.Error(), 200)); berr != nil {
			return StepResult{}, berr
		}
		if perr := run.PublishPlan(); perr != nil {
			return StepResult{}, perr
		}
		run.AppendSummary(fmt.Sprintf("Stage %q blocked: %v", stage, err))
		return StepResult{Output: fmt.Sprintf("stage %d blocked: %s", idx+1, stage), Done: true}, nil
	}

	if err := p.Complete(idx, ""); err != nil {
		return StepResult{}, err
	}
	if err := run.PublishPlan(); err != nil {
		return StepResult{}, err
	}
	run.AppendSummary(fmt.Sprintf("Stage %q: %s", stage, answer))
	if err := run.EmitAs(a.persona, protocol.TypeTaskSummary, protocol.TaskSummaryPayload{
		TaskSummary: answer,
		FileList:    run.Files()[before:],
	}); err != nil {
		return StepResult{}, err
	}

	// The conversation only carried the plan-creation tool calls; stage
	// outcomes live on the plan and the accumulated summary.
	a.core.memory.ClearToolContext()
	done := fmt.Sprintf("completed stage %d of %d: %s", idx+1, p.Len(), stage)
	a.core.memory.Append(llm.AssistantMessage(done))
	return StepResult{Output: done}, nil
}

// delegate runs one stage in a fresh executor seeded with the overall
// task, the plan so far and the stage instruction.
func (a *PlanningAgent) delegate(ctx context.Context, stage, step string) (string, error) {
	sub := NewExecutor(a.core.run, a.deps)
	return sub.Run(ctx, a.stageSeed(stage, step))
}

func (a *PlanningAgent) stageSeed(stage, step string) string {
	run := a.core.run
	var b strings.Builder
	fmt.Fprintf(&b, "Overall task:\n%s\n\n", run.Query())
	if p := run.Plan(); p != nil {
		b.WriteString(p.Render())
		b.WriteString("\n")
	}
	if s := run.Summary(); s != "" {
		fmt.Fprintf(&b, "Results so far:\n%s\n\n", s)
	}
	fmt.Fprintf(&b, "Your stage: %s\n%s", stage, step)
	return b.String()
}

func stageTask(stage, step string) string {
	if step == "" {
		return stage
	}
	return stage + ": " + step
}

// planningDefinitions narrows the advertised tools to the planning
// tool alone: the planner decomposes, stages execute.
func planningDefinitions(c *tools.Collection) []llm.ToolDefinition {
	t, ok := c.Get("planning")
	if !ok {
		return nil
	}
	return []llm.ToolDefinition{{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}}
}
