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

	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/plan"
)

type planningArgs struct {
	Action     string   `json:"action" jsonschema:"required,enum=create,enum=update,enum=mark_step,enum=finish,description=create builds the plan; update rewrites its steps; mark_step changes one step's status; finish closes the plan"`
	Title      string   `json:"title,omitempty" jsonschema:"description=Short name of the overall task (create and update)"`
	Stages     []string `json:"stages,omitempty" jsonschema:"description=Stage label per step, parallel to steps"`
	Steps      []string `json:"steps,omitempty" jsonschema:"description=The concrete steps, in execution order"`
	StepIndex  *int     `json:"stepIndex,omitempty" jsonschema:"description=Zero-based index of the step to mark"`
	StepStatus string   `json:"stepStatus,omitempty" jsonschema:"enum=in_progress,enum=completed,enum=blocked,description=New status for the step"`
	StepNotes  string   `json:"stepNotes,omitempty" jsonschema:"description=Why the step got this status"`
}

var planningSchema = mustSchema[planningArgs]()

// PlanningTool maintains the run's plan. Every mutation publishes a plan
// event so clients always see the current step statuses. The tool itself
// is stateless; the plan lives on the run context.
type PlanningTool struct{}

// NewPlanningTool creates the planning tool.
func NewPlanningTool() *PlanningTool {
	return &PlanningTool{}
}

func (t *PlanningTool) Name() string { return "planning" }

func (t *PlanningTool) Description() string {
	return "Create and maintain the step-by-step plan for this task. " +
		"Steps move forward only: not_started, in_progress, then completed or blocked."
}

func (t *PlanningTool) Parameters() map[string]any { return planningSchema }

func (t *PlanningTool) Execute(ctx context.Context, run *maestrocontext.Context, args map[string]any) (ToolResult, error) {
	a, err := decodeArgs[planningArgs](args)
	if err != nil {
		return Failf("invalid arguments: %v", err), nil
	}

	switch a.Action {
	case "create":
		return t.create(run, a)
	case "update":
		return t.update(run, a)
	case "mark_step":
		return t.markStep(run, a)
	case "finish":
		return t.finish(run)
	default:
		return Failf("unknown action %q", a.Action), nil
	}
}

func (t *PlanningTool) create(run *maestrocontext.Context, a planningArgs) (ToolResult, error) {
	p, err := plan.New(a.Title, a.Stages, a.Steps)
	if err != nil {
		return Failf("%v", err), nil
	}
	run.SetPlan(p)
	if err := run.PublishPlan(); err != nil {
		return ToolResult{}, err
	}
	return Success("Plan created:\n" + p.Render()), nil
}

func (t *PlanningTool) update(run *maestrocontext.Context, a planningArgs) (ToolResult, error) {
	p := run.Plan()
	if p == nil {
		return Failf("no plan exists yet, use create first"), nil
	}

	title := a.Title
	if title == "" {
		title = p.Title()
	}
	if err := p.Update(title, a.Stages, a.Steps); err != nil {
		return Failf("%v", err), nil
	}
	if err := run.PublishPlan(); err != nil {
		return ToolResult{}, err
	}
	return Success("Plan updated:\n" + p.Render()), nil
}

func (t *PlanningTool) markStep(run *maestrocontext.Context, a planningArgs) (ToolResult, error) {
	p := run.Plan()
	if p == nil {
		return Failf("no plan exists yet, use create first"), nil
	}
	if a.StepIndex == nil {
		return Failf("stepIndex is required for mark_step"), nil
	}

	status := plan.Status(a.StepStatus)
	if !status.Valid() || status == plan.StatusNotStarted {
		return Failf("stepStatus must be in_progress, completed or blocked"), nil
	}
	if err := p.Mark(*a.StepIndex, status, a.StepNotes); err != nil {
		return Failf("%v", err), nil
	}
	if err := run.PublishPlan(); err != nil {
		return ToolResult{}, err
	}
	return Success(p.Render()), nil
}

func (t *PlanningTool) finish(run *maestrocontext.Context) (ToolResult, error) {
	p := run.Plan()
	if p == nil {
		return Failf("no plan exists yet, use create first"), nil
	}
	p.Finish()
	if err := run.PublishPlan(); err != nil {
		return ToolResult{}, err
	}
	return Success("Plan finished:\n" + p.Render()), nil
}
