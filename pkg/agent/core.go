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
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/maestro/pkg/config"
	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/errdefs"
	"github.com/kadirpekel/maestro/pkg/llm"
	"github.com/kadirpekel/maestro/pkg/memory"
	"github.com/kadirpekel/maestro/pkg/observability"
)

// State is the lifecycle of one agent run. Finished and error are
// terminal; a Core is single-use.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateError    State = "error"
)

// StepResult is the outcome of one iteration. Done concludes the run
// with Output as its last word; otherwise the loop keeps going until
// it stalls, runs out of steps or fails.
type StepResult struct {
	Output string
	Done   bool
}

// Stepper is one agent iteration. The loop owns all state
// transitions; Step only reports what happened.
type Stepper interface {
	Step(ctx context.Context) (StepResult, error)
}

// Core carries the run state every agent shares: the conversation
// memory, the step budget, stall detection and the run context.
// Agents embed a Core and hand it their Stepper.
type Core struct {
	name               string
	memory             *memory.Memory
	run                *maestrocontext.Context
	maxSteps           int
	duplicateThreshold int

	state       State
	currentStep int
	recent      []string
	errStreak   int
}

// NewCore builds an idle core. Zero budgets fall back to the
// documented defaults.
func NewCore(name string, mem *memory.Memory, run *maestrocontext.Context, cfg config.AgentConfig) *Core {
	cfg.SetDefaults()
	return &Core{
		name:               name,
		memory:             mem,
		run:                run,
		maxSteps:           cfg.MaxSteps,
		duplicateThreshold: cfg.DuplicateThreshold,
		state:              StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Core) State() State { return c.state }

// CurrentStep returns how many steps have started.
func (c *Core) CurrentStep() int { return c.currentStep }

// Memory returns the conversation log of this run.
func (c *Core) Memory() *memory.Memory { return c.memory }

// Run appends the query to memory and drives the stepper until it
// concludes, stalls on repeated output, exhausts the step budget or
// fails. It returns the last step output; agents derive the
// user-facing answer from memory or the run context.
//
// A single failing step is recorded into memory and survived; a
// second consecutive failure, or any cancellation, ends the run with
// state error.
func (c *Core) Run(ctx context.Context, query string, stepper Stepper) (string, error) {
	if c.state != StateIdle {
		return "", &errdefs.StateError{
			Component: "agent." + c.name,
			Detail:    fmt.Sprintf("run already used (state %s)", c.state),
		}
	}

	tracer := observability.GetTracer("maestro.agent")
	ctx, span := tracer.Start(ctx, observability.SpanAgentRun,
		trace.WithAttributes(
			attribute.String(observability.AttrAgentName, c.name),
			attribute.String(observability.AttrRequestID, c.run.RequestID()),
		),
	)
	defer span.End()

	if query != "" {
		c.memory.Append(llm.UserMessage(query))
	}
	c.state = StateRunning
	slog.Info("Agent run started", "agent", c.name, "request_id", c.run.RequestID())

	var last string
	for c.state == StateRunning && c.currentStep < c.maxSteps {
		if err := errdefs.FromContext(ctx); err != nil {
			return c.fail(span, last, err)
		}
		c.currentStep++

		res, err := stepper.Step(ctx)
		if err != nil {
			if errdefs.IsCancelled(err) {
				return c.fail(span, last, err)
			}
			c.errStreak++
			if c.errStreak >= c.duplicateThreshold {
				slog.Error("Agent giving up after consecutive failures",
					"agent", c.name, "step", c.currentStep, "error", err)
				return c.fail(span, last, err)
			}
			// One failure is survivable: record it where the model can
			// see it and take another step.
			slog.Warn("Agent step failed", "agent", c.name, "step", c.currentStep, "error", err)
			c.memory.Append(llm.AssistantMessage(fmt.Sprintf("Step %d failed: %v", c.currentStep, err)))
			continue
		}
		c.errStreak = 0
		last = res.Output

		if res.Done {
			c.state = StateFinished
			break
		}
		if c.stalled(res.Output) {
			slog.Warn("Agent stalled on repeated output", "agent", c.name, "step", c.currentStep)
			c.state = StateFinished
			break
		}
	}
	if c.state == StateRunning {
		slog.Warn("Agent exhausted its step budget", "agent", c.name, "max_steps", c.maxSteps)
		c.state = StateFinished
	}

	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.Int("agent.steps", c.currentStep))
	slog.Info("Agent run finished", "agent", c.name, "steps", c.currentStep)
	return last, nil
}

func (c *Core) fail(span trace.Span, last string, err error) (string, error) {
	c.state = StateError
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(observability.AttrErrorType, fmt.Sprintf("%T", err)))
	return last, err
}

// stalled records the output and reports whether the last
// duplicateThreshold outputs are identical.
func (c *Core) stalled(output string) bool {
	c.recent = append(c.recent, output)
	if len(c.recent) > c.duplicateThreshold {
		c.recent = c.recent[1:]
	}
	if len(c.recent) < c.duplicateThreshold {
		return false
	}
	for _, o := range c.recent[1:] {
		if o != c.recent[0] {
			return false
		}
	}
	return true
}
