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

// Package orchestrator drives one request from ingress to the final
// result frame. It selects the top-level agent for the request mode,
// owns the request-scoped run context and converts whatever the agents
// produce, answers and failures alike, into the closing frame of the
// stream.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadirpekel/maestro/pkg/agent"
	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/errdefs"
	"github.com/kadirpekel/maestro/pkg/observability"
	"github.com/kadirpekel/maestro/pkg/protocol"
	"github.com/kadirpekel/maestro/pkg/sse"
)

const timeoutResultText = "request deadline exceeded"

// Orchestrator turns validated run requests into agent runs. It is
// shared across requests; all per-request state lives on the run
// context it creates.
type Orchestrator struct {
	deps agent.Deps
}

// New builds an orchestrator over the shared agent dependencies.
func New(deps agent.Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Run executes one request and always leaves the printer closed. The
// returned error is for the caller's logs; everything the client is
// allowed to see has already been written to the stream.
func (o *Orchestrator) Run(ctx context.Context, req *protocol.RunRequest, printer *sse.Printer) error {
	run := maestrocontext.New(req, printer)
	log := slog.With("request_id", req.RequestID, "mode", string(req.Mode))
	log.Info("Run started", "stream", req.Stream, "output_style", string(req.OutputStyle))

	start := time.Now()
	out, err := o.dispatch(ctx, run, req)
	o.finish(run, printer, out, err)

	if err != nil {
		log.Error("Run failed", "error", err, "duration", time.Since(start))
		return err
	}
	log.Info("Run finished", "duration", time.Since(start), "files", len(run.Files()))
	return nil
}

// dispatch runs the mode's agent chain. A panic below this point is an
// agent bug, not a reason to leave the stream hanging.
func (o *Orchestrator) dispatch(ctx context.Context, run *maestrocontext.Context, req *protocol.RunRequest) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errdefs.StateError{Component: "orchestrator", Detail: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if req.Mode == protocol.ModePlan {
		return o.runPlan(ctx, run, req.Query)
	}
	return o.runReact(ctx, run, req.Query)
}

// runPlan has the planning agent decompose and execute the task, then
// folds the collected stage results through the summary agent. The
// summary runs even when a stage blocked: partial results still deserve
// a coherent answer.
func (o *Orchestrator) runPlan(ctx context.Context, run *maestrocontext.Context, query string) (string, error) {
	planner := agent.NewPlanning(run, o.deps)
	if _, err := timed(ctx, "planning", protocol.ModePlan, func() (string, error) {
		return planner.Run(ctx, query)
	}); err != nil {
		return "", err
	}

	summarizer := agent.NewSummary(run, o.deps)
	return timed(ctx, "summary", protocol.ModePlan, func() (string, error) {
		return summarizer.Run(ctx)
	})
}

// runReact hands the whole task to a single executor.
func (o *Orchestrator) runReact(ctx context.Context, run *maestrocontext.Context, query string) (string, error) {
	exec := agent.NewExecutor(run, o.deps)
	return timed(ctx, "executor", protocol.ModeReact, func() (string, error) {
		return exec.Run(ctx, query)
	})
}

// finish writes the closing frame. Cancellation is not a user error: a
// deadline closes with a timeout result, a client hangup closes the
// stream abruptly with no final frame at all.
func (o *Orchestrator) finish(run *maestrocontext.Context, printer *sse.Printer, out string, err error) {
	switch {
	case err == nil:
		printer.Close(&protocol.ResultPayload{
			Status:   protocol.StatusSuccess,
			Result:   out,
			FileList: run.Files(),
		})

	case errdefs.IsCancelled(err):
		if reason, ok := errdefs.CancelReasonOf(err); ok && reason == errdefs.CancelDeadline {
			printer.Close(&protocol.ResultPayload{
				Status:   protocol.StatusTimeout,
				Result:   timeoutResultText,
				FileList: run.Files(),
			})
			return
		}
		printer.Close(nil)

	default:
		printer.Close(&protocol.ResultPayload{
			Status:   protocol.StatusError,
			Result:   redact(err),
			FileList: run.Files(),
		})
	}
}

// timed records one top-level agent run on the metrics recorder.
func timed(ctx context.Context, name string, mode protocol.Mode, fn func() (string, error)) (string, error) {
	start := time.Now()
	out, err := fn()
	observability.GetGlobalMetrics().RecordAgentRun(ctx, name, string(mode), time.Since(start), err)
	return out, err
}

// redact maps an internal failure onto the reason shown to the caller.
// The full error goes to the logs, never to the wire.
func redact(err error) string {
	switch {
	case errdefs.IsBudget(err):
		return "the request exceeded the model's context budget"
	case errdefs.IsTransport(err):
		return "an upstream service was unreachable"
	case errdefs.IsParse(err):
		return "an upstream service returned an unreadable response"
	case errdefs.IsTool(err):
		return "a tool kept failing and the run could not continue"
	default:
		return "the run failed unexpectedly"
	}
}
