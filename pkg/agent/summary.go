package agent

import (
	"context"
	"fmt"

	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/llm"
	"github.com/kadirpekel/maestro/pkg/memory"
)

// SummaryAgent folds the run's collected results into the final
// answer with a single model call.
type SummaryAgent struct {
	core *Core
	llm  *caller
}

// NewSummary builds the summary agent for the run's output style.
func NewSummary(run *maestrocontext.Context, deps Deps) *SummaryAgent {
	mem := memory.WithSystem(deps.Prompts.Summary(run.OutputStyle()))
	return &SummaryAgent{
		core: NewCore("summary", mem, run, deps.Agent),
		llm:  newCaller(deps.Models.Summary, run, "summary"),
	}
}

// Run produces the final answer from the original query and the
// accumulated stage results.
func (a *SummaryAgent) Run(ctx context.Context) (string, error) {
	return a.core.Run(ctx, a.query(), a)
}

// State returns the run state.
func (a *SummaryAgent) State() State { return a.core.State() }

func (a *SummaryAgent) query() string {
	run := a.core.run
	results := run.Summary()
	if results == "" {
		results = "(no stage results were collected)"
	}
	return fmt.Sprintf("Original task:\n%s\n\nCollected results:\n%s", run.Query(), results)
}

// Step is the single model turn. The summary never streams deltas;
// its text arrives with the final result event.
func (a *SummaryAgent) Step(ctx context.Context) (StepResult, error) {
	t, err := a.llm.call(ctx, callRequest{messages: a.core.memory.Snapshot()})
	if err != nil {
		return StepResult{}, err
	}
	a.core.memory.Append(llm.AssistantMessage(t.text))
	return StepResult{Output: t.text, Done: true}, nil
}
