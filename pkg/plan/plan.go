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

// Package plan tracks the staged execution plan of a run. A plan is three
// parallel lists (stage names, step descriptions, step statuses) plus a
// cursor. Statuses only move forward: not_started -> in_progress ->
// completed or blocked.
package plan

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kadirpekel/maestro/pkg/errdefs"
	"github.com/kadirpekel/maestro/pkg/protocol"
)

// Status is the lifecycle state of a single plan step.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// terminal reports whether a step in this status can never change again.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusBlocked
}

// Plan is a mutable staged plan. All methods are safe for concurrent use;
// the planning tool and the planning agent both touch the same instance.
type Plan struct {
	mu      sync.Mutex
	title   string
	stages  []string
	steps   []string
	status  []Status
	notes   []string
	current int
}

// New builds a plan from parallel stage and step lists. Every step starts
// as not_started and the cursor points at the first step.
func New(title string, stages, steps []string) (*Plan, error) {
	if len(stages) == 0 {
		return nil, &errdefs.StateError{Component: "plan", Detail: "plan needs at least one stage"}
	}
	if len(stages) != len(steps) {
		return nil, &errdefs.StateError{
			Component: "plan",
			Detail:    fmt.Sprintf("stages and steps must align: %d stages, %d steps", len(stages), len(steps)),
		}
	}
	p := &Plan{
		title:  title,
		stages: append([]string(nil), stages...),
		steps:  append([]string(nil), steps...),
		status: make([]Status, len(stages)),
		notes:  make([]string, len(stages)),
	}
	for i := range p.status {
		p.status[i] = StatusNotStarted
	}
	return p, nil
}

// Update replaces the stage and step lists. Statuses and notes of steps that
// keep their position survive; appended steps start as not_started. The
// cursor is clamped to the new length.
func (p *Plan) Update(title string, stages, steps []string) error {
	if len(stages) == 0 {
		return &errdefs.StateError{Component: "plan", Detail: "plan needs at least one stage"}
	}
	if len(stages) != len(steps) {
		return &errdefs.StateError{
			Component: "plan",
			Detail:    fmt.Sprintf("stages and steps must align: %d stages, %d steps", len(stages), len(steps)),
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	status := make([]Status, len(stages))
	notes := make([]string, len(stages))
	for i := range status {
		if i < len(p.status) {
			status[i] = p.status[i]
			notes[i] = p.notes[i]
		} else {
			status[i] = StatusNotStarted
		}
	}

	if title != "" {
		p.title = title
	}
	p.stages = append([]string(nil), stages...)
	p.steps = append([]string(nil), steps...)
	p.status = status
	p.notes = notes
	if p.current > len(stages) {
		p.current = len(stages)
	}
	return nil
}

// Mark moves step i to the given status. Transitions only go forward:
// not_started may become in_progress, in_progress may become completed or
// blocked. Re-marking the current status is a no-op. At most one step may be
// in_progress at a time. Completing the step under the cursor advances it
// past every already-completed step that follows.
func (p *Plan) Mark(i int, s Status, note string) error {
	if !s.Valid() {
		return &errdefs.StateError{Component: "plan", Detail: fmt.Sprintf("unknown step status %q", s)}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.status) {
		return &errdefs.StateError{Component: "plan", Detail: fmt.Sprintf("step index %d out of range [0,%d)", i, len(p.status))}
	}

	cur := p.status[i]
	if cur == s {
		if note != "" {
			p.notes[i] = note
		}
		return nil
	}
	if cur.terminal() {
		return &errdefs.StateError{Component: "plan", Detail: fmt.Sprintf("step %d is %s and cannot change", i, cur)}
	}
	switch s {
	case StatusNotStarted:
		return &errdefs.StateError{Component: "plan", Detail: fmt.Sprintf("step %d cannot go back to not_started", i)}
	case StatusInProgress:
		if cur != StatusNotStarted {
			return &errdefs.StateError{Component: "plan", Detail: fmt.Sprintf("step %d is %s, only not_started steps can start", i, cur)}
		}
		for j, st := range p.status {
			if st == StatusInProgress && j != i {
				return &errdefs.StateError{Component: "plan", Detail: fmt.Sprintf("step %d is already in progress", j)}
			}
		}
	case StatusCompleted, StatusBlocked:
		if cur != StatusInProgress {
			return &errdefs.StateError{Component: "plan", Detail: fmt.Sprintf("step %d is %s, only in_progress steps can become %s", i, cur, s)}
		}
	}

	p.status[i] = s
	if note != "" {
		p.notes[i] = note
	}
	if s == StatusCompleted && i == p.current {
		p.advanceLocked()
	}
	return nil
}

// advanceLocked moves the cursor to the first non-completed step at or after
// its current position. Callers must hold p.mu.
func (p *Plan) advanceLocked() {
	for p.current < len(p.status) && p.status[p.current] == StatusCompleted {
		p.current++
	}
}

// Start marks step i in_progress.
func (p *Plan) Start(i int) error { return p.Mark(i, StatusInProgress, "") }

// Complete marks step i completed, recording an optional note.
func (p *Plan) Complete(i int, note string) error { return p.Mark(i, StatusCompleted, note) }

// Block marks step i blocked, recording the reason.
func (p *Plan) Block(i int, reason string) error { return p.Mark(i, StatusBlocked, reason) }

// Finish force-completes every step that is not already terminal. Used when
// the model declares the plan done ahead of the remaining steps.
func (p *Plan) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, st := range p.status {
		if !st.terminal() {
			p.status[i] = StatusCompleted
		}
	}
	p.current = len(p.status)
}

// NextPending returns the index of the first step that is not_started or
// in_progress. The second return is false when no such step exists.
func (p *Plan) NextPending() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, st := range p.status {
		if !st.terminal() {
			return i, true
		}
	}
	return 0, false
}

// CurrentIndex returns the cursor position.
func (p *Plan) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Len returns the number of steps.
func (p *Plan) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.steps)
}

// Title returns the plan title.
func (p *Plan) Title() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title
}

// Step returns the stage name and step description at index i.
func (p *Plan) Step(i int) (stage, step string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.steps) {
		return "", "", &errdefs.StateError{Component: "plan", Detail: fmt.Sprintf("step index %d out of range [0,%d)", i, len(p.steps))}
	}
	return p.stages[i], p.steps[i], nil
}

// StatusAt returns the status of step i, or StatusNotStarted when i is out
// of range.
func (p *Plan) StatusAt(i int) Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.status) {
		return StatusNotStarted
	}
	return p.status[i]
}

// Done reports whether every step is completed.
func (p *Plan) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, st := range p.status {
		if st != StatusCompleted {
			return false
		}
	}
	return true
}

// Blocked reports whether any step is blocked.
func (p *Plan) Blocked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, st := range p.status {
		if st == StatusBlocked {
			return true
		}
	}
	return false
}

// Payload renders the plan as a protocol payload for plan events.
func (p *Plan) Payload() protocol.PlanPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := protocol.PlanPayload{
		Stages:       append([]string(nil), p.stages...),
		Steps:        append([]string(nil), p.steps...),
		StepStatus:   make([]string, len(p.status)),
		CurrentIndex: p.current,
	}
	for i, st := range p.status {
		out.StepStatus[i] = string(st)
	}
	return out
}

// Render formats the plan as plain text for injection into model context.
func (p *Plan) Render() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	if p.title != "" {
		fmt.Fprintf(&b, "Plan: %s\n", p.title)
	} else {
		b.WriteString("Plan:\n")
	}
	completed := 0
	for _, st := range p.status {
		if st == StatusCompleted {
			completed++
		}
	}
	fmt.Fprintf(&b, "Progress: %d/%d steps completed\n", completed, len(p.steps))
	for i := range p.steps {
		marker := " "
		switch p.status[i] {
		case StatusInProgress:
			marker = ">"
		case StatusCompleted:
			marker = "x"
		case StatusBlocked:
			marker = "!"
		}
		fmt.Fprintf(&b, "  [%s] %d. %s: %s", marker, i+1, p.stages[i], p.steps[i])
		if p.notes[i] != "" {
			fmt.Fprintf(&b, " (%s)", p.notes[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
