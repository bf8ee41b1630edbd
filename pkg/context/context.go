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

// Package context carries the request-scoped state of a single run: ids,
// the event printer, the shared plan, produced files, and the per-stage
// summaries that feed the final answer. One Context is built per incoming
// request and handed to every agent and tool that serves it.
//
// Cancellation and deadlines are not part of this type; they travel
// through the standard context.Context alongside it.
package context

import (
	"strings"
	"sync"

	"github.com/kadirpekel/maestro/pkg/memory"
	"github.com/kadirpekel/maestro/pkg/plan"
	"github.com/kadirpekel/maestro/pkg/protocol"
	"github.com/kadirpekel/maestro/pkg/sse"
)

// Context is the mutable state shared by the agents and tools of one run.
type Context struct {
	requestID   string
	sessionID   string
	query       string
	outputStyle protocol.OutputStyle
	streamMode  bool
	printer     *sse.Printer

	mu        sync.Mutex
	plan      *plan.Plan
	files     []protocol.FileHandle
	seenFiles map[string]struct{}
	summaries []string
	memories  map[string]*memory.Memory
}

// New builds the state for one request. The printer must already be
// attached to the response stream.
func New(req *protocol.RunRequest, printer *sse.Printer) *Context {
	return &Context{
		requestID:   req.RequestID,
		sessionID:   req.SessionID,
		query:       req.Query,
		outputStyle: req.OutputStyle,
		streamMode:  req.Stream,
		printer:     printer,
		seenFiles:   make(map[string]struct{}),
		memories:    make(map[string]*memory.Memory),
	}
}

// RequestID returns the id of the request this run serves.
func (c *Context) RequestID() string { return c.requestID }

// SessionID returns the caller's session id, if any.
func (c *Context) SessionID() string { return c.sessionID }

// Query returns the user's task text.
func (c *Context) Query() string { return c.query }

// OutputStyle returns the requested artifact style.
func (c *Context) OutputStyle() protocol.OutputStyle { return c.outputStyle }

// StreamMode reports whether incremental deltas should be emitted.
func (c *Context) StreamMode() bool { return c.streamMode }

// Printer returns the event stream of this run.
func (c *Context) Printer() *sse.Printer { return c.printer }

// Emit sends a single-frame message of the given type.
func (c *Context) Emit(t protocol.MessageType, payload any) error {
	return c.printer.Send(protocol.Event{
		MessageType: t,
		TaskID:      c.requestID,
		ResultMap:   payload,
		IsFinal:     true,
	})
}

// EmitAs is Emit with a digital employee label on the frame.
func (c *Context) EmitAs(persona string, t protocol.MessageType, payload any) error {
	return c.printer.Send(protocol.Event{
		MessageType:     t,
		TaskID:          c.requestID,
		DigitalEmployee: persona,
		ResultMap:       payload,
		IsFinal:         true,
	})
}

// EmitDelta sends one frame of a multi-frame message. All frames of the
// message share messageID; only the last carries final=true.
func (c *Context) EmitDelta(messageID string, t protocol.MessageType, payload any, final bool) error {
	return c.printer.Send(protocol.Event{
		MessageID:   messageID,
		MessageType: t,
		TaskID:      c.requestID,
		ResultMap:   payload,
		IsFinal:     final,
	})
}

// SetPlan installs the run's plan. The planning tool calls this once per
// create action; later actions mutate the same instance.
func (c *Context) SetPlan(p *plan.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plan = p
}

// Plan returns the run's plan, or nil before one is created.
func (c *Context) Plan() *plan.Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan
}

// PublishPlan emits a plan event with the plan's current state. It is a
// no-op before a plan exists.
func (c *Context) PublishPlan() error {
	p := c.Plan()
	if p == nil {
		return nil
	}
	return c.Emit(protocol.TypePlan, p.Payload())
}

// AddFiles records produced artifacts. Duplicates (same name and URL) are
// dropped so re-reported handles do not inflate the final file list.
func (c *Context) AddFiles(files ...protocol.FileHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range files {
		key := f.FileName + "\x00" + f.OSSURL
		if _, dup := c.seenFiles[key]; dup {
			continue
		}
		c.seenFiles[key] = struct{}{}
		c.files = append(c.files, f)
	}
}

// Files returns the artifacts collected so far, in production order.
func (c *Context) Files() []protocol.FileHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.FileHandle, len(c.files))
	copy(out, c.files)
	return out
}

// AppendSummary records one completed stage's outcome.
func (c *Context) AppendSummary(s string) {
	if s == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summaries = append(c.summaries, s)
}

// Summary joins the recorded stage outcomes for the final summarization
// pass.
func (c *Context) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.summaries, "\n\n")
}

// Memory returns the named shared message log, creating it on first use.
// Sub-agents that should see each other's messages ask for the same name.
func (c *Context) Memory(name string) *memory.Memory {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.memories[name]
	if !ok {
		m = memory.New()
		c.memories[name] = m
	}
	return m
}
