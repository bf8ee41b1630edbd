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

// Package tools implements the tool subsystem: the Tool interface, the
// Collection that executes calls (single or in parallel with a barrier),
// parameter-schema generation, the built-in tools backed by remote
// services, and dynamic tools discovered from MCP servers.
//
// Tools may stream intermediate events through the run's printer while
// they work; their returned ToolResult is what the agent records into
// conversation memory.
package tools

import (
	"context"
	"fmt"
	"time"

	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/protocol"
)

// Status of one tool execution.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// ToolResult is the outcome of one tool execution. Error carries the
// short cause when Status is error; Files lists artifacts the execution
// produced.
type ToolResult struct {
	Status   Status                `json:"status"`
	Content  string                `json:"content,omitempty"`
	Error    string                `json:"error,omitempty"`
	ToolName string                `json:"toolName,omitempty"`
	Files    []protocol.FileHandle `json:"files,omitempty"`
	Duration time.Duration         `json:"-"`
}

// Success builds an ok result.
func Success(content string, files ...protocol.FileHandle) ToolResult {
	return ToolResult{Status: StatusOK, Content: content, Files: files}
}

// Failf builds an error result.
func Failf(format string, args ...any) ToolResult {
	return ToolResult{Status: StatusError, Error: fmt.Sprintf(format, args...)}
}

// Failed reports whether the execution ended in error.
func (r ToolResult) Failed() bool {
	return r.Status == StatusError
}

// Text renders the result as the message content the model sees.
func (r ToolResult) Text() string {
	if r.Failed() {
		return "Error: " + r.Error
	}
	return r.Content
}

// Tool is one callable capability. Execute receives both the standard
// context for cancellation and the run context for emitting events and
// sharing state. A returned error means the tool infrastructure failed;
// a business-level failure is a ToolResult with Status error.
type Tool interface {
	Name() string
	Description() string

	// Parameters returns the JSON schema of the arguments object.
	Parameters() map[string]any

	Execute(ctx context.Context, run *maestrocontext.Context, args map[string]any) (ToolResult, error)
}

// CallResult pairs one executed call with its result. ExecuteMany
// returns these in the order the calls were requested.
type CallResult struct {
	CallID string
	Name   string
	Result ToolResult
}

// clip bounds text destined for conversation memory, marking the cut.
func clip(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + fmt.Sprintf("\n... (truncated, %d bytes total)", len(s))
}
