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

// Package memory holds the conversation log an agent accumulates during a
// single run. The log is append-only while the run is active; trimming for
// the model's input budget happens at call time via llm.Prune, never here.
package memory

import (
	"sync"

	"github.com/kadirpekel/maestro/pkg/llm"
)

// Memory is an ordered message log. It is safe for concurrent use so
// sub-agents that share a log cannot corrupt it.
type Memory struct {
	mu       sync.Mutex
	messages []llm.Message
}

// New returns an empty log.
func New() *Memory {
	return &Memory{}
}

// WithSystem returns a log seeded with the given system prompts, in order.
// Empty prompts are skipped.
func WithSystem(prompts ...string) *Memory {
	m := New()
	for _, p := range prompts {
		if p == "" {
			continue
		}
		m.messages = append(m.messages, llm.SystemMessage(p))
	}
	return m
}

// Append adds messages to the end of the log.
func (m *Memory) Append(msgs ...llm.Message) {
	if len(msgs) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
}

// Snapshot returns a copy of the log. Callers may mutate the returned slice
// freely; the log itself is unaffected.
func (m *Memory) Snapshot() []llm.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len reports the number of messages in the log.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Last returns the most recent message, if any.
func (m *Memory) Last() (llm.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return llm.Message{}, false
	}
	return m.messages[len(m.messages)-1], true
}

// ClearToolContext drops every tool reply and every assistant message that
// carried tool calls, keeping the rest of the log intact. Planning runs call
// this between iterations so stale tool output does not crowd the window.
func (m *Memory) ClearToolContext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.Role == llm.RoleTool {
			continue
		}
		if msg.Role == llm.RoleAssistant && len(msg.ToolCalls) > 0 {
			continue
		}
		kept = append(kept, msg)
	}
	m.messages = kept
}

// Reset drops everything except the leading system messages.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for n < len(m.messages) && m.messages[n].Role == llm.RoleSystem {
		n++
	}
	m.messages = m.messages[:n]
}
