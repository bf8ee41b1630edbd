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

// Package agent implements the reasoning loop and the agents built on
// it. A shared Core drives any Stepper through the bounded run loop;
// ReactAgent supplies the think/act step and serves both react mode
// and plan stages, PlanningAgent decomposes the task into stages
// executed by executor sub-runs, and SummaryAgent writes the final
// answer from the collected stage results.
package agent

import (
	"unicode/utf8"

	"github.com/kadirpekel/maestro/pkg/config"
	"github.com/kadirpekel/maestro/pkg/llm"
	"github.com/kadirpekel/maestro/pkg/memory"
	"github.com/kadirpekel/maestro/pkg/tools"
)

// Model pairs a provider with the token counter for its model.
type Model struct {
	Provider llm.Provider
	Counter  llm.Counter
}

// ModelSet resolves the model each agent role runs on. Roles without a
// profile of their own share the default model.
type ModelSet struct {
	Planning Model
	Executor Model
	Summary  Model
}

// UniformModels runs every role on the same model.
func UniformModels(m Model) ModelSet {
	return ModelSet{Planning: m, Executor: m, Summary: m}
}

// Deps bundles the collaborators agents are built from. One Deps value
// serves a whole request; agents never mutate it.
type Deps struct {
	Models  ModelSet
	Tools   *tools.Collection
	Prompts *PromptSet
	Agent   config.AgentConfig
}

// lastAssistantText returns the content of the newest assistant message
// that carries text, skipping tool-call turns without any.
func lastAssistantText(m *memory.Memory) string {
	msgs := m.Snapshot()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleAssistant && msgs[i].Content != "" {
			return msgs[i].Content
		}
	}
	return ""
}

// clip bounds s for event payloads and plan notes, cutting on a rune
// boundary.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
