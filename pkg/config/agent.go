package config

import "fmt"

// AgentConfig configures run budgets shared by all agents.
type AgentConfig struct {
	// MaxSteps bounds one agent run. Reaching it ends the run with
	// whatever the last step produced.
	MaxSteps int `yaml:"max_steps,omitempty" json:"max_steps,omitempty" jsonschema:"title=Max Steps,minimum=1"`

	// DuplicateThreshold is how many identical consecutive model
	// outputs stall a run.
	DuplicateThreshold int `yaml:"duplicate_threshold,omitempty" json:"duplicate_threshold,omitempty" jsonschema:"title=Duplicate Threshold,minimum=2"`

	// DigitalEmployee labels events produced outside any named agent.
	DigitalEmployee string `yaml:"digital_employee,omitempty" json:"digital_employee,omitempty"`
}

// SetDefaults applies default values.
func (c *AgentConfig) SetDefaults() {
	if c.MaxSteps == 0 {
		c.MaxSteps = 10
	}
	if c.DuplicateThreshold == 0 {
		c.DuplicateThreshold = 2
	}
}

// Validate checks the agent budgets.
func (c *AgentConfig) Validate() error {
	if c.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be at least 1")
	}
	if c.DuplicateThreshold < 2 {
		return fmt.Errorf("duplicate_threshold must be at least 2")
	}
	return nil
}

// PromptsConfig overrides the built-in system prompts. Empty fields
// keep the built-in text.
type PromptsConfig struct {
	// Planning is the system prompt of the planning agent.
	Planning string `yaml:"planning,omitempty" json:"planning,omitempty"`

	// Executor is the system prompt of the executor agent.
	Executor string `yaml:"executor,omitempty" json:"executor,omitempty"`

	// Summary is the system prompt of the summary agent.
	Summary string `yaml:"summary,omitempty" json:"summary,omitempty"`

	// OutputStyles maps an output style name to the prompt fragment
	// appended for it. Merged over the built-in map.
	OutputStyles map[string]string `yaml:"output_styles,omitempty" json:"output_styles,omitempty"`
}

// SetDefaults applies default values.
func (c *PromptsConfig) SetDefaults() {
	if c.OutputStyles == nil {
		c.OutputStyles = make(map[string]string)
	}
}
