package config

import (
	"fmt"
)

// DefaultProfile is the LLM profile used when an agent has no profile
// of its own.
const DefaultProfile = "default"

// Config is the root configuration for the maestro service.
type Config struct {
	// LLM holds named model profiles. The "default" profile is required;
	// the planner, executor, and summary agents fall back to it when no
	// profile with their name exists.
	LLM map[string]*LLMConfig `yaml:"llm,omitempty" json:"llm,omitempty"`

	// Tools configures the egress endpoints of the built-in tools.
	Tools ToolsConfig `yaml:"tools,omitempty" json:"tools,omitempty"`

	// MCP configures external MCP tool servers.
	MCP MCPConfig `yaml:"mcp,omitempty" json:"mcp,omitempty"`

	// Agent configures run budgets shared by all agents.
	Agent AgentConfig `yaml:"agent,omitempty" json:"agent,omitempty"`

	// Prompts overrides the built-in system prompts.
	Prompts PromptsConfig `yaml:"prompts,omitempty" json:"prompts,omitempty"`

	// Server configures the HTTP ingress.
	Server ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`

	// Stream configures the SSE channel per request.
	Stream StreamConfig `yaml:"stream,omitempty" json:"stream,omitempty"`

	// Logger configures logging behavior.
	Logger LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty"`

	// Observability configures metrics and tracing.
	Observability ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// LLMProfile resolves a named profile, falling back to the default one.
func (c *Config) LLMProfile(name string) *LLMConfig {
	if p, ok := c.LLM[name]; ok && p != nil {
		return p
	}
	return c.LLM[DefaultProfile]
}

// SetDefaults applies default values to all sections.
func (c *Config) SetDefaults() {
	if c.LLM == nil {
		c.LLM = make(map[string]*LLMConfig)
	}
	if len(c.LLM) == 0 {
		c.LLM[DefaultProfile] = &LLMConfig{}
	}
	for name := range c.LLM {
		if c.LLM[name] != nil {
			c.LLM[name].SetDefaults()
		}
	}

	c.Tools.SetDefaults()
	c.MCP.SetDefaults()
	c.Agent.SetDefaults()
	c.Prompts.SetDefaults()
	c.Server.SetDefaults()
	c.Stream.SetDefaults()
	c.Logger.SetDefaults()
	c.Observability.SetDefaults()
}

// Validate checks the whole configuration. Call after SetDefaults.
func (c *Config) Validate() error {
	if _, ok := c.LLM[DefaultProfile]; !ok {
		return fmt.Errorf("llm: profile %q is required", DefaultProfile)
	}
	for name, p := range c.LLM {
		if p == nil {
			return fmt.Errorf("llm profile %q: empty", name)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("llm profile %q: %w", name, err)
		}
	}

	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}
	if err := c.MCP.Validate(); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Stream.Validate(); err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	if err := c.Logger.Validate(); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}

	return nil
}
