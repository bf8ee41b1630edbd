package config

import (
	"fmt"
	"time"
)

// EndpointConfig configures one tool egress endpoint.
type EndpointConfig struct {
	// BaseURL of the tool service. Empty disables the tool.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// ConnectTimeout bounds dialing the service.
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty"`

	// ReadTimeout bounds reading between stream chunks.
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`

	// MaxRetries bounds retry attempts on retryable failures.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
}

// Enabled reports whether the endpoint is configured at all.
func (c *EndpointConfig) Enabled() bool {
	return c.BaseURL != ""
}

// SetDefaults applies default values.
func (c *EndpointConfig) SetDefaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 60 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// ToolsConfig configures the built-in tool endpoints. Tools whose
// endpoint has no base_url are not registered.
type ToolsConfig struct {
	CodeInterpreter EndpointConfig `yaml:"code_interpreter,omitempty" json:"code_interpreter,omitempty"`
	DeepSearch      EndpointConfig `yaml:"deep_search,omitempty" json:"deep_search,omitempty"`
	Report          EndpointConfig `yaml:"report,omitempty" json:"report,omitempty"`
	FileTool        EndpointConfig `yaml:"file_tool,omitempty" json:"file_tool,omitempty"`

	// Personas maps tool names to the digital-employee label their
	// events carry, e.g. code_interpreter: "Coder".
	Personas map[string]string `yaml:"personas,omitempty" json:"personas,omitempty"`
}

// SetDefaults applies default values.
func (c *ToolsConfig) SetDefaults() {
	c.CodeInterpreter.SetDefaults()
	c.DeepSearch.SetDefaults()
	c.Report.SetDefaults()
	c.FileTool.SetDefaults()
}

// Validate checks the tool endpoints.
func (c *ToolsConfig) Validate() error {
	return nil
}

// MCPTransport identifies how an MCP server is reached.
type MCPTransport string

const (
	MCPTransportHTTP  MCPTransport = "http"
	MCPTransportStdio MCPTransport = "stdio"
)

// MCPServerConfig configures one external MCP tool server.
type MCPServerConfig struct {
	// Name labels the server in logs and tool origins.
	Name string `yaml:"name" json:"name"`

	// Transport is "http" or "stdio".
	Transport MCPTransport `yaml:"transport,omitempty" json:"transport,omitempty"`

	// URL of the server (http transport).
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Command spawns the server process (stdio transport).
	Command string `yaml:"command,omitempty" json:"command,omitempty"`

	// Args for the command.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Env passed to the command, "KEY=VALUE" entries.
	Env []string `yaml:"env,omitempty" json:"env,omitempty"`
}

// SetDefaults applies default values.
func (c *MCPServerConfig) SetDefaults() {
	if c.Transport == "" {
		if c.Command != "" {
			c.Transport = MCPTransportStdio
		} else {
			c.Transport = MCPTransportHTTP
		}
	}
}

// Validate checks one MCP server entry.
func (c *MCPServerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch c.Transport {
	case MCPTransportHTTP:
		if c.URL == "" {
			return fmt.Errorf("url is required for http transport")
		}
	case MCPTransportStdio:
		if c.Command == "" {
			return fmt.Errorf("command is required for stdio transport")
		}
	default:
		return fmt.Errorf("invalid transport %q (valid: http, stdio)", c.Transport)
	}
	return nil
}

// MCPConfig configures the MCP server list.
type MCPConfig struct {
	// Servers to discover tools from at startup.
	Servers []*MCPServerConfig `yaml:"servers,omitempty" json:"servers,omitempty"`
}

// SetDefaults applies default values.
func (c *MCPConfig) SetDefaults() {
	for _, s := range c.Servers {
		if s != nil {
			s.SetDefaults()
		}
	}
}

// Validate checks all MCP server entries.
func (c *MCPConfig) Validate() error {
	seen := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		if s == nil {
			return fmt.Errorf("server %d: empty", i)
		}
		if err := s.Validate(); err != nil {
			return fmt.Errorf("server %d: %w", i, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("server %d: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}
