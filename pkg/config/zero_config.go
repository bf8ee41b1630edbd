package config

// ZeroConfig holds the handful of CLI options that can stand in for a
// config file.
type ZeroConfig struct {
	// Model name for the default profile.
	Model string

	// BaseURL of the OpenAI-compatible API.
	BaseURL string

	// APIKey (usually from environment).
	APIKey string

	// ToolsURL is the base URL of the tool egress service. It feeds
	// every built-in tool endpoint.
	ToolsURL string

	// MCPURL is an MCP server URL to discover tools from.
	MCPURL string

	// Port for the server.
	Port int
}

// Build turns zero-config options into a full Config with defaults
// applied. The result still needs Validate.
func (z ZeroConfig) Build() *Config {
	cfg := &Config{
		LLM: map[string]*LLMConfig{
			DefaultProfile: {
				Model:   z.Model,
				BaseURL: z.BaseURL,
				APIKey:  z.APIKey,
			},
		},
	}

	if z.ToolsURL != "" {
		cfg.Tools.CodeInterpreter.BaseURL = z.ToolsURL
		cfg.Tools.DeepSearch.BaseURL = z.ToolsURL
		cfg.Tools.Report.BaseURL = z.ToolsURL
		cfg.Tools.FileTool.BaseURL = z.ToolsURL
	}

	if z.MCPURL != "" {
		cfg.MCP.Servers = append(cfg.MCP.Servers, &MCPServerConfig{
			Name:      "mcp",
			Transport: MCPTransportHTTP,
			URL:       z.MCPURL,
		})
	}

	if z.Port != 0 {
		cfg.Server.Port = z.Port
	}

	cfg.SetDefaults()
	return cfg
}
