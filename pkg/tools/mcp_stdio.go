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

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kadirpekel/maestro/pkg/config"
	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/errdefs"
)

const mcpProtocolVersion = "2024-11-05"

// StdioServer owns one spawned MCP subprocess. It lives for the life of
// the service and is closed on shutdown.
type StdioServer struct {
	name   string
	client *client.Client
}

// ConnectStdio spawns the configured command, performs the MCP handshake
// and returns the server handle together with its advertised tools.
func ConnectStdio(ctx context.Context, cfg *config.MCPServerConfig) (*StdioServer, []Tool, error) {
	mcpClient, err := client.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return nil, nil, fmt.Errorf("mcp %s: spawn: %w", cfg.Name, err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		mcpClient.Close()
		return nil, nil, fmt.Errorf("mcp %s: start: %w", cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "maestro",
		Version: "1.0.0",
	}
	initReq.Params.ProtocolVersion = mcpProtocolVersion

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, nil, fmt.Errorf("mcp %s: initialize: %w", cfg.Name, err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return nil, nil, fmt.Errorf("mcp %s: list tools: %w", cfg.Name, err)
	}

	srv := &StdioServer{name: cfg.Name, client: mcpClient}
	tools := make([]Tool, 0, len(listResp.Tools))
	for _, mt := range listResp.Tools {
		tools = append(tools, &stdioTool{
			server: srv,
			name:   mt.Name,
			desc:   mt.Description,
			schema: stdioSchema(mt.InputSchema),
		})
	}

	slog.Info("Connected to MCP server",
		"name", cfg.Name,
		"transport", "stdio",
		"command", cfg.Command,
		"tools", len(tools))

	return srv, tools, nil
}

// Close terminates the subprocess.
func (s *StdioServer) Close() error {
	return s.client.Close()
}

// stdioTool is one tool of a stdio MCP server.
type stdioTool struct {
	server *StdioServer
	name   string
	desc   string
	schema map[string]any
}

func (t *stdioTool) Name() string { return t.name }

func (t *stdioTool) Description() string {
	if t.desc != "" {
		return t.desc
	}
	return fmt.Sprintf("Tool %s provided by the %s server", t.name, t.server.name)
}

func (t *stdioTool) Parameters() map[string]any {
	if t.schema != nil {
		return t.schema
	}
	return map[string]any{"type": "object"}
}

func (t *stdioTool) Execute(ctx context.Context, run *maestrocontext.Context, args map[string]any) (ToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = t.name
	req.Params.Arguments = args

	resp, err := t.server.client.CallTool(ctx, req)
	if err != nil {
		return ToolResult{}, &errdefs.TransportError{Op: "mcp." + t.server.name, Err: err}
	}

	var texts []string
	for _, content := range resp.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			texts = append(texts, textContent.Text)
		}
	}
	joined := strings.Join(texts, "\n")

	if resp.IsError {
		if joined == "" {
			joined = "unknown error"
		}
		return Failf("%s", joined), nil
	}
	return Success(joined), nil
}

// stdioSchema converts the library's schema type into a plain map via a
// JSON round trip.
func stdioSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}
