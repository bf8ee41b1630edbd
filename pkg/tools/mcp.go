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
	"errors"
	"fmt"

	"github.com/kadirpekel/maestro/pkg/config"
	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/errdefs"
)

// mcpToolSpec is one tool advertised by a server's list endpoint.
type mcpToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type mcpListResponse struct {
	Tools []mcpToolSpec `json:"tools"`
}

type mcpCallRequest struct {
	ToolName  string         `json:"toolName"`
	Arguments map[string]any `json:"arguments"`
	RequestID string         `json:"requestId,omitempty"`
}

type mcpCallResponse struct {
	Content json.RawMessage `json:"content"`
	IsError bool            `json:"isError,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// MCPClient speaks the HTTP list/call protocol of one tool server.
type MCPClient struct {
	name string
	b    *backend
}

// NewMCPClient creates a client for the named server.
func NewMCPClient(name string, cfg *config.EndpointConfig) *MCPClient {
	return &MCPClient{name: name, b: newBackend("mcp."+name, cfg)}
}

// ListTools fetches the server's tool specs.
func (c *MCPClient) ListTools(ctx context.Context) ([]mcpToolSpec, error) {
	var resp mcpListResponse
	if err := c.b.postJSON(ctx, "/v1/tool/list", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

// Call invokes one tool and returns the response content verbatim:
// string content unquoted, anything else as its JSON text.
func (c *MCPClient) Call(ctx context.Context, requestID, toolName string, args map[string]any) (string, error) {
	var resp mcpCallResponse
	err := c.b.postJSON(ctx, "/v1/tool/call", mcpCallRequest{
		ToolName:  toolName,
		Arguments: args,
		RequestID: requestID,
	}, &resp)
	if err != nil {
		return "", err
	}

	if resp.IsError || resp.Error != "" {
		reason := resp.Error
		if reason == "" {
			reason = rawToString(resp.Content)
		}
		return "", &errdefs.ToolError{Tool: toolName, Reason: reason}
	}
	return rawToString(resp.Content), nil
}

func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// MCPTool exposes one remote tool of an MCP server. The binding to the
// server happens at registration; each call forwards the tool name and
// arguments unchanged.
type MCPTool struct {
	client *MCPClient
	spec   mcpToolSpec
}

// NewMCPTool wraps one advertised tool spec.
func NewMCPTool(client *MCPClient, spec mcpToolSpec) *MCPTool {
	return &MCPTool{client: client, spec: spec}
}

func (t *MCPTool) Name() string { return t.spec.Name }

func (t *MCPTool) Description() string {
	if t.spec.Description != "" {
		return t.spec.Description
	}
	return fmt.Sprintf("Tool %s provided by the %s server", t.spec.Name, t.client.name)
}

func (t *MCPTool) Parameters() map[string]any {
	if t.spec.InputSchema != nil {
		return t.spec.InputSchema
	}
	return map[string]any{"type": "object"}
}

func (t *MCPTool) Execute(ctx context.Context, run *maestrocontext.Context, args map[string]any) (ToolResult, error) {
	content, err := t.client.Call(ctx, run.RequestID(), t.spec.Name, args)
	if err != nil {
		// The server answering with an error is a tool failure the
		// model can react to; not reaching the server is not.
		var toolErr *errdefs.ToolError
		if errors.As(err, &toolErr) {
			return Failf("%s", toolErr.Reason), nil
		}
		return ToolResult{}, err
	}
	return Success(content), nil
}
