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
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/maestro/pkg/config"
)

// Build assembles the shared tool collection from configuration.
// Built-ins register only when their endpoint is configured; the
// planning tool is always present. MCP servers are discovered
// concurrently; any of them failing fails startup. The returned closer
// terminates spawned stdio servers.
func Build(ctx context.Context, cfg *config.Config) (*Collection, func() error, error) {
	c := NewCollection()

	var files *FileClient
	if cfg.Tools.FileTool.Enabled() {
		files = NewFileClient(&cfg.Tools.FileTool)
		c.Register(NewFileTool(files))
	}
	if cfg.Tools.CodeInterpreter.Enabled() {
		c.Register(NewCodeInterpreterTool(&cfg.Tools.CodeInterpreter, files))
	}
	if cfg.Tools.DeepSearch.Enabled() {
		c.Register(NewDeepSearchTool(&cfg.Tools.DeepSearch, files))
	}
	if cfg.Tools.Report.Enabled() {
		c.Register(NewReportTool(&cfg.Tools.Report, files))
	}
	c.Register(NewPlanningTool())

	var mu sync.Mutex
	var closers []func() error

	g, gctx := errgroup.WithContext(ctx)
	for _, sc := range cfg.MCP.Servers {
		g.Go(func() error {
			switch sc.Transport {
			case config.MCPTransportStdio:
				srv, discovered, err := ConnectStdio(gctx, sc)
				if err != nil {
					return err
				}
				mu.Lock()
				closers = append(closers, srv.Close)
				mu.Unlock()
				for _, t := range discovered {
					c.Register(t)
				}
			default:
				endpoint := &config.EndpointConfig{BaseURL: sc.URL}
				endpoint.SetDefaults()
				mcpClient := NewMCPClient(sc.Name, endpoint)
				specs, err := mcpClient.ListTools(gctx)
				if err != nil {
					return fmt.Errorf("mcp %s: %w", sc.Name, err)
				}
				for _, spec := range specs {
					c.Register(NewMCPTool(mcpClient, spec))
				}
				slog.Info("Connected to MCP server",
					"name", sc.Name,
					"transport", "http",
					"url", sc.URL,
					"tools", len(specs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, close := range closers {
			_ = close()
		}
		return nil, nil, err
	}

	for toolName, persona := range cfg.Tools.Personas {
		c.SetPersona(toolName, persona)
	}

	slog.Info("Tool collection ready", "tools", c.Names())

	closer := func() error {
		var first error
		for _, close := range closers {
			if err := close(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return c, closer, nil
}
