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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadirpekel/maestro/pkg/agent"
	"github.com/kadirpekel/maestro/pkg/config"
	"github.com/kadirpekel/maestro/pkg/config/provider"
	"github.com/kadirpekel/maestro/pkg/llm"
	"github.com/kadirpekel/maestro/pkg/observability"
	"github.com/kadirpekel/maestro/pkg/orchestrator"
	"github.com/kadirpekel/maestro/pkg/server"
	"github.com/kadirpekel/maestro/pkg/tools"
)

// ServeCmd starts the agent server.
type ServeCmd struct {
	// Zero-config options, used when no config file is given.
	Model    string `help:"Model name for the default profile."`
	BaseURL  string `name:"base-url" help:"OpenAI-compatible API base URL."`
	APIKey   string `name:"api-key" help:"API key (defaults to OPENAI_API_KEY)."`
	ToolsURL string `name:"tools-url" help:"Base URL of the tool egress service."`
	MCPURL   string `name:"mcp-url" help:"MCP server URL to discover tools from."`

	Port  int  `help:"Port to listen on."`
	Watch bool `help:"Watch the config file and restart on changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		again, err := c.serveOnce(ctx, cli)
		if err != nil || !again {
			return err
		}
		slog.Info("Restarting with reloaded configuration")
	}
}

// serveOnce builds the full stack from one config snapshot and serves
// until shutdown. A true restart return means the config file changed
// and the caller should build a fresh stack.
func (c *ServeCmd) serveOnce(ctx context.Context, cli *CLI) (restart bool, err error) {
	reload := make(chan struct{}, 1)
	cfg, loader, err := c.loadConfig(ctx, cli.Config, reload)
	if err != nil {
		return false, err
	}
	if loader != nil {
		defer loader.Close()
	}

	cleanup, err := initLogger(cli, &cfg.Logger)
	if err != nil {
		return false, err
	}
	defer cleanup()

	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if cli.Config == "" {
		slog.Info("Running in zero-config mode", "model", cfg.LLMProfile(config.DefaultProfile).Model)
	}

	obs := observability.NewManager(&cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return false, fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	collection, closeTools, err := tools.Build(ctx, cfg)
	if err != nil {
		return false, fmt.Errorf("failed to build tools: %w", err)
	}
	defer func() {
		if err := closeTools(); err != nil {
			slog.Warn("Tool shutdown failed", "error", err)
		}
	}()

	deps := agent.Deps{
		Models:  buildModels(cfg),
		Tools:   collection,
		Prompts: agent.ResolvePrompts(cfg.Prompts),
		Agent:   cfg.Agent,
	}
	srv := server.New(cfg, orchestrator.New(deps), obs)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.Watch && loader != nil {
		go func() {
			if err := loader.Watch(runCtx); err != nil && runCtx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
		go func() {
			select {
			case <-reload:
				cancel()
			case <-runCtx.Done():
			}
		}()
	}

	printStartupInfo(cfg, obs)

	if err := srv.Start(runCtx); err != nil {
		return false, err
	}

	// A clean stop with the signal context still alive means the watcher
	// requested a restart.
	return c.Watch && ctx.Err() == nil, nil
}

// loadConfig loads the config file, or builds one from zero-config
// flags when no file is given. File changes are signalled on reload.
func (c *ServeCmd) loadConfig(ctx context.Context, path string, reload chan<- struct{}) (*config.Config, *config.Loader, error) {
	if path == "" {
		cfg := config.ZeroConfig{
			Model:    c.Model,
			BaseURL:  c.BaseURL,
			APIKey:   c.APIKey,
			ToolsURL: c.ToolsURL,
			MCPURL:   c.MCPURL,
			Port:     c.Port,
		}.Build()
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("config validation failed: %w", err)
		}
		return cfg, nil, nil
	}

	p, err := provider.NewFileProvider(path)
	if err != nil {
		return nil, nil, err
	}
	loader := config.NewLoader(p, config.WithOnChange(func(*config.Config) {
		select {
		case reload <- struct{}{}:
		default:
		}
	}))
	cfg, err := loader.Load(ctx)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return cfg, loader, nil
}

// buildModels resolves the model each agent role runs on. The planning,
// executor, and summary profiles fall back to the default one, and
// roles sharing a profile share a client.
func buildModels(cfg *config.Config) agent.ModelSet {
	clients := make(map[*config.LLMConfig]agent.Model, 3)
	model := func(role string) agent.Model {
		p := cfg.LLMProfile(role)
		if m, ok := clients[p]; ok {
			return m
		}
		m := agent.Model{Provider: llm.NewClient(p), Counter: llm.NewCounter(p.Model)}
		clients[p] = m
		return m
	}
	return agent.ModelSet{
		Planning: model("planning"),
		Executor: model("executor"),
		Summary:  model("summary"),
	}
}

func printStartupInfo(cfg *config.Config, obs *observability.Manager) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	green := "\033[38;2;16;185;129m"
	reset := "\033[0m"
	fmt.Printf("\n%smaestro server ready!%s\n", green, reset)
	fmt.Printf("   Agent runs:  http://%s/agent/run\n", addr)
	fmt.Printf("   Health:      http://%s/health\n", addr)
	if obs.MetricsEnabled() {
		fmt.Printf("   Metrics:     http://%s%s\n", addr, obs.MetricsEndpoint())
	}
	if cfg.Observability.Tracing.Enabled {
		fmt.Printf("   Tracing:     %s (%s)\n", cfg.Observability.Tracing.Exporter, cfg.Observability.Tracing.Endpoint)
	}
	fmt.Println()
}
