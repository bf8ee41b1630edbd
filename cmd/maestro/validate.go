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
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/maestro/pkg/config"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	Config string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	Format string `short:"f" help:"Output format: compact, json." default:"compact" enum:"compact,json"`

	// PrintConfig prints the configuration with defaults applied and
	// env vars resolved.
	PrintConfig bool `short:"p" name:"print-config" help:"Print the expanded configuration."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	cfg, loader, err := config.LoadFile(context.Background(), c.Config)
	if err != nil {
		printValidation(c.Format, c.Config, err)
		return fmt.Errorf("config validation failed")
	}
	defer loader.Close()

	if c.PrintConfig {
		return printExpandedConfig(c.Config, cfg)
	}

	printValidation(c.Format, c.Config, nil)
	return nil
}

type validationOutput struct {
	Valid bool   `json:"valid"`
	File  string `json:"file"`
	Error string `json:"error,omitempty"`
}

func printValidation(format, file string, err error) {
	if format == "json" {
		out := validationOutput{Valid: err == nil, File: file}
		if err != nil {
			out.Error = err.Error()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", file, err.Error())
		return
	}
	fmt.Fprintf(os.Stdout, "%s: valid\n", file)
}

func printExpandedConfig(file string, cfg *config.Config) error {
	fmt.Fprintf(os.Stdout, "# Expanded configuration from: %s\n\n", file)

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
