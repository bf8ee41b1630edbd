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
	"fmt"
	"os"

	"github.com/kadirpekel/maestro/pkg/config"
	"github.com/kadirpekel/maestro/pkg/logger"
)

// initLogger installs the process logger. CLI flags win over the config
// file's logger section; both fall back to info/simple/stderr. The
// returned cleanup closes the log file, if one was opened.
func initLogger(cli *CLI, cfg *config.LoggerConfig) (func(), error) {
	level := cli.LogLevel
	file := cli.LogFile
	format := cli.LogFormat
	if cfg != nil {
		if level == "" {
			level = cfg.Level
		}
		if file == "" {
			file = cfg.File
		}
		if format == "" {
			format = cfg.Format
		}
	}

	parsed, err := logger.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	cleanup := func() {}
	if file != "" {
		f, err := logger.OpenLogFile(file)
		if err != nil {
			return nil, err
		}
		output = f
		cleanup = func() { f.Close() }
	}

	logger.Init(parsed, output, format)
	return cleanup, nil
}
