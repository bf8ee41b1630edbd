// Package maestro re-exports the types and constructors most library
// consumers need to run the orchestrator without the HTTP ingress.
//
// # Quick Start
//
//	import maestro "github.com/kadirpekel/maestro/pkg"
//
//	// Load configuration
//	cfg, loader, err := maestro.LoadConfigFile(ctx, "config.yaml")
//
//	// Build the agent dependencies and run a request
//	orch := maestro.NewOrchestrator(deps)
//	err = orch.Run(ctx, &maestro.RunRequest{...}, printer)
package maestro

import (
	"github.com/kadirpekel/maestro/pkg/agent"
	"github.com/kadirpekel/maestro/pkg/config"
	"github.com/kadirpekel/maestro/pkg/orchestrator"
	"github.com/kadirpekel/maestro/pkg/protocol"
	"github.com/kadirpekel/maestro/pkg/sse"
)

// Re-export commonly used types
type (
	// Request and stream types
	RunRequest = protocol.RunRequest
	Event      = protocol.Event
	Printer    = sse.Printer

	// Agent dependency bundle
	Deps = agent.Deps

	// Config is the root maestro configuration
	Config = config.Config
)

// Re-export commonly used functions
var (
	// Orchestration
	NewOrchestrator = orchestrator.New
	NewPrinter      = sse.NewPrinter

	// Config functions
	LoadConfigFile = config.LoadFile
	ResolvePrompts = agent.ResolvePrompts
)
