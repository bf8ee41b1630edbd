// Package maestro provides a multi-agent orchestration service.
//
// Maestro runs user requests through a small crew of ReAct agents. A
// planning agent splits the task into stages and delegates each one to
// an executor, a summary agent folds the stage results into the final
// answer, and every intermediate step streams to the client over SSE.
//
// # Quick Start
//
// Install maestro:
//
//	go install github.com/kadirpekel/maestro/cmd/maestro@latest
//
// Create a configuration:
//
//	llm:
//	  default:
//	    model: "gpt-4o"
//	    api_key: "${OPENAI_API_KEY}"
//
//	server:
//	  port: 8080
//
// Start the server:
//
//	maestro serve --config config.yaml
//
// Or skip the file entirely:
//
//	maestro serve --model gpt-4o
//
// Then post a run request:
//
//	curl -N localhost:8080/agent/run -d '{"requestId":"r1","query":"...","mode":"plan"}'
//
// # Using as Go Library
//
// Import the convenience package:
//
//	import "github.com/kadirpekel/maestro/pkg"
//
// Or import specific packages:
//
//	import (
//	    "github.com/kadirpekel/maestro/pkg/agent"
//	    "github.com/kadirpekel/maestro/pkg/orchestrator"
//	    "github.com/kadirpekel/maestro/pkg/config"
//	)
//
// # Key Features
//
//   - Plan and react modes per request
//   - Streamed progress over SSE: thoughts, plan updates, tool activity
//   - Parallel tool execution with per-call timeouts
//   - OpenAI-compatible LLM client with per-role model profiles
//   - MCP tool discovery alongside the built-in tool suite
//   - Prometheus metrics and OTLP tracing
//
// # Architecture
//
// One request flows through one pipeline:
//
//	Client → HTTP ingress → Orchestrator → Agents (planning/executor/summary) → SSE stream
//
// Agents share a request-scoped context that carries the SSE printer,
// collected artifacts, and cancellation state.
//
// # License
//
// Apache-2.0 - See LICENSE for details.
package maestro
