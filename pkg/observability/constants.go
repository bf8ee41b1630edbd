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

// Package observability provides OpenTelemetry tracing and Prometheus
// metrics for the run pipeline.
//
// Tracing follows the GenAI semantic conventions so spans line up with
// the rest of the ecosystem; metrics go through the OTel Prometheus
// bridge and are served from the default registry.
//
// Configure it in maestro.yaml:
//
//	observability:
//	  tracing:
//	    enabled: true
//	    exporter: otlp
//	    endpoint: localhost:4317
//	    sampling_rate: 1.0
//	  metrics:
//	    enabled: true
//	    endpoint: /metrics
package observability

// GenAI semantic conventions (OpenTelemetry GenAI SIG).
const (
	AttrGenAISystem               = "gen_ai.system"
	AttrGenAIOperationName        = "gen_ai.operation.name"
	AttrGenAIRequestModel         = "gen_ai.request.model"
	AttrGenAIRequestTemperature   = "gen_ai.request.temperature"
	AttrGenAIRequestMaxTokens     = "gen_ai.request.max_tokens"
	AttrGenAIResponseFinishReason = "gen_ai.response.finish_reason"
	AttrGenAIUsageInputTokens     = "gen_ai.usage.input_tokens"
	AttrGenAIUsageOutputTokens    = "gen_ai.usage.output_tokens"
	AttrGenAIToolName             = "gen_ai.tool.name"
	AttrGenAIToolCallID           = "gen_ai.tool.call.id"
)

// Maestro-specific attributes.
const (
	AttrRequestID = "maestro.request_id"
	AttrSessionID = "maestro.session_id"
	AttrAgentName = "maestro.agent.name"
	AttrAgentMode = "maestro.agent.mode"
	AttrPlanStage = "maestro.plan.stage"
)

// HTTP and error attributes.
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPPath       = "http.path"
	AttrHTTPStatusCode = "http.status_code"
	AttrErrorType      = "error.type"
	AttrErrorMessage   = "error.message"
)

// Span names.
const (
	SpanAgentRun      = "agent.run"
	SpanLLMCall       = "llm.call"
	SpanToolExecution = "tool.execute"
	SpanHTTPRequest   = "http.request"
)

// GenAI operation names.
const (
	OpChat     = "chat"
	OpToolCall = "execute_tool"
)

// DefaultServiceName identifies this service in traces when the config
// does not override it.
const DefaultServiceName = "maestro"
