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
	"strings"

	"github.com/google/uuid"

	"github.com/kadirpekel/maestro/pkg/config"
	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/protocol"
)

// maxDigestDocs bounds how many documents the digest handed back to the
// model cites per query.
const maxDigestDocs = 5

type deepSearchArgs struct {
	Query          string `json:"query" jsonschema:"required,description=The question to research"`
	MaxLoop        int    `json:"maxLoop,omitempty" jsonschema:"description=How many search rounds to run, defaults to the service's own limit"`
	GenerateReport bool   `json:"generateReport,omitempty" jsonschema:"description=Also produce a written research report file"`
}

var deepSearchSchema = mustSchema[deepSearchArgs]()

type deepSearchRequest struct {
	RequestID      string `json:"requestId"`
	Query          string `json:"query"`
	MaxLoop        int    `json:"maxLoop,omitempty"`
	GenerateReport bool   `json:"generateReport,omitempty"`
	Stream         bool   `json:"stream"`
}

// DeepSearchTool runs multi-round web research through the search
// service, forwarding each phase (query extension, search, report) as
// deep_search events and closing with a task_summary.
type DeepSearchTool struct {
	backend *backend
	files   *FileClient
}

// NewDeepSearchTool creates the tool over the configured endpoint.
func NewDeepSearchTool(cfg *config.EndpointConfig, files *FileClient) *DeepSearchTool {
	return &DeepSearchTool{backend: newBackend("deep_search", cfg), files: files}
}

func (t *DeepSearchTool) Name() string { return "deep_search" }

func (t *DeepSearchTool) Description() string {
	return "Research a question on the web in multiple rounds, expanding the query " +
		"and ranking sources. Returns cited findings; can also write a report file."
}

func (t *DeepSearchTool) Parameters() map[string]any { return deepSearchSchema }

func (t *DeepSearchTool) Execute(ctx context.Context, run *maestrocontext.Context, args map[string]any) (ToolResult, error) {
	a, err := decodeArgs[deepSearchArgs](args)
	if err != nil {
		return Failf("invalid arguments: %v", err), nil
	}
	if a.Query == "" {
		return Failf("query is required"), nil
	}

	messageID := uuid.NewString()
	var last protocol.SearchResult
	var taskSummary string
	var inline []inlineFile
	var handles []protocol.FileHandle
	finalSent := false

	err = t.backend.stream(ctx, "/v1/tool/deepsearch", deepSearchRequest{
		RequestID:      run.RequestID(),
		Query:          a.Query,
		MaxLoop:        a.MaxLoop,
		GenerateReport: a.GenerateReport,
		Stream:         run.StreamMode(),
	}, func(fr frame) error {
		if fr.SearchResult != nil {
			last = *fr.SearchResult
		}
		if fr.IsFinal {
			taskSummary = fr.TaskSummary
			inline = fr.Files
			handles = fr.FileInfo
			finalSent = true
			return run.EmitDelta(messageID, protocol.TypeDeepSearch, protocol.DeepSearchPayload{
				MessageType:  subtypeOf(fr.MessageType),
				SearchResult: last,
			}, true)
		}
		if fr.SearchResult == nil {
			return nil
		}
		return run.EmitDelta(messageID, protocol.TypeDeepSearch, protocol.DeepSearchPayload{
			MessageType:  subtypeOf(fr.MessageType),
			SearchResult: last,
		}, false)
	})
	if err != nil {
		return ToolResult{}, err
	}

	if !finalSent {
		if err := run.EmitDelta(messageID, protocol.TypeDeepSearch, protocol.DeepSearchPayload{
			MessageType:  protocol.DeepSearchSearch,
			SearchResult: last,
		}, true); err != nil {
			return ToolResult{}, err
		}
	}

	uploaded, err := uploadAll(ctx, run, t.files, inline)
	if err != nil {
		return ToolResult{}, err
	}
	handles = append(handles, uploaded...)
	run.AddFiles(handles...)

	digest := searchDigest(a.Query, last, taskSummary)
	if err := run.Emit(protocol.TypeTaskSummary, protocol.TaskSummaryPayload{
		TaskSummary: firstNonEmpty(taskSummary, digest),
		FileList:    handles,
	}); err != nil {
		return ToolResult{}, err
	}

	return Success(digest, handles...), nil
}

// subtypeOf maps a frame's messageType onto the deep-search phases,
// defaulting unknown values to the search phase.
func subtypeOf(s string) protocol.DeepSearchSubtype {
	switch sub := protocol.DeepSearchSubtype(s); sub {
	case protocol.DeepSearchExtend, protocol.DeepSearchSearch, protocol.DeepSearchReport:
		return sub
	default:
		return protocol.DeepSearchSearch
	}
}

// searchDigest renders the findings for conversation memory: the queries
// that were run and the top cited documents of each.
func searchDigest(query string, result protocol.SearchResult, summary string) string {
	var sb strings.Builder
	if summary != "" {
		sb.WriteString(summary)
		sb.WriteString("\n\n")
	}

	if len(result.Query) == 0 {
		if sb.Len() == 0 {
			fmt.Fprintf(&sb, "no results found for %q", query)
		}
		return strings.TrimRight(sb.String(), "\n")
	}

	sb.WriteString("Sources:\n")
	for i, q := range result.Query {
		fmt.Fprintf(&sb, "%s:\n", q)
		if i >= len(result.Docs) {
			continue
		}
		docs := result.Docs[i]
		if len(docs) > maxDigestDocs {
			docs = docs[:maxDigestDocs]
		}
		for _, doc := range docs {
			fmt.Fprintf(&sb, "- %s (%s)\n", doc.Title, doc.Link)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
