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

type reportArgs struct {
	Task      string   `json:"task,omitempty" jsonschema:"description=What the report should cover"`
	FileNames []string `json:"fileNames,omitempty" jsonschema:"description=Previously produced files to fold into the report"`
	Format    string   `json:"format,omitempty" jsonschema:"enum=html,enum=markdown,enum=ppt,description=Report format, defaults to the request's output style"`
}

var reportSchema = mustSchema[reportArgs]()

type reportRequest struct {
	RequestID string   `json:"requestId"`
	Task      string   `json:"task,omitempty"`
	FileNames []string `json:"fileNames,omitempty"`
	Format    string   `json:"format"`
	Stream    bool     `json:"stream"`
}

// ReportTool renders a final deliverable (html, markdown or ppt) from
// the run's files through the report service, forwarding its progress as
// format-matching events.
type ReportTool struct {
	backend *backend
	files   *FileClient
}

// NewReportTool creates the tool over the configured endpoint.
func NewReportTool(cfg *config.EndpointConfig, files *FileClient) *ReportTool {
	return &ReportTool{backend: newBackend("report", cfg), files: files}
}

func (t *ReportTool) Name() string { return "report" }

func (t *ReportTool) Description() string {
	return "Assemble the task's findings and files into a polished deliverable: " +
		"an html page, a markdown document, or a ppt deck."
}

func (t *ReportTool) Parameters() map[string]any { return reportSchema }

func (t *ReportTool) Execute(ctx context.Context, run *maestrocontext.Context, args map[string]any) (ToolResult, error) {
	a, err := decodeArgs[reportArgs](args)
	if err != nil {
		return Failf("invalid arguments: %v", err), nil
	}

	format := a.Format
	if format == "" {
		format = formatForStyle(run.OutputStyle())
	}
	eventType, ok := reportEventType(format)
	if !ok {
		return Failf("unknown format %q (valid: html, markdown, ppt)", a.Format), nil
	}

	messageID := uuid.NewString()
	var body strings.Builder
	var inline []inlineFile
	var handles []protocol.FileHandle

	err = t.backend.stream(ctx, "/v1/tool/report", reportRequest{
		RequestID: run.RequestID(),
		Task:      a.Task,
		FileNames: a.FileNames,
		Format:    format,
		Stream:    run.StreamMode(),
	}, func(fr frame) error {
		if fr.IsFinal {
			if fr.Data != "" {
				body.Reset()
				body.WriteString(fr.Data)
			}
			inline = fr.Files
			handles = fr.FileInfo
			return nil
		}
		body.WriteString(fr.Data)
		if run.StreamMode() && fr.Data != "" {
			return run.EmitDelta(messageID, eventType, protocol.ArtifactPayload{Data: fr.Data}, false)
		}
		return nil
	})
	if err != nil {
		return ToolResult{}, err
	}

	uploaded, err := uploadAll(ctx, run, t.files, inline)
	if err != nil {
		return ToolResult{}, err
	}
	handles = append(handles, uploaded...)
	run.AddFiles(handles...)

	if err := run.EmitDelta(messageID, eventType, protocol.ArtifactPayload{
		Data:     body.String(),
		FileInfo: handles,
	}, true); err != nil {
		return ToolResult{}, err
	}

	names := make([]string, len(handles))
	for i, h := range handles {
		names[i] = h.FileName
	}
	content := fmt.Sprintf("%s report generated", format)
	if len(names) > 0 {
		content += ": " + strings.Join(names, ", ")
	}
	return Success(content, handles...), nil
}

// formatForStyle picks the report format matching the request's output
// style. Decks are only produced when asked for explicitly.
func formatForStyle(style protocol.OutputStyle) string {
	if style == protocol.StyleDocs {
		return "markdown"
	}
	return "html"
}

func reportEventType(format string) (protocol.MessageType, bool) {
	switch format {
	case "html":
		return protocol.TypeHTML, true
	case "markdown":
		return protocol.TypeMarkdown, true
	case "ppt":
		return protocol.TypePPT, true
	default:
		return "", false
	}
}
