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

// maxToolContentBytes bounds how much streamed output a tool hands back
// to the model as its result content.
const maxToolContentBytes = 4096

type codeArgs struct {
	Task      string   `json:"task" jsonschema:"required,description=What the code should accomplish, stated as a concrete task"`
	FileNames []string `json:"fileNames,omitempty" jsonschema:"description=Previously produced files the code may read"`
}

var codeInterpreterSchema = mustSchema[codeArgs]()

type codeRequest struct {
	RequestID string   `json:"requestId"`
	Task      string   `json:"task"`
	FileNames []string `json:"fileNames,omitempty"`
	Stream    bool     `json:"stream"`
}

// CodeInterpreterTool delegates a task to the code execution service and
// forwards its progress as code events. Artifacts the execution produces
// are uploaded to the file service and attached to the run.
type CodeInterpreterTool struct {
	backend *backend
	files   *FileClient
}

// NewCodeInterpreterTool creates the tool over the configured endpoint.
// files may be nil; inline artifacts are then dropped with a warning.
func NewCodeInterpreterTool(cfg *config.EndpointConfig, files *FileClient) *CodeInterpreterTool {
	return &CodeInterpreterTool{backend: newBackend("code_interpreter", cfg), files: files}
}

func (t *CodeInterpreterTool) Name() string { return "code_interpreter" }

func (t *CodeInterpreterTool) Description() string {
	return "Write and run code to compute, transform data, or produce files. " +
		"Give it a concrete task; it returns the execution output and any files it created."
}

func (t *CodeInterpreterTool) Parameters() map[string]any { return codeInterpreterSchema }

func (t *CodeInterpreterTool) Execute(ctx context.Context, run *maestrocontext.Context, args map[string]any) (ToolResult, error) {
	a, err := decodeArgs[codeArgs](args)
	if err != nil {
		return Failf("invalid arguments: %v", err), nil
	}
	if a.Task == "" {
		return Failf("task is required"), nil
	}

	messageID := uuid.NewString()
	var output strings.Builder
	var inline []inlineFile
	var handles []protocol.FileHandle

	err = t.backend.stream(ctx, "/v1/tool/code_interpreter", codeRequest{
		RequestID: run.RequestID(),
		Task:      a.Task,
		FileNames: a.FileNames,
		Stream:    run.StreamMode(),
	}, func(fr frame) error {
		if fr.IsFinal {
			// The final frame's data is authoritative when present.
			if fr.Data != "" {
				output.Reset()
				output.WriteString(fr.Data)
			}
			inline = fr.Files
			handles = fr.FileInfo
			return nil
		}
		output.WriteString(fr.Data)
		if run.StreamMode() && fr.Data != "" {
			return run.EmitDelta(messageID, protocol.TypeCode, protocol.ArtifactPayload{Data: fr.Data}, false)
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

	if err := run.EmitDelta(messageID, protocol.TypeCode, protocol.ArtifactPayload{
		Data:     output.String(),
		FileInfo: handles,
	}, true); err != nil {
		return ToolResult{}, err
	}

	content := clip(output.String(), maxToolContentBytes)
	if content == "" {
		content = fmt.Sprintf("code run finished, produced %d file(s)", len(handles))
	}
	return Success(content, handles...), nil
}
