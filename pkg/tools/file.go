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
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/kadirpekel/maestro/pkg/config"
	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/protocol"
)

// maxInlineFileBytes bounds how much fetched file content is handed back
// to the model.
const maxInlineFileBytes = 8192

// FileClient talks to the artifact file service. Files are scoped by the
// request id they were uploaded under.
type FileClient struct {
	b *backend
}

// NewFileClient creates a client for the configured file service.
func NewFileClient(cfg *config.EndpointConfig) *FileClient {
	return &FileClient{b: newBackend("file", cfg)}
}

type uploadRequest struct {
	RequestID   string `json:"requestId"`
	FileName    string `json:"fileName"`
	Description string `json:"description,omitempty"`
	Data        string `json:"data"`
}

// Upload stores one artifact and returns its handle. Fields the service
// leaves blank are filled from what we sent.
func (c *FileClient) Upload(ctx context.Context, requestID, fileName, description string, data []byte) (protocol.FileHandle, error) {
	var handle protocol.FileHandle
	err := c.b.postJSON(ctx, "/v1/file_tool/upload_file_data", uploadRequest{
		RequestID:   requestID,
		FileName:    fileName,
		Description: description,
		Data:        base64.StdEncoding.EncodeToString(data),
	}, &handle)
	if err != nil {
		return protocol.FileHandle{}, err
	}

	if handle.FileName == "" {
		handle.FileName = fileName
	}
	if handle.FileSize == 0 {
		handle.FileSize = int64(len(data))
	}
	if handle.Description == "" {
		handle.Description = description
	}
	return handle, nil
}

// Get fetches an artifact's raw bytes by name within a request's scope.
func (c *FileClient) Get(ctx context.Context, requestID, fileName string) ([]byte, error) {
	path := "/v1/file_tool/get_file/" + url.PathEscape(fileName) +
		"?requestId=" + url.QueryEscape(requestID)
	return c.b.getRaw(ctx, path)
}

type fileArgs struct {
	Command     string `json:"command" jsonschema:"required,enum=upload,enum=get,enum=list,description=upload stores content as a named file; get fetches a stored file; list shows the files produced so far"`
	FileName    string `json:"fileName,omitempty" jsonschema:"description=Name of the file to upload or get"`
	Content     string `json:"content,omitempty" jsonschema:"description=Text content to store (upload only)"`
	Description string `json:"description,omitempty" jsonschema:"description=One line describing the file (upload only)"`
}

var fileToolSchema = mustSchema[fileArgs]()

// FileTool stores, fetches and lists the artifacts of a run. Unlike the
// other built-ins it never streams; an upload emits a single file event.
type FileTool struct {
	files *FileClient
}

// NewFileTool creates the file tool over the given client.
func NewFileTool(files *FileClient) *FileTool {
	return &FileTool{files: files}
}

func (t *FileTool) Name() string { return "file" }

func (t *FileTool) Description() string {
	return "Store, fetch and list the files produced during this task. " +
		"Uploaded files become part of the task's deliverables."
}

func (t *FileTool) Parameters() map[string]any { return fileToolSchema }

func (t *FileTool) Execute(ctx context.Context, run *maestrocontext.Context, args map[string]any) (ToolResult, error) {
	a, err := decodeArgs[fileArgs](args)
	if err != nil {
		return Failf("invalid arguments: %v", err), nil
	}

	switch a.Command {
	case "upload":
		return t.upload(ctx, run, a)
	case "get":
		return t.get(ctx, run, a)
	case "list":
		return t.list(run), nil
	default:
		return Failf("unknown command %q", a.Command), nil
	}
}

func (t *FileTool) upload(ctx context.Context, run *maestrocontext.Context, a fileArgs) (ToolResult, error) {
	if a.FileName == "" {
		return Failf("fileName is required for upload"), nil
	}
	if a.Content == "" {
		return Failf("content is required for upload"), nil
	}

	handle, err := t.files.Upload(ctx, run.RequestID(), a.FileName, a.Description, []byte(a.Content))
	if err != nil {
		return ToolResult{}, err
	}
	run.AddFiles(handle)

	if err := run.Emit(protocol.TypeFile, protocol.FilePayload{
		FileInfo: []protocol.FileHandle{handle},
		Command:  "upload",
	}); err != nil {
		return ToolResult{}, err
	}

	return Success(fmt.Sprintf("uploaded %s (%d bytes)", handle.FileName, handle.FileSize), handle), nil
}

func (t *FileTool) get(ctx context.Context, run *maestrocontext.Context, a fileArgs) (ToolResult, error) {
	if a.FileName == "" {
		return Failf("fileName is required for get"), nil
	}

	data, err := t.files.Get(ctx, run.RequestID(), a.FileName)
	if err != nil {
		return ToolResult{}, err
	}
	return Success(clip(string(data), maxInlineFileBytes)), nil
}

func (t *FileTool) list(run *maestrocontext.Context) ToolResult {
	files := run.Files()
	if len(files) == 0 {
		return Success("no files produced yet")
	}

	var sb strings.Builder
	for _, f := range files {
		fmt.Fprintf(&sb, "%s (%d bytes)", f.FileName, f.FileSize)
		if f.Description != "" {
			fmt.Fprintf(&sb, " - %s", f.Description)
		}
		sb.WriteString("\n")
	}
	return Success(strings.TrimRight(sb.String(), "\n"))
}
