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

// Package protocol defines the wire vocabulary of the maestro SSE stream:
// the event envelope, the closed set of message types, and the typed
// payloads each type carries in its resultMap.
package protocol

// MessageType identifies the payload shape of an Event. The set is closed;
// clients switch on it to route rendering.
type MessageType string

const (
	TypePlan        MessageType = "plan"
	TypePlanThought MessageType = "plan_thought"
	TypeTask        MessageType = "task"
	TypeToolThought MessageType = "tool_thought"
	TypeToolResult  MessageType = "tool_result"
	TypeBrowser     MessageType = "browser"
	TypeCode        MessageType = "code"
	TypeHTML        MessageType = "html"
	TypeMarkdown    MessageType = "markdown"
	TypePPT         MessageType = "ppt"
	TypeFile        MessageType = "file"
	TypeKnowledge   MessageType = "knowledge"
	TypeDeepSearch  MessageType = "deep_search"
	TypeTaskSummary MessageType = "task_summary"
	TypeResult      MessageType = "result"
	TypeHeartbeat   MessageType = "heartbeat"
)

var knownTypes = map[MessageType]struct{}{
	TypePlan: {}, TypePlanThought: {}, TypeTask: {}, TypeToolThought: {},
	TypeToolResult: {}, TypeBrowser: {}, TypeCode: {}, TypeHTML: {},
	TypeMarkdown: {}, TypePPT: {}, TypeFile: {}, TypeKnowledge: {},
	TypeDeepSearch: {}, TypeTaskSummary: {}, TypeResult: {}, TypeHeartbeat: {},
}

// Valid reports whether t belongs to the closed message-type set.
func (t MessageType) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Event is one SSE frame. ResultMap holds the payload struct matching
// MessageType; isFinal=true means no further events for this messageId.
type Event struct {
	MessageID       string      `json:"messageId"`
	MessageType     MessageType `json:"messageType"`
	DigitalEmployee string      `json:"digitalEmployee,omitempty"`
	TaskID          string      `json:"taskId,omitempty"`
	ResultMap       any         `json:"resultMap"`
	IsFinal         bool        `json:"isFinal"`
}

// FileHandle references an uploaded artifact in the file service.
type FileHandle struct {
	FileName    string `json:"fileName"`
	FileSize    int64  `json:"fileSize"`
	DomainURL   string `json:"domainUrl"`
	OSSURL      string `json:"ossUrl"`
	Description string `json:"description,omitempty"`
}

// ResultStatus closes out a request.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
	StatusTimeout ResultStatus = "timeout"
)

// PlanPayload mirrors the Plan's parallel lists.
type PlanPayload struct {
	Stages       []string `json:"stages"`
	Steps        []string `json:"steps"`
	StepStatus   []string `json:"stepStatus"`
	CurrentIndex int      `json:"currentIndex"`
}

type PlanThoughtPayload struct {
	PlanThought string `json:"planThought"`
}

type TaskPayload struct {
	Task   string `json:"task"`
	TaskID string `json:"taskId"`
}

type ToolThoughtPayload struct {
	ToolThought string `json:"toolThought"`
}

type ToolResultPayload struct {
	ToolName   string `json:"toolName"`
	Command    string `json:"command"`
	ToolResult string `json:"toolResult"`
}

// ArtifactPayload carries streamed artifact content for code, html,
// markdown and ppt events. FileInfo arrives on the final chunk.
type ArtifactPayload struct {
	Data     string       `json:"data"`
	FileInfo []FileHandle `json:"fileInfo,omitempty"`
}

// DeepSearchSubtype distinguishes the phases of a deep-search run.
type DeepSearchSubtype string

const (
	DeepSearchExtend DeepSearchSubtype = "extend"
	DeepSearchSearch DeepSearchSubtype = "search"
	DeepSearchReport DeepSearchSubtype = "report"
)

// Doc is one ranked document in a deep-search result.
type Doc struct {
	Title   string `json:"title,omitempty"`
	Link    string `json:"link,omitempty"`
	Content string `json:"content,omitempty"`
}

type SearchResult struct {
	Query []string `json:"query"`
	Docs  [][]Doc  `json:"docs"`
}

type DeepSearchPayload struct {
	MessageType  DeepSearchSubtype `json:"messageType"`
	SearchResult SearchResult      `json:"searchResult"`
}

type FilePayload struct {
	FileInfo []FileHandle `json:"fileInfo"`
	Command  string       `json:"command"`
}

type TaskSummaryPayload struct {
	TaskSummary string       `json:"taskSummary"`
	FileList    []FileHandle `json:"fileList"`
}

// ResultPayload is the request's final frame.
type ResultPayload struct {
	Status   ResultStatus `json:"status"`
	Result   string       `json:"result"`
	FileList []FileHandle `json:"fileList,omitempty"`
}

// HeartbeatPayload is intentionally empty.
type HeartbeatPayload struct{}
