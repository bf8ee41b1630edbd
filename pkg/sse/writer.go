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

// Package sse implements both sides of the Server-Sent Events plumbing:
// the Printer that serializes a request's outbound events onto one stream,
// and the Decoder that consumes SSE responses from upstream services.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kadirpekel/maestro/pkg/protocol"
)

// EventWriter is the transport a Printer writes frames to.
type EventWriter interface {
	WriteEvent(ev protocol.Event) error
}

// StreamWriter writes events as "data: <json>" frames over an
// http.ResponseWriter and flushes after each one.
type StreamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewStreamWriter prepares w for event streaming and returns a writer.
// It fails when the ResponseWriter cannot flush, which would buffer the
// stream indefinitely.
func NewStreamWriter(w http.ResponseWriter) (*StreamWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &StreamWriter{w: w, flusher: flusher}, nil
}

func (s *StreamWriter) WriteEvent(ev protocol.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
