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

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/kadirpekel/maestro/pkg/protocol"
	"github.com/kadirpekel/maestro/pkg/sse"
)

const maxRequestBody = 1 << 20

// handleRun validates the request, opens the SSE stream and drives the
// run to its final frame. Everything after the first frame is reported
// on the stream, not the HTTP status.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req protocol.RunRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writer, err := sse.NewStreamWriter(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.RequestDeadline)
	defer cancel()

	printer := sse.NewPrinter(ctx, req.RequestID, writer,
		sse.WithHeartbeatInterval(s.cfg.Stream.HeartbeatInterval),
		sse.WithQueueSize(s.cfg.Stream.QueueSize),
		sse.WithEnqueueTimeout(s.cfg.Stream.EnqueueTimeout),
	)

	slog.Info("Accepted run request",
		"request_id", req.RequestID,
		"session_id", req.SessionID,
		"mode", string(req.Mode),
	)

	// The runner always closes the printer and logs its own outcome; by
	// the time it returns, the stream is complete.
	_ = s.runner.Run(ctx, &req, printer)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
