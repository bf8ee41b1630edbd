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

// Package server is the HTTP ingress: POST /agent/run opens the SSE
// stream and runs the orchestrator on the request goroutine until the
// final frame, plus health and metrics endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/maestro/pkg/config"
	"github.com/kadirpekel/maestro/pkg/observability"
	"github.com/kadirpekel/maestro/pkg/protocol"
	"github.com/kadirpekel/maestro/pkg/sse"
)

// Runner executes one validated request against a printer and leaves
// the printer closed. The orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, req *protocol.RunRequest, printer *sse.Printer) error
}

// Server serves the agent-run API.
type Server struct {
	cfg    *config.Config
	runner Runner
	obs    *observability.Manager

	httpServer *http.Server
}

// New builds the server. obs may be nil when observability is disabled.
func New(cfg *config.Config, runner Runner, obs *observability.Manager) *Server {
	return &Server{cfg: cfg, runner: runner, obs: obs}
}

// Start listens until ctx is cancelled, then shuts down gracefully
// within the configured drain timeout.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),

		// SSE responses stay open up to the request deadline, so only
		// the header read gets a server-side timeout.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server", "timeout", s.cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Routes builds the router. Exposed for tests and embedding.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	if s.obs != nil {
		r.Use(observability.HTTPMiddleware(s.obs.Tracer(), s.obs.Metrics()))
	}

	r.Post("/agent/run", s.handleRun)
	r.Get("/health", s.handleHealth)
	if s.obs != nil && s.obs.MetricsEnabled() {
		r.Method(http.MethodGet, s.obs.MetricsEndpoint(), s.obs.MetricsHandler())
	}
	return r
}
