package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/maestro/pkg/config"
	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/protocol"
	"github.com/kadirpekel/maestro/pkg/sse"
)

type captureWriter struct {
	mu     sync.Mutex
	events []protocol.Event
}

func (w *captureWriter) WriteEvent(ev protocol.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, ev)
	return nil
}

func (w *captureWriter) snapshot() []protocol.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]protocol.Event, len(w.events))
	copy(out, w.events)
	return out
}

func (w *captureWriter) ofType(t protocol.MessageType) []protocol.Event {
	var out []protocol.Event
	for _, ev := range w.snapshot() {
		if ev.MessageType == t {
			out = append(out, ev)
		}
	}
	return out
}

func newRunContext(t *testing.T, stream bool, style protocol.OutputStyle) (*maestrocontext.Context, *captureWriter, *sse.Printer) {
	t.Helper()
	w := &captureWriter{}
	p := sse.NewPrinter(context.Background(), "req-1", w)
	run := maestrocontext.New(&protocol.RunRequest{
		RequestID:   "req-1",
		SessionID:   "sess-1",
		Query:       "do the task",
		Mode:        protocol.ModeReact,
		OutputStyle: style,
		Stream:      stream,
	}, p)
	return run, w, p
}

func testEndpoint(baseURL string) *config.EndpointConfig {
	return &config.EndpointConfig{
		BaseURL:        baseURL,
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    2 * time.Second,
	}
}

// writeFrames renders frames as SSE data lines onto the response.
func writeFrames(w http.ResponseWriter, frames ...frame) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, fr := range frames {
		data, _ := json.Marshal(fr)
		_, _ = w.Write(append(append([]byte("data: "), data...), '\n', '\n'))
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// sseServer streams the given frames on every request.
func sseServer(t *testing.T, frames ...frame) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrames(w, frames...)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// fileServer fakes the file service: uploads answer with a handle built
// from the request, gets return the stored name as content.
func fileServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/file_tool/upload_file_data":
			var req uploadRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			handle := protocol.FileHandle{
				FileName:  req.FileName,
				FileSize:  int64(len(req.Data)),
				DomainURL: "https://files.example.com/" + req.FileName,
				OSSURL:    "oss://bucket/" + req.RequestID + "/" + req.FileName,
			}
			require.NoError(t, json.NewEncoder(w).Encode(handle))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}
