package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/maestro/pkg/config"
	"github.com/kadirpekel/maestro/pkg/observability"
	"github.com/kadirpekel/maestro/pkg/protocol"
	"github.com/kadirpekel/maestro/pkg/sse"
)

// fakeRunner stands in for the orchestrator: it records requests and
// closes the printer with a canned result.
type fakeRunner struct {
	mu   sync.Mutex
	reqs []*protocol.RunRequest
	run  func(ctx context.Context, req *protocol.RunRequest, p *sse.Printer) error
}

func (f *fakeRunner) Run(ctx context.Context, req *protocol.RunRequest, p *sse.Printer) error {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.run != nil {
		return f.run(ctx, req, p)
	}
	p.Close(&protocol.ResultPayload{Status: protocol.StatusSuccess, Result: "done"})
	return nil
}

func (f *fakeRunner) requests() []*protocol.RunRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*protocol.RunRequest, len(f.reqs))
	copy(out, f.reqs)
	return out
}

func newTestServer(t *testing.T, runner Runner, obs *observability.Manager) *httptest.Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.SetDefaults()
	ts := httptest.NewServer(New(cfg, runner, obs).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postRun(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/agent/run", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// readEvents parses the data: frames off an SSE response body.
func readEvents(t *testing.T, body io.Reader) []protocol.Event {
	t.Helper()
	var events []protocol.Event
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev protocol.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
		events = append(events, ev)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestRunStreamsUntilFinalFrame(t *testing.T) {
	runner := &fakeRunner{run: func(_ context.Context, req *protocol.RunRequest, p *sse.Printer) error {
		_ = p.Send(protocol.Event{
			MessageType: protocol.TypeToolThought,
			ResultMap:   protocol.ToolThoughtPayload{ToolThought: "thinking"},
		})
		p.Close(&protocol.ResultPayload{Status: protocol.StatusSuccess, Result: "the answer"})
		return nil
	}}
	ts := newTestServer(t, runner, nil)

	resp := postRun(t, ts, `{"requestId":"req-7","sessionId":"s","query":"q","mode":"react"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	events := readEvents(t, resp.Body)
	require.Len(t, events, 2)
	assert.Equal(t, protocol.TypeToolThought, events[0].MessageType)
	assert.Equal(t, "req-7", events[0].TaskID)

	final := events[1]
	assert.Equal(t, protocol.TypeResult, final.MessageType)
	assert.True(t, final.IsFinal)
	payload, ok := final.ResultMap.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "success", payload["status"])
	assert.Equal(t, "the answer", payload["result"])
}

func TestRunFillsMissingRequestID(t *testing.T) {
	runner := &fakeRunner{}
	ts := newTestServer(t, runner, nil)

	resp := postRun(t, ts, `{"query":"q","mode":"plan"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, _ = io.Copy(io.Discard, resp.Body)

	reqs := runner.requests()
	require.Len(t, reqs, 1)
	_, err := uuid.Parse(reqs[0].RequestID)
	assert.NoError(t, err, "requestId should be filled with a uuid")
}

func TestRunRejectsMalformedBody(t *testing.T) {
	runner := &fakeRunner{}
	ts := newTestServer(t, runner, nil)

	resp := postRun(t, ts, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, runner.requests())
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	runner := &fakeRunner{}
	ts := newTestServer(t, runner, nil)

	for name, body := range map[string]string{
		"missing query": `{"mode":"react"}`,
		"missing mode":  `{"query":"q"}`,
		"unknown mode":  `{"query":"q","mode":"turbo"}`,
		"unknown style": `{"query":"q","mode":"react","outputStyle":"pdf"}`,
	} {
		resp := postRun(t, ts, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
	}
	assert.Empty(t, runner.requests())
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{}, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestMetricsRouteOnlyWhenEnabled(t *testing.T) {
	ts := newTestServer(t, &fakeRunner{}, nil)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	obsCfg := &config.ObservabilityConfig{Metrics: config.MetricsConfig{Enabled: true}}
	obsCfg.SetDefaults()
	ts2 := newTestServer(t, &fakeRunner{}, observability.NewManager(obsCfg))

	resp2, err := http.Get(ts2.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
