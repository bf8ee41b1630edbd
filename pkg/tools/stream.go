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
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kadirpekel/maestro/pkg/config"
	maestrocontext "github.com/kadirpekel/maestro/pkg/context"
	"github.com/kadirpekel/maestro/pkg/errdefs"
	"github.com/kadirpekel/maestro/pkg/httpclient"
	"github.com/kadirpekel/maestro/pkg/protocol"
	"github.com/kadirpekel/maestro/pkg/sse"
)

// backend is one remote tool service: a base URL plus the HTTP behaviors
// shared by every call against it. Retries happen before the first
// response byte; a started stream is never replayed.
type backend struct {
	name        string
	base        string
	readTimeout time.Duration
	http        *httpclient.Client
}

func newBackend(name string, cfg *config.EndpointConfig) *backend {
	return &backend{
		name:        name,
		base:        strings.TrimRight(cfg.BaseURL, "/"),
		readTimeout: cfg.ReadTimeout,
		http: httpclient.New(
			// No whole-request timeout: streams run until the service
			// closes them or the idle watchdog fires. Connect and
			// first-header waits are bounded separately.
			httpclient.WithHTTPClient(&http.Client{
				Transport: &http.Transport{
					DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
					ResponseHeaderTimeout: cfg.ConnectTimeout,
				},
			}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
		),
	}
}

func (b *backend) op() string {
	return "tool." + b.name
}

// frame is the envelope tool services stream back. Data accumulates
// across non-final frames; a final frame may restate the full data and
// carries the produced artifacts, either as ready handles (FileInfo) or
// as inline content for the caller to upload (Files).
type frame struct {
	MessageType  string                 `json:"messageType"`
	Data         string                 `json:"data,omitempty"`
	IsFinal      bool                   `json:"isFinal,omitempty"`
	FileInfo     []protocol.FileHandle  `json:"fileInfo,omitempty"`
	Files        []inlineFile           `json:"files,omitempty"`
	SearchResult *protocol.SearchResult `json:"searchResult,omitempty"`
	TaskSummary  string                 `json:"taskSummary,omitempty"`
}

// inlineFile is an artifact returned by value, not yet uploaded to the
// file service. Data is base64; services that send plain text are
// tolerated.
type inlineFile struct {
	FileName    string `json:"fileName"`
	Data        string `json:"data"`
	Description string `json:"description,omitempty"`
}

func (f inlineFile) bytes() []byte {
	if decoded, err := base64.StdEncoding.DecodeString(f.Data); err == nil {
		return decoded
	}
	return []byte(f.Data)
}

// stream POSTs body to path and hands every decoded frame to fn, in
// order, until the service closes the stream. A gap longer than the
// endpoint's read timeout between frames aborts the call.
func (b *backend) stream(ctx context.Context, path string, body any, fn func(frame) error) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &errdefs.ParseError{Op: b.op(), Detail: "request body", Err: err}
	}

	// The watchdog cancels this child context, which aborts the body
	// read mid-stream.
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, b.base+path, bytes.NewReader(payload))
	if err != nil {
		return &errdefs.TransportError{Op: b.op(), Err: err}
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := b.http.Do(req)
	if resp != nil && resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &errdefs.TransportError{
			Op:         b.op(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", bytes.TrimSpace(detail)),
		}
	}
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctx.Err() != nil {
			return errdefs.FromContext(ctx)
		}
		return &errdefs.TransportError{Op: b.op(), Err: err}
	}
	defer resp.Body.Close()

	var idle atomic.Bool
	watchdog := time.AfterFunc(b.readTimeout, func() {
		idle.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	decoder := sse.NewDecoder(resp.Body)
	for {
		data, err := decoder.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return errdefs.FromContext(ctx)
			}
			if idle.Load() {
				return &errdefs.TransportError{
					Op:  b.op(),
					Err: fmt.Errorf("no frame received for %v", b.readTimeout),
				}
			}
			return &errdefs.TransportError{Op: b.op(), Err: err}
		}
		watchdog.Reset(b.readTimeout)

		var fr frame
		if err := json.Unmarshal([]byte(data), &fr); err != nil {
			return &errdefs.ParseError{Op: b.op(), Detail: "stream frame", Err: err}
		}
		if err := fn(fr); err != nil {
			return err
		}
	}
}

// postJSON sends one blocking JSON request and decodes the response into
// out when it is non-nil.
func (b *backend) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &errdefs.ParseError{Op: b.op(), Detail: "request body", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+path, bytes.NewReader(payload))
	if err != nil {
		return &errdefs.TransportError{Op: b.op(), Err: err}
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.Header.Set("Content-Type", "application/json")

	return b.finish(ctx, req, out)
}

// getRaw fetches path and returns the raw body.
func (b *backend) getRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+path, nil)
	if err != nil {
		return nil, &errdefs.TransportError{Op: b.op(), Err: err}
	}

	resp, err := b.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctx.Err() != nil {
			return nil, errdefs.FromContext(ctx)
		}
		return nil, &errdefs.TransportError{Op: b.op(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errdefs.TransportError{Op: b.op(), StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &errdefs.TransportError{
			Op:         b.op(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", bytes.TrimSpace(data)),
		}
	}
	return data, nil
}

func (b *backend) finish(ctx context.Context, req *http.Request, out any) error {
	resp, err := b.http.Do(req)
	if resp != nil && resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &errdefs.TransportError{
			Op:         b.op(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", bytes.TrimSpace(detail)),
		}
	}
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctx.Err() != nil {
			return errdefs.FromContext(ctx)
		}
		return &errdefs.TransportError{Op: b.op(), Err: err}
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errdefs.TransportError{Op: b.op(), Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &errdefs.ParseError{Op: b.op(), Detail: "response body", Err: err}
	}
	return nil
}

// uploadAll pushes inline artifacts to the file service and registers
// the resulting handles on the run. With no file service configured the
// artifacts are dropped with a warning rather than failing the tool.
func uploadAll(ctx context.Context, run *maestrocontext.Context, files *FileClient, inline []inlineFile) ([]protocol.FileHandle, error) {
	if len(inline) == 0 {
		return nil, nil
	}
	if files == nil {
		names := make([]string, len(inline))
		for i, f := range inline {
			names[i] = f.FileName
		}
		slog.Warn("No file service configured, dropping inline artifacts", "files", names)
		return nil, nil
	}

	handles := make([]protocol.FileHandle, 0, len(inline))
	for _, f := range inline {
		handle, err := files.Upload(ctx, run.RequestID(), f.FileName, f.Description, f.bytes())
		if err != nil {
			return handles, err
		}
		handles = append(handles, handle)
	}
	run.AddFiles(handles...)
	return handles, nil
}
