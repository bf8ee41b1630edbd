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

package sse

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/maestro/pkg/errdefs"
	"github.com/kadirpekel/maestro/pkg/protocol"
)

var (
	// ErrPrinterClosed is returned by Send after the stream has ended.
	ErrPrinterClosed = errors.New("printer closed")

	// ErrQueueOverflow is returned when an event could not be enqueued
	// within the backpressure window. The stream is fatally closed.
	ErrQueueOverflow = errors.New("printer queue overflow")
)

const (
	defaultQueueSize      = 256
	defaultHeartbeatEvery = 10 * time.Second
	defaultEnqueueWait    = 5 * time.Second

	timeoutResultText = "request deadline exceeded"
)

// Printer serializes one request's events onto a single SSE stream.
//
// Exactly one worker goroutine drains the bounded queue and writes to the
// transport, so events appear on the wire in Send order regardless of how
// many producers exist. The worker also owns heartbeats and the final
// frame, which means nothing can interleave with them.
type Printer struct {
	requestID string
	writer    EventWriter
	queue     chan protocol.Event

	heartbeatEvery time.Duration
	enqueueWait    time.Duration

	quit     chan struct{} // signals the worker to drain and exit
	done     chan struct{} // closed once the worker has exited
	quitOnce sync.Once

	mu    sync.Mutex
	final *protocol.ResultPayload // frame to write on graceful close
	err   error
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithQueueSize bounds the outbound queue.
func WithQueueSize(n int) PrinterOption {
	return func(p *Printer) {
		if n > 0 {
			p.queue = make(chan protocol.Event, n)
		}
	}
}

// WithHeartbeatInterval overrides the heartbeat cadence.
func WithHeartbeatInterval(d time.Duration) PrinterOption {
	return func(p *Printer) {
		if d > 0 {
			p.heartbeatEvery = d
		}
	}
}

// WithEnqueueTimeout bounds how long Send blocks under backpressure before
// the stream is declared broken.
func WithEnqueueTimeout(d time.Duration) PrinterOption {
	return func(p *Printer) {
		if d > 0 {
			p.enqueueWait = d
		}
	}
}

// NewPrinter starts the serializing worker and the heartbeat schedule.
// ctx is the request context: its deadline produces a final timeout
// result, its cancellation an abrupt close.
func NewPrinter(ctx context.Context, requestID string, writer EventWriter, opts ...PrinterOption) *Printer {
	p := &Printer{
		requestID:      requestID,
		writer:         writer,
		heartbeatEvery: defaultHeartbeatEvery,
		enqueueWait:    defaultEnqueueWait,
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue == nil {
		p.queue = make(chan protocol.Event, defaultQueueSize)
	}

	go p.run(ctx)
	return p
}

// NewMessageID mints an identifier shared by the frames of one logical
// message (for example the chunks of a streamed thought).
func (p *Printer) NewMessageID() string {
	return uuid.New().String()
}

// Send enqueues one event. The MessageID and TaskID are filled when
// absent. Send blocks at most the enqueue timeout under backpressure;
// expiry is a fatal stream error and the Printer closes with an error
// result.
func (p *Printer) Send(ev protocol.Event) error {
	if !ev.MessageType.Valid() {
		return &errdefs.StateError{Component: "printer", Detail: "unknown message type " + string(ev.MessageType)}
	}
	if ev.MessageID == "" {
		ev.MessageID = uuid.New().String()
	}
	if ev.TaskID == "" {
		ev.TaskID = p.requestID
	}

	select {
	case <-p.quit:
		return ErrPrinterClosed
	default:
	}

	timer := time.NewTimer(p.enqueueWait)
	defer timer.Stop()

	select {
	case p.queue <- ev:
		return nil
	case <-p.quit:
		return ErrPrinterClosed
	case <-timer.C:
		p.overflow()
		return ErrQueueOverflow
	}
}

// Close drains the queue, writes the final result frame when one is
// given, and closes the stream. A nil final closes without a result
// frame (client already gone). Close blocks until the wire is quiet and
// is a no-op on the wire when called again.
func (p *Printer) Close(final *protocol.ResultPayload) {
	p.quitOnce.Do(func() {
		p.mu.Lock()
		p.final = final
		p.mu.Unlock()
		close(p.quit)
	})
	<-p.done
}

// Err reports the stream failure that ended the Printer, if any.
func (p *Printer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// overflow marks the stream broken and triggers an error close without
// blocking the producer that hit it.
func (p *Printer) overflow() {
	p.mu.Lock()
	p.err = ErrQueueOverflow
	p.mu.Unlock()

	slog.Error("Printer queue overflow, closing stream", "request_id", p.requestID)
	p.quitOnce.Do(func() {
		p.mu.Lock()
		p.final = &protocol.ResultPayload{Status: protocol.StatusError, Result: "event stream overloaded"}
		p.mu.Unlock()
		close(p.quit)
	})
}

func (p *Printer) run(ctx context.Context) {
	defer close(p.done)
	// Whatever path ends the worker, later Sends must fail fast.
	defer p.quitOnce.Do(func() { close(p.quit) })

	ticker := time.NewTicker(p.heartbeatEvery)
	defer ticker.Stop()

	for {
		select {
		case ev := <-p.queue:
			if !p.write(ev) {
				return
			}

		case <-ticker.C:
			hb := protocol.Event{
				MessageID:   uuid.New().String(),
				MessageType: protocol.TypeHeartbeat,
				TaskID:      p.requestID,
				ResultMap:   protocol.HeartbeatPayload{},
			}
			if !p.write(hb) {
				return
			}

		case <-ctx.Done():
			reason, _ := errdefs.CancelReasonOf(ctx.Err())
			if reason == errdefs.CancelDeadline {
				p.drain()
				p.write(p.finalEvent(&protocol.ResultPayload{
					Status: protocol.StatusTimeout,
					Result: timeoutResultText,
				}))
			}
			// Client hangup: the wire is gone, leave without a frame.
			p.setErr(errdefs.FromContext(ctx))
			return

		case <-p.quit:
			p.drain()
			p.mu.Lock()
			final := p.final
			p.mu.Unlock()
			if final != nil {
				p.write(p.finalEvent(final))
			}
			return
		}
	}
}

// drain flushes whatever is already queued without waiting for more.
func (p *Printer) drain() {
	for {
		select {
		case ev := <-p.queue:
			if !p.write(ev) {
				return
			}
		default:
			return
		}
	}
}

func (p *Printer) finalEvent(res *protocol.ResultPayload) protocol.Event {
	return protocol.Event{
		MessageID:   uuid.New().String(),
		MessageType: protocol.TypeResult,
		TaskID:      p.requestID,
		ResultMap:   *res,
		IsFinal:     true,
	}
}

// write puts one event on the wire, reporting false when the transport is
// broken and the worker should stop.
func (p *Printer) write(ev protocol.Event) bool {
	if err := p.writer.WriteEvent(ev); err != nil {
		slog.Warn("Failed to write SSE event", "request_id", p.requestID, "error", err)
		p.setErr(err)
		return false
	}
	return true
}

func (p *Printer) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}
