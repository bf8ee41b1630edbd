package sse

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/maestro/pkg/protocol"
)

// captureWriter records written events; it can optionally block each write
// until released to simulate a slow client.
type captureWriter struct {
	mu      sync.Mutex
	events  []protocol.Event
	entered chan struct{}
	release chan struct{}
}

func (w *captureWriter) WriteEvent(ev protocol.Event) error {
	if w.entered != nil {
		select {
		case w.entered <- struct{}{}:
		default:
		}
	}
	if w.release != nil {
		<-w.release
	}
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

func textEvent(id string, text string) protocol.Event {
	return protocol.Event{
		MessageID:   id,
		MessageType: protocol.TypeToolThought,
		ResultMap:   protocol.ToolThoughtPayload{ToolThought: text},
	}
}

func TestPrinterPreservesSendOrder(t *testing.T) {
	writer := &captureWriter{}
	p := NewPrinter(context.Background(), "req-1", writer, WithHeartbeatInterval(time.Hour))

	const n = 100
	for i := 0; i < n; i++ {
		require.NoError(t, p.Send(textEvent(fmt.Sprintf("m-%03d", i), "chunk")))
	}
	p.Close(&protocol.ResultPayload{Status: protocol.StatusSuccess, Result: "done"})

	events := writer.snapshot()
	require.Len(t, events, n+1)
	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("m-%03d", i), events[i].MessageID, "event %d out of order", i)
	}

	final := events[n]
	assert.Equal(t, protocol.TypeResult, final.MessageType)
	assert.True(t, final.IsFinal)
}

func TestPrinterFinalFrameAndIdempotentClose(t *testing.T) {
	writer := &captureWriter{}
	p := NewPrinter(context.Background(), "req-1", writer, WithHeartbeatInterval(time.Hour))

	require.NoError(t, p.Send(textEvent("", "working")))
	final := &protocol.ResultPayload{Status: protocol.StatusSuccess, Result: "4"}
	p.Close(final)
	p.Close(final)
	p.Close(nil)

	events := writer.snapshot()
	require.Len(t, events, 2, "second close must be a no-op on the wire")

	last := events[len(events)-1]
	assert.True(t, last.IsFinal)
	assert.Equal(t, protocol.TypeResult, last.MessageType)
	payload, ok := last.ResultMap.(protocol.ResultPayload)
	require.True(t, ok)
	assert.Equal(t, protocol.StatusSuccess, payload.Status)
	assert.Equal(t, "4", payload.Result)
}

func TestPrinterSendAfterCloseFails(t *testing.T) {
	writer := &captureWriter{}
	p := NewPrinter(context.Background(), "req-1", writer, WithHeartbeatInterval(time.Hour))

	p.Close(&protocol.ResultPayload{Status: protocol.StatusSuccess, Result: "done"})

	err := p.Send(textEvent("", "late"))
	assert.ErrorIs(t, err, ErrPrinterClosed)

	events := writer.snapshot()
	assert.True(t, events[len(events)-1].IsFinal, "final frame must stay last")
}

func TestPrinterHeartbeats(t *testing.T) {
	writer := &captureWriter{}
	p := NewPrinter(context.Background(), "req-1", writer, WithHeartbeatInterval(20*time.Millisecond))

	require.Eventually(t, func() bool {
		for _, ev := range writer.snapshot() {
			if ev.MessageType == protocol.TypeHeartbeat {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "expected a heartbeat event")

	p.Close(nil)
}

func TestPrinterDeadlineEmitsTimeoutResult(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	writer := &captureWriter{}
	p := NewPrinter(ctx, "req-1", writer, WithHeartbeatInterval(time.Hour))

	require.Eventually(t, func() bool {
		events := writer.snapshot()
		if len(events) == 0 {
			return false
		}
		last := events[len(events)-1]
		if !last.IsFinal || last.MessageType != protocol.TypeResult {
			return false
		}
		payload, ok := last.ResultMap.(protocol.ResultPayload)
		return ok && payload.Status == protocol.StatusTimeout
	}, time.Second, 5*time.Millisecond, "expected a final timeout result")

	// By now the worker exited; new sends must fail.
	require.Eventually(t, func() bool {
		return p.Send(textEvent("", "late")) != nil
	}, time.Second, 5*time.Millisecond)
}

func TestPrinterClientHangupClosesWithoutFinalFrame(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	writer := &captureWriter{}
	p := NewPrinter(ctx, "req-1", writer, WithHeartbeatInterval(time.Hour))

	require.NoError(t, p.Send(textEvent("m-1", "working")))
	cancel()

	require.Eventually(t, func() bool {
		return p.Send(textEvent("", "late")) != nil
	}, time.Second, 5*time.Millisecond, "worker should stop accepting sends")

	for _, ev := range writer.snapshot() {
		assert.False(t, ev.IsFinal, "hangup must not produce a final frame")
		assert.NotEqual(t, protocol.TypeResult, ev.MessageType)
	}
}

func TestPrinterQueueOverflowIsFatal(t *testing.T) {
	writer := &captureWriter{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	p := NewPrinter(context.Background(), "req-1", writer,
		WithHeartbeatInterval(time.Hour),
		WithQueueSize(1),
		WithEnqueueTimeout(20*time.Millisecond),
	)

	// First send is picked up by the worker, which then blocks in
	// WriteEvent; the second fills the queue; the third cannot be
	// enqueued within the window.
	require.NoError(t, p.Send(textEvent("m-1", "a")))
	<-writer.entered
	require.NoError(t, p.Send(textEvent("m-2", "b")))

	err := p.Send(textEvent("m-3", "c"))
	assert.ErrorIs(t, err, ErrQueueOverflow)

	close(writer.release)
	p.Close(nil)

	assert.ErrorIs(t, p.Err(), ErrQueueOverflow)

	events := writer.snapshot()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.IsFinal, "overflow close must carry an error result")
	payload, ok := last.ResultMap.(protocol.ResultPayload)
	require.True(t, ok)
	assert.Equal(t, protocol.StatusError, payload.Status)
}

func TestPrinterRejectsUnknownMessageType(t *testing.T) {
	writer := &captureWriter{}
	p := NewPrinter(context.Background(), "req-1", writer, WithHeartbeatInterval(time.Hour))
	defer p.Close(nil)

	err := p.Send(protocol.Event{MessageType: "bogus"})
	assert.Error(t, err)
}

func TestPrinterFillsMessageID(t *testing.T) {
	writer := &captureWriter{}
	p := NewPrinter(context.Background(), "req-1", writer, WithHeartbeatInterval(time.Hour))

	require.NoError(t, p.Send(textEvent("", "x")))
	p.Close(nil)

	events := writer.snapshot()
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].MessageID)
}
