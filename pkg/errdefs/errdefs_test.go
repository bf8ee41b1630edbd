package errdefs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestErrorKindsMatch(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"transport", &TransportError{Op: "llm.ask", Err: errors.New("reset")}, IsTransport},
		{"parse", &ParseError{Op: "llm.stream", Err: errors.New("bad json")}, IsParse},
		{"budget", &BudgetError{Op: "llm.prune", Tokens: 9000, Limit: 8000}, IsBudget},
		{"tool", &ToolError{Tool: "code_interpreter", Reason: "backend failure"}, IsTool},
		{"state", &StateError{Component: "plan", Detail: "lists out of sync"}, IsState},
		{"cancelled", &CancelledError{Reason: CancelDeadline, Err: context.DeadlineExceeded}, IsCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("predicate did not match its own kind: %v", tt.err)
			}
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !tt.check(wrapped) {
				t.Errorf("predicate did not match wrapped kind: %v", wrapped)
			}
		})
	}
}

func TestKindsDoNotCrossMatch(t *testing.T) {
	transport := &TransportError{Op: "llm.ask", Err: errors.New("reset")}

	if IsParse(transport) {
		t.Error("IsParse matched a TransportError")
	}
	if IsTool(transport) {
		t.Error("IsTool matched a TransportError")
	}
	if IsCancelled(transport) {
		t.Error("IsCancelled matched a TransportError")
	}
}

func TestIsCancelledMatchesRawContextErrors(t *testing.T) {
	if !IsCancelled(context.Canceled) {
		t.Error("IsCancelled(context.Canceled) = false")
	}
	if !IsCancelled(context.DeadlineExceeded) {
		t.Error("IsCancelled(context.DeadlineExceeded) = false")
	}
	if IsCancelled(errors.New("other")) {
		t.Error("IsCancelled(plain error) = true")
	}
}

func TestFromContext(t *testing.T) {
	t.Run("live context", func(t *testing.T) {
		if err := FromContext(context.Background()); err != nil {
			t.Errorf("FromContext(live) = %v, want nil", err)
		}
	})

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()

		err := FromContext(ctx)
		reason, ok := CancelReasonOf(err)
		if !ok || reason != CancelDeadline {
			t.Errorf("CancelReasonOf = (%v, %v), want (deadline, true)", reason, ok)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := FromContext(ctx)
		reason, ok := CancelReasonOf(err)
		if !ok || reason != CancelDisconnect {
			t.Errorf("CancelReasonOf = (%v, %v), want (disconnect, true)", reason, ok)
		}
	})
}

func TestCancelReasonOfRawErrors(t *testing.T) {
	if reason, ok := CancelReasonOf(context.DeadlineExceeded); !ok || reason != CancelDeadline {
		t.Errorf("CancelReasonOf(DeadlineExceeded) = (%v, %v)", reason, ok)
	}
	if reason, ok := CancelReasonOf(context.Canceled); !ok || reason != CancelDisconnect {
		t.Errorf("CancelReasonOf(Canceled) = (%v, %v)", reason, ok)
	}
	if _, ok := CancelReasonOf(errors.New("x")); ok {
		t.Error("CancelReasonOf(plain) reported ok")
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "transport with status",
			err:  &TransportError{Op: "llm.ask", StatusCode: 502, Err: errors.New("bad gateway")},
			want: "llm.ask: transport failure (HTTP 502): bad gateway",
		},
		{
			name: "budget",
			err:  &BudgetError{Op: "llm.prune", Tokens: 9000, Limit: 8000},
			want: "llm.prune: token budget exceeded (9000 > 8000)",
		},
		{
			name: "tool without cause",
			err:  &ToolError{Tool: "file_tool", Reason: "cancelled"},
			want: "tool file_tool: cancelled",
		},
		{
			name: "state",
			err:  &StateError{Component: "plan", Detail: "stage index out of range"},
			want: "plan: invariant violated: stage index out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}
