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

// Package errdefs defines the error kinds shared across the maestro
// runtime. Components wrap causes into one of these kinds; the
// orchestrator boundary and the agent loop branch on the kind, never on
// error strings.
//
// Kinds:
//   - TransportError: network failure, timeout, non-2xx without a JSON body
//   - ParseError: malformed JSON from the LLM or a tool backend
//   - BudgetError: token budget exceeded even after pruning
//   - ToolError: a tool execution reported failure or panicked
//   - StateError: internal invariant violation, always a bug
//   - CancelledError: request deadline hit or client disconnected
package errdefs

import (
	"context"
	"errors"
	"fmt"
)

// TransportError reports a network-level failure talking to the LLM
// endpoint or a tool backend. StatusCode is zero when no response arrived.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: transport failure (HTTP %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports malformed data from an upstream service.
type ParseError struct {
	Op     string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: parse failure (%s): %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: parse failure: %v", e.Op, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// BudgetError reports a token budget violation: the pruned input still
// exceeds the model window, or the output ran past maxOutputTokens.
type BudgetError struct {
	Op     string
	Tokens int
	Limit  int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("%s: token budget exceeded (%d > %d)", e.Op, e.Tokens, e.Limit)
}

// ToolError reports a failed tool execution. Reason is the short
// user-visible cause recorded into the tool result.
type ToolError struct {
	Tool   string
	Reason string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool %s: %s: %v", e.Tool, e.Reason, e.Err)
	}
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Reason)
}

func (e *ToolError) Unwrap() error { return e.Err }

// StateError reports an invariant violation. These are bugs, not runtime
// conditions; callers convert them to error results but never retry.
type StateError struct {
	Component string
	Detail    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: invariant violated: %s", e.Component, e.Detail)
}

// CancelReason distinguishes a deadline expiry from a client hangup.
// The final frame differs: deadlines produce a timeout result, hangups
// produce no frame at all.
type CancelReason string

const (
	CancelDeadline   CancelReason = "deadline"
	CancelDisconnect CancelReason = "disconnect"
)

// CancelledError reports that the request's cancellation token fired.
type CancelledError struct {
	Reason CancelReason
	Err    error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("cancelled (%s): %v", e.Reason, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// FromContext converts a context error into a CancelledError, keeping the
// deadline/disconnect distinction. Returns nil when ctx has no error.
func FromContext(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return &CancelledError{Reason: CancelDeadline, Err: err}
	default:
		return &CancelledError{Reason: CancelDisconnect, Err: err}
	}
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func IsBudget(err error) bool {
	var be *BudgetError
	return errors.As(err, &be)
}

func IsTool(err error) bool {
	var te *ToolError
	return errors.As(err, &te)
}

func IsState(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// IsCancelled matches both the typed kind and raw context errors so call
// sites can pass either without converting first.
func IsCancelled(err error) bool {
	var ce *CancelledError
	if errors.As(err, &ce) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// CancelReasonOf extracts the cancel reason, defaulting raw context errors
// to the deadline/disconnect distinction they carry.
func CancelReasonOf(err error) (CancelReason, bool) {
	var ce *CancelledError
	if errors.As(err, &ce) {
		return ce.Reason, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CancelDeadline, true
	}
	if errors.Is(err, context.Canceled) {
		return CancelDisconnect, true
	}
	return "", false
}
