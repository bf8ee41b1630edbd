package llm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter estimates token usage of conversation input.
type Counter interface {
	// Count returns the token count of raw text.
	Count(text string) int

	// CountMessage returns the cost of one message including its role
	// and tool call payloads.
	CountMessage(msg Message) int

	// CountMessages returns the cost of a full prompt, including the
	// reply priming overhead.
	CountMessages(messages []Message) int
}

// perMessageOverhead covers the role/message framing tokens, and
// replyPriming the assistant priming, per the OpenAI cookbook counts.
const (
	perMessageOverhead = 3
	replyPriming       = 3
)

// TokenCounter counts tokens with a tiktoken encoding.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	encodingMu    sync.Mutex
)

// NewTokenCounter creates a counter for a model. Unknown models fall
// back to the cl100k_base encoding.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encodingMu.Lock()
	defer encodingMu.Unlock()

	encoding, ok := encodingCache[model]
	if !ok {
		var err error
		encoding, err = tiktoken.EncodingForModel(model)
		if err != nil {
			encoding, err = tiktoken.GetEncoding("cl100k_base")
			if err != nil {
				return nil, fmt.Errorf("failed to get encoding: %w", err)
			}
		}
		encodingCache[model] = encoding
	}

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count of raw text.
func (tc *TokenCounter) Count(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountMessage returns the cost of one message.
func (tc *TokenCounter) CountMessage(msg Message) int {
	total := perMessageOverhead
	total += tc.Count(string(msg.Role))
	total += tc.Count(msg.Content)
	for _, call := range msg.ToolCalls {
		total += tc.Count(call.Name)
		if args, err := json.Marshal(call.Arguments); err == nil {
			total += tc.Count(string(args))
		}
	}
	return total
}

// CountMessages returns the cost of a full prompt.
func (tc *TokenCounter) CountMessages(messages []Message) int {
	total := replyPriming
	for _, msg := range messages {
		total += tc.CountMessage(msg)
	}
	return total
}

// Model returns the model name this counter was built for.
func (tc *TokenCounter) Model() string { return tc.model }

// ApproxCounter estimates tokens at four characters each. It stands in
// when no encoding is available.
type ApproxCounter struct{}

// Count returns the estimated token count of raw text.
func (ApproxCounter) Count(text string) int {
	return len(text) / 4
}

// CountMessage returns the estimated cost of one message.
func (a ApproxCounter) CountMessage(msg Message) int {
	total := perMessageOverhead
	total += a.Count(string(msg.Role))
	total += a.Count(msg.Content)
	for _, call := range msg.ToolCalls {
		total += a.Count(call.Name)
		if args, err := json.Marshal(call.Arguments); err == nil {
			total += a.Count(string(args))
		}
	}
	return total
}

// CountMessages returns the estimated cost of a full prompt.
func (a ApproxCounter) CountMessages(messages []Message) int {
	total := replyPriming
	for _, msg := range messages {
		total += a.CountMessage(msg)
	}
	return total
}

// NewCounter returns the best available counter for a model: tiktoken
// when its encoding loads, the four-characters approximation otherwise.
func NewCounter(model string) Counter {
	if tc, err := NewTokenCounter(model); err == nil {
		return tc
	}
	return ApproxCounter{}
}

var (
	_ Counter = (*TokenCounter)(nil)
	_ Counter = ApproxCounter{}
)
