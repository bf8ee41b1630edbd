package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kadirpekel/maestro/pkg/config"
	"github.com/kadirpekel/maestro/pkg/errdefs"
	"github.com/kadirpekel/maestro/pkg/httpclient"
	"github.com/kadirpekel/maestro/pkg/sse"
)

// Client talks to an OpenAI-compatible chat completions API.
//
// Retries happen inside the HTTP client, before any response byte is
// surfaced; once a stream has produced output, failures are terminal.
type Client struct {
	cfg  *config.LLMConfig
	http *httpclient.Client
}

// NewClient creates a client for one model profile.
func NewClient(cfg *config.LLMConfig) *Client {
	return &Client{
		cfg: cfg,
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// MaxInputTokens returns the prompt budget.
func (c *Client) MaxInputTokens() int { return c.cfg.MaxInputTokens }

// Wire types for the chat completions API.

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatToolCall struct {
	// Index orders streamed fragments of the same call.
	Index    *int             `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
	Error   *apiError    `json:"error,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type streamResponse struct {
	Choices []streamChoice `json:"choices"`
	Usage   *chatUsage     `json:"usage,omitempty"`
	Error   *apiError      `json:"error,omitempty"`
}

type streamChoice struct {
	Delta        streamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type streamDelta struct {
	Content   string         `json:"content,omitempty"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

// Complete runs one blocking completion.
func (c *Client) Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Completion, error) {
	request := c.buildRequest(messages, false, tools)

	resp, err := c.post(ctx, "llm.complete", request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errdefs.TransportError{Op: "llm.complete", StatusCode: resp.StatusCode, Err: err}
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, &errdefs.ParseError{Op: "llm.complete", Detail: "response body", Err: err}
	}

	if response.Error != nil {
		return nil, &errdefs.TransportError{
			Op:         "llm.complete",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("api error: %s (type: %s, code: %s)", response.Error.Message, response.Error.Type, response.Error.Code),
		}
	}

	if len(response.Choices) == 0 {
		return nil, &errdefs.ParseError{Op: "llm.complete", Detail: "no response choices"}
	}

	choice := response.Choices[0]

	toolCalls, err := parseToolCalls(choice.Message.ToolCalls)
	if err != nil {
		return nil, err
	}

	return &Completion{
		Text:         choice.Message.Content,
		ToolCalls:    toolCalls,
		FinishReason: choice.FinishReason,
		Tokens:       response.Usage.TotalTokens,
	}, nil
}

// Stream runs one streaming completion.
func (c *Client) Stream(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	request := c.buildRequest(messages, true, tools)

	out := make(chan StreamChunk, 100)
	go func() {
		defer close(out)
		if err := c.stream(ctx, request, out); err != nil {
			out <- StreamChunk{Type: ChunkError, Err: err}
		}
	}()

	return out, nil
}

func (c *Client) buildRequest(messages []Message, stream bool, tools []ToolDefinition) chatRequest {
	wireMessages := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		wire := chatMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			argsJSON, _ := json.Marshal(tc.Arguments)
			wire.ToolCalls = append(wire.ToolCalls, chatToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: chatFunctionCall{
					Name:      tc.Name,
					Arguments: string(argsJSON),
				},
			})
		}
		wireMessages = append(wireMessages, wire)
	}

	temperature := 0.7
	if c.cfg.Temperature != nil {
		temperature = *c.cfg.Temperature
	}

	request := chatRequest{
		Model:       c.cfg.Model,
		Messages:    wireMessages,
		Temperature: temperature,
		Stream:      stream,
	}

	if c.cfg.MaxOutputTokens > 0 {
		maxTokens := c.cfg.MaxOutputTokens
		request.MaxTokens = &maxTokens
	}

	if len(tools) > 0 {
		request.Tools = make([]chatTool, len(tools))
		for i, tool := range tools {
			request.Tools[i] = chatTool{Type: "function", Function: chatFunction(tool)}
		}
		request.ToolChoice = "auto"
	}

	return request
}

// post sends the request and returns a 200 response, mapping every
// other outcome to a typed error.
func (c *Client) post(ctx context.Context, op string, request chatRequest) (*http.Response, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, &errdefs.ParseError{Op: op, Detail: "request body", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, &errdefs.TransportError{Op: op, Err: err}
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(requestBody)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)

	// The retry client can hand back both a response and an error when
	// attempts are exhausted; the body still carries the API's reason.
	if resp != nil && resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if apiErr := parseErrorBody(body); apiErr != nil {
			return nil, &errdefs.TransportError{
				Op:         op,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("%s (type: %s, code: %s)", apiErr.Message, apiErr.Type, apiErr.Code),
			}
		}
		return nil, &errdefs.TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", bytes.TrimSpace(body)),
		}
	}

	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errdefs.FromContext(ctx)
		}
		return nil, &errdefs.TransportError{Op: op, Err: err}
	}

	if resp == nil {
		return nil, &errdefs.TransportError{Op: op, Err: fmt.Errorf("no response received")}
	}

	return resp, nil
}

func (c *Client) stream(ctx context.Context, request chatRequest, out chan<- StreamChunk) error {
	resp, err := c.post(ctx, "llm.stream", request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	decoder := sse.NewDecoder(resp.Body)
	assembler := newToolCallAssembler()
	totalTokens := 0
	finishReason := ""

	for {
		payload, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return errdefs.FromContext(ctx)
			}
			return &errdefs.TransportError{Op: "llm.stream", Err: err}
		}

		if payload == "[DONE]" {
			break
		}

		var chunk streamResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Tolerate junk frames from lenient gateways.
			continue
		}

		if chunk.Error != nil {
			return &errdefs.TransportError{
				Op:  "llm.stream",
				Err: fmt.Errorf("api error: %s (type: %s, code: %s)", chunk.Error.Message, chunk.Error.Type, chunk.Error.Code),
			}
		}

		if chunk.Usage != nil {
			totalTokens = chunk.Usage.TotalTokens
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			select {
			case out <- StreamChunk{Type: ChunkText, Text: choice.Delta.Content}:
			case <-ctx.Done():
				return errdefs.FromContext(ctx)
			}
		}

		for _, delta := range choice.Delta.ToolCalls {
			assembler.add(delta)
		}

		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}
	}

	if finishReason == "tool_calls" || assembler.len() > 0 {
		toolCalls, err := parseToolCalls(assembler.assembled())
		if err != nil {
			return err
		}
		for i := range toolCalls {
			tc := toolCalls[i]
			select {
			case out <- StreamChunk{Type: ChunkToolCall, ToolCall: &tc}:
			case <-ctx.Done():
				return errdefs.FromContext(ctx)
			}
		}
	}

	select {
	case out <- StreamChunk{Type: ChunkDone, Tokens: totalTokens}:
	case <-ctx.Done():
		return errdefs.FromContext(ctx)
	}
	return nil
}

// toolCallAssembler merges streamed tool call fragments. Fragments of
// one call share an index; the first carries id and name, the rest only
// argument text to append.
type toolCallAssembler struct {
	calls map[int]*chatToolCall
	last  int
}

func newToolCallAssembler() *toolCallAssembler {
	return &toolCallAssembler{calls: make(map[int]*chatToolCall), last: -1}
}

func (a *toolCallAssembler) add(delta chatToolCall) {
	idx := a.last
	switch {
	case delta.Index != nil:
		idx = *delta.Index
	case delta.ID != "":
		idx = len(a.calls)
	}
	if idx < 0 {
		idx = 0
	}
	a.last = idx

	call, ok := a.calls[idx]
	if !ok {
		call = &chatToolCall{}
		a.calls[idx] = call
	}
	if delta.ID != "" {
		call.ID = delta.ID
	}
	if delta.Type != "" {
		call.Type = delta.Type
	}
	if delta.Function.Name != "" {
		call.Function.Name = delta.Function.Name
	}
	call.Function.Arguments += delta.Function.Arguments
}

func (a *toolCallAssembler) len() int { return len(a.calls) }

// assembled returns the calls in index order, skipping gaps.
func (a *toolCallAssembler) assembled() []chatToolCall {
	result := make([]chatToolCall, 0, len(a.calls))
	for i := 0; len(result) < len(a.calls); i++ {
		if call, ok := a.calls[i]; ok {
			result = append(result, *call)
		}
	}
	return result
}

func parseToolCalls(wireCalls []chatToolCall) ([]ToolCall, error) {
	if len(wireCalls) == 0 {
		return nil, nil
	}
	result := make([]ToolCall, len(wireCalls))
	for i, tc := range wireCalls {
		args := make(map[string]any)
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, &errdefs.ParseError{
					Op:     "llm.tool_calls",
					Detail: fmt.Sprintf("arguments of %s", tc.Function.Name),
					Err:    err,
				}
			}
		}
		result[i] = ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		}
	}
	return result, nil
}

func parseErrorBody(body []byte) *apiError {
	if len(body) == 0 {
		return nil
	}
	var errorResp struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
		return &errorResp.Error
	}
	return nil
}

var _ Provider = (*Client)(nil)
