package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIProvider implements LLMProvider using the OpenAI-compatible
// chat completions API. Works against OpenRouter, OpenAI, and other
// compatible endpoints.
type OpenAIProvider struct {
	apiKey       string
	apiBase      string
	defaultModel string
	httpClient   *http.Client
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(apiKey, apiBase, defaultModel string) *OpenAIProvider {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	if defaultModel == "" {
		defaultModel = "gpt-4o"
	}
	return &OpenAIProvider{
		apiKey:       apiKey,
		apiBase:      strings.TrimSuffix(apiBase, "/"),
		defaultModel: defaultModel,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// DefaultModel returns the configured default model.
func (p *OpenAIProvider) DefaultModel() string {
	return p.defaultModel
}

func (p *OpenAIProvider) buildBody(req *ChatRequest) map[string]any {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	body := map[string]any{
		"model":    model,
		"messages": p.convertMessages(req.Messages),
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if len(req.Tools) > 0 {
		body["tools"] = req.Tools
		body["tool_choice"] = "auto"
	}
	return body
}

func (p *OpenAIProvider) post(ctx context.Context, body map[string]any) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.apiBase+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	return resp, nil
}

// Chat sends a completion request and returns the full response.
func (p *OpenAIProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, err := p.post(ctx, p.buildBody(req))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return p.parseResponse(&apiResp)
}

// ChatStream sends a completion request with server-sent events enabled
// and returns a live stream of content deltas.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req *ChatRequest) (*Stream, error) {
	body := p.buildBody(req)
	body["stream"] = true

	resp, err := p.post(ctx, body)
	if err != nil {
		return nil, err
	}

	deltas := make(chan string)
	acc := &streamAccumulator{}
	errCh := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				break
			}
			var chunk openAIStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if delta := acc.apply(&chunk); delta != "" {
				select {
				case deltas <- delta:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}
		errCh <- scanner.Err()
	}()

	return NewStream(deltas, func() (*ChatResponse, error) {
		if err := <-errCh; err != nil {
			return nil, fmt.Errorf("stream read: %w", err)
		}
		return acc.response()
	}), nil
}

// GenerateObject requests a value matching the given JSON schema and
// unmarshals it into v.
func (p *OpenAIProvider) GenerateObject(ctx context.Context, req *ChatRequest, schema map[string]any, v any) error {
	body := p.buildBody(req)
	body["response_format"] = map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   "result",
			"strict": true,
			"schema": schema,
		},
	}

	resp, err := p.post(ctx, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var apiResp openAIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return fmt.Errorf("no choices in response")
	}
	content := apiResp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), v); err != nil {
		return fmt.Errorf("structured output does not match schema: %w", err)
	}
	return nil
}

// convertMessages converts our Message type to OpenAI API format.
func (p *OpenAIProvider) convertMessages(messages []Message) []map[string]any {
	result := make([]map[string]any, len(messages))
	for i, msg := range messages {
		m := map[string]any{
			"role":    msg.Role,
			"content": msg.Content,
		}
		if msg.ToolCallID != "" {
			m["tool_call_id"] = msg.ToolCallID
		}
		if len(msg.ToolCalls) > 0 {
			toolCalls := make([]map[string]any, len(msg.ToolCalls))
			for j, tc := range msg.ToolCalls {
				args, _ := json.Marshal(tc.Arguments)
				toolCalls[j] = map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": string(args),
					},
				}
			}
			m["tool_calls"] = toolCalls
		}
		result[i] = m
	}
	return result
}

// parseResponse converts the API response to our ChatResponse type.
func (p *OpenAIProvider) parseResponse(resp *openAIResponse) (*ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	choice := resp.Choices[0]
	result := &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, parseToolCall(tc.ID, tc.Function.Name, tc.Function.Arguments))
	}
	return result, nil
}

func parseToolCall(id, name, rawArgs string) ToolCall {
	var args map[string]any
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			args = map[string]any{"raw": rawArgs}
		}
	}
	return ToolCall{ID: id, Name: name, Arguments: args}
}

// streamAccumulator folds stream chunks into a final response.
type streamAccumulator struct {
	content      strings.Builder
	finishReason string
	usage        Usage
	toolCalls    []partialToolCall
}

type partialToolCall struct {
	id   string
	name string
	args strings.Builder
}

func (a *streamAccumulator) apply(chunk *openAIStreamChunk) string {
	if chunk.Usage != nil {
		a.usage = Usage{
			PromptTokens:     chunk.Usage.PromptTokens,
			CompletionTokens: chunk.Usage.CompletionTokens,
			TotalTokens:      chunk.Usage.TotalTokens,
		}
	}
	if len(chunk.Choices) == 0 {
		return ""
	}
	choice := chunk.Choices[0]
	if choice.FinishReason != "" {
		a.finishReason = choice.FinishReason
	}
	for _, tc := range choice.Delta.ToolCalls {
		for len(a.toolCalls) <= tc.Index {
			a.toolCalls = append(a.toolCalls, partialToolCall{})
		}
		p := &a.toolCalls[tc.Index]
		if tc.ID != "" {
			p.id = tc.ID
		}
		if tc.Function.Name != "" {
			p.name = tc.Function.Name
		}
		p.args.WriteString(tc.Function.Arguments)
	}
	a.content.WriteString(choice.Delta.Content)
	return choice.Delta.Content
}

func (a *streamAccumulator) response() (*ChatResponse, error) {
	resp := &ChatResponse{
		Content:      a.content.String(),
		FinishReason: a.finishReason,
		Usage:        a.usage,
	}
	for i := range a.toolCalls {
		p := &a.toolCalls[i]
		resp.ToolCalls = append(resp.ToolCalls, parseToolCall(p.id, p.name, p.args.String()))
	}
	return resp, nil
}

// OpenAI API response types
type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}
