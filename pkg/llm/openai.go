// Copyright 2025 FinSight AI
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

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	// APIKey for the OpenAI API (required).
	APIKey string

	// BaseURL for the API (default: https://api.openai.com/v1).
	BaseURL string

	// Model name (default: gpt-4o-mini).
	Model string

	// Temperature for sampling (default: 0).
	Temperature *float64

	// MaxTokens limits response length (0 = provider default).
	MaxTokens int

	// Timeout for HTTP requests (default: 60s).
	Timeout time.Duration
}

// OpenAIProvider implements Provider for the OpenAI chat completions API.
type OpenAIProvider struct {
	config OpenAIConfig
	client *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	return &OpenAIProvider{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// openaiRequest is the request payload for the chat completions API.
type openaiRequest struct {
	Model          string           `json:"model"`
	Messages       []openaiMessage  `json:"messages"`
	Temperature    float64          `json:"temperature"`
	MaxTokens      *int             `json:"max_tokens,omitempty"`
	Stream         bool             `json:"stream"`
	Tools          []openaiTool     `json:"tools,omitempty"`
	ToolChoice     string           `json:"tool_choice,omitempty"`
	ResponseFormat *responseFormat  `json:"response_format,omitempty"`
	StreamOptions  *streamOptions   `json:"stream_options,omitempty"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiTool struct {
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

type openaiFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type openaiToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openaiFunctionCall `json:"function"`
}

type openaiFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

// openaiResponse is the non-streaming response payload.
type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiChoice struct {
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openaiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// openaiStreamResponse is one SSE chunk of a streaming response.
type openaiStreamResponse struct {
	Choices []openaiStreamChoice `json:"choices"`
	Usage   *openaiUsage         `json:"usage,omitempty"`
	Error   *openaiError         `json:"error,omitempty"`
}

type openaiStreamChoice struct {
	Delta        openaiDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type openaiDelta struct {
	Content   string           `json:"content"`
	ToolCalls []openaiToolCall `json:"tool_calls"`
}

// Name returns the model identifier.
func (p *OpenAIProvider) Name() string {
	return p.config.Model
}

// Close releases resources held by the provider.
func (p *OpenAIProvider) Close() error {
	return nil
}

// Generate produces a complete response for the request.
func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (*Completion, error) {
	request := p.buildRequest(req, false)

	response, err := p.makeRequest(ctx, request)
	if err != nil {
		return nil, err
	}

	if response.Error != nil {
		return nil, fmt.Errorf("openai API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("openai: no response choices returned")
	}

	choice := response.Choices[0]
	completion := &Completion{
		Text:         choice.Message.Content,
		TotalTokens:  response.Usage.TotalTokens,
		FinishReason: choice.FinishReason,
	}
	for _, tc := range choice.Message.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return completion, nil
}

// GenerateStreaming produces incremental chunks on the returned channel.
func (p *OpenAIProvider) GenerateStreaming(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	request := p.buildRequest(req, true)

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		if err := p.makeStreamingRequest(ctx, request, outputCh); err != nil {
			select {
			case outputCh <- StreamChunk{Type: ChunkTypeError, Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return outputCh, nil
}

func (p *OpenAIProvider) buildRequest(req *Request, stream bool) openaiRequest {
	messages := make([]openaiMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		m := openaiMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openaiToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openaiFunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		messages = append(messages, m)
	}

	temperature := 0.0
	if req.Temperature != nil {
		temperature = *req.Temperature
	} else if p.config.Temperature != nil {
		temperature = *p.config.Temperature
	}

	request := openaiRequest{
		Model:       p.config.Model,
		Messages:    messages,
		Temperature: temperature,
		Stream:      stream,
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens > 0 {
		request.MaxTokens = &maxTokens
	}

	if req.JSONResponse {
		request.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	if len(req.Tools) > 0 {
		request.Tools = make([]openaiTool, 0, len(req.Tools))
		for _, t := range req.Tools {
			request.Tools = append(request.Tools, openaiTool{
				Type: "function",
				Function: openaiFunction{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		request.ToolChoice = "auto"
	}

	if stream {
		request.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	return request
}

func (p *OpenAIProvider) makeRequest(ctx context.Context, request openaiRequest) (*openaiResponse, error) {
	resp, err := p.doRequest(ctx, request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if apiErr := parseErrorResponse(body); apiErr != nil {
			return nil, fmt.Errorf("API request failed with status %d: %s (type: %s, code: %s)",
				resp.StatusCode, apiErr.Message, apiErr.Type, apiErr.Code)
		}
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response openaiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &response, nil
}

func (p *OpenAIProvider) makeStreamingRequest(ctx context.Context, request openaiRequest, outputCh chan<- StreamChunk) error {
	resp, err := p.doRequest(ctx, request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if apiErr := parseErrorResponse(body); apiErr != nil {
			return fmt.Errorf("API request failed with status %d: %s (type: %s, code: %s)",
				resp.StatusCode, apiErr.Message, apiErr.Type, apiErr.Code)
		}
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	reader := bufio.NewReader(resp.Body)

	// A consumer that stops reading must not pin this goroutine on a full
	// channel, so every send also watches ctx.
	send := func(chunk StreamChunk) bool {
		select {
		case outputCh <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// Streamed tool calls arrive as fragments: the first delta for a call
	// carries its id and name, later deltas append argument text.
	toolCallsMap := make(map[int]*openaiToolCall)

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read stream: %w", err)
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 || !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		line = line[6:]

		if bytes.Equal(line, []byte("[DONE]")) {
			break
		}

		var streamResp openaiStreamResponse
		if err := json.Unmarshal(line, &streamResp); err != nil {
			continue
		}

		if streamResp.Error != nil {
			return fmt.Errorf("API error: %s", streamResp.Error.Message)
		}

		if len(streamResp.Choices) == 0 {
			continue
		}

		choice := streamResp.Choices[0]

		if choice.Delta.Content != "" {
			if !send(StreamChunk{Type: ChunkTypeText, Text: choice.Delta.Content}) {
				return ctx.Err()
			}
		}

		for _, deltaCall := range choice.Delta.ToolCalls {
			if deltaCall.ID != "" {
				toolCallsMap[len(toolCallsMap)] = &openaiToolCall{
					ID:       deltaCall.ID,
					Type:     deltaCall.Type,
					Function: deltaCall.Function,
				}
			} else if len(toolCallsMap) > 0 {
				lastIdx := len(toolCallsMap) - 1
				if toolCall, exists := toolCallsMap[lastIdx]; exists {
					toolCall.Function.Arguments += deltaCall.Function.Arguments
				}
			}
		}

		if choice.FinishReason == "stop" || choice.FinishReason == "tool_calls" {
			for i := 0; i < len(toolCallsMap); i++ {
				if toolCall, exists := toolCallsMap[i]; exists {
					ok := send(StreamChunk{
						Type: ChunkTypeToolCall,
						ToolCall: &ToolCall{
							ID:        toolCall.ID,
							Name:      toolCall.Function.Name,
							Arguments: toolCall.Function.Arguments,
						},
					})
					if !ok {
						return ctx.Err()
					}
				}
			}
			break
		}
	}

	if !send(StreamChunk{Type: ChunkTypeDone}) {
		return ctx.Err()
	}
	return nil
}

func (p *OpenAIProvider) doRequest(ctx context.Context, request openaiRequest) (*http.Response, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	return resp, nil
}

// parseErrorResponse extracts a structured API error from a response body.
// Returns nil when the body is not a recognizable error payload.
func parseErrorResponse(body []byte) *openaiError {
	var errResp struct {
		Error *openaiError `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err != nil {
		return nil
	}
	return errResp.Error
}

// Ensure OpenAIProvider implements Provider.
var _ Provider = (*OpenAIProvider)(nil)
