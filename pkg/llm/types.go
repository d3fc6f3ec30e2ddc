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

// Package llm defines the language-model interface and its OpenAI
// implementation.
//
// Providers expose a blocking Generate and a channel-based
// GenerateStreaming; both accept tool definitions so the model can request
// tool invocations.
package llm

import "context"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in the model's conversation window.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that requested tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolCall is the model's request to invoke a tool.
// Arguments is the raw JSON argument object as produced by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Request is the input for a model call.
type Request struct {
	Messages    []Message
	Tools       []ToolDefinition
	Temperature *float64
	MaxTokens   int

	// JSONResponse constrains the model to emit a JSON object.
	JSONResponse bool
}

// Completion is the result of a blocking model call.
type Completion struct {
	Text         string
	ToolCalls    []ToolCall
	TotalTokens  int
	FinishReason string
}

// ChunkType tags a streaming chunk.
type ChunkType string

const (
	ChunkTypeText     ChunkType = "text"
	ChunkTypeToolCall ChunkType = "tool_call"
	ChunkTypeDone     ChunkType = "done"
	ChunkTypeError    ChunkType = "error"
)

// StreamChunk is one increment of a streaming response.
type StreamChunk struct {
	Type ChunkType

	// Text is the delta for text chunks.
	Text string

	// ToolCall is the completed call for tool_call chunks.
	ToolCall *ToolCall

	// Err is set for error chunks; the stream ends after it.
	Err error
}

// Provider is the interface for language models.
type Provider interface {
	// Name returns the model identifier.
	Name() string

	// Generate produces a complete response for the request.
	Generate(ctx context.Context, req *Request) (*Completion, error)

	// GenerateStreaming produces incremental chunks on the returned
	// channel. The channel is closed when generation finishes; a chunk of
	// type error terminates the stream.
	GenerateStreaming(ctx context.Context, req *Request) (<-chan StreamChunk, error)

	// Close releases any resources held by the provider.
	Close() error
}
