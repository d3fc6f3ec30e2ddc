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

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finsightai/finsight/pkg/llm"
	"github.com/finsightai/finsight/pkg/schema"
	"github.com/finsightai/finsight/pkg/tools"
)

// AgentChunk is one increment of a streamed agent response.
type AgentChunk struct {
	Text string
	Err  error
}

// Agent is a tool-using conversational agent. It is rebuilt per chat
// request from the full history and holds no persistent state.
type Agent struct {
	llm          llm.Provider
	byName       map[string]tools.QueryTool
	toolDefs     []llm.ToolDefinition
	systemPrompt string
	history      []llm.Message
	emitter      tools.Emitter
	maxToolCalls int
}

// NewAgent assembles an agent from the top-level tools, system prompt,
// and reconstructed history.
func NewAgent(provider llm.Provider, topTools []tools.QueryTool, systemPrompt string, history []llm.Message, emitter tools.Emitter) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("chat: LLM provider is required")
	}
	if emitter == nil {
		emitter = tools.NopEmitter{}
	}

	byName := make(map[string]tools.QueryTool, len(topTools))
	defs := make([]llm.ToolDefinition, 0, len(topTools))
	for _, t := range topTools {
		if _, exists := byName[t.Name()]; exists {
			return nil, fmt.Errorf("chat: duplicate tool name %q", t.Name())
		}
		byName[t.Name()] = t
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"input": map[string]any{
						"type":        "string",
						"description": "The question to ask this engine.",
					},
				},
				"required": []string{"input"},
			},
		})
	}

	return &Agent{
		llm:          provider,
		byName:       byName,
		toolDefs:     defs,
		systemPrompt: systemPrompt,
		history:      history,
		emitter:      emitter,
		maxToolCalls: maxToolCallsPerTurn,
	}, nil
}

// ChatStream answers one user message, streaming text increments on the
// returned channel. The channel closes when the turn completes; an error
// chunk terminates it early. Cancelling ctx ends the turn even when the
// consumer has stopped reading, so an abandoned stream never pins the
// goroutine.
func (a *Agent) ChatStream(ctx context.Context, message string) <-chan AgentChunk {
	out := make(chan AgentChunk, 64)

	go func() {
		defer close(out)

		send := func(chunk AgentChunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		messages := make([]llm.Message, 0, len(a.history)+2)
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
		messages = append(messages, a.history...)
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

		callsUsed := 0
		for {
			req := &llm.Request{Messages: messages}
			if callsUsed < a.maxToolCalls && len(a.toolDefs) > 0 {
				req.Tools = a.toolDefs
			}

			text, calls, err := a.streamRound(ctx, req, out)
			if err != nil {
				send(AgentChunk{Err: err})
				return
			}
			if len(calls) == 0 {
				return
			}

			// The call budget bounds chained invocations; surplus calls
			// in a round are discarded before the transcript records
			// them.
			if remaining := a.maxToolCalls - callsUsed; len(calls) > remaining {
				slog.Debug("Truncating tool calls to per-turn budget",
					"requested", len(calls),
					"remaining", remaining)
				calls = calls[:remaining]
			}

			messages = append(messages, llm.Message{
				Role:      llm.RoleAssistant,
				Content:   text,
				ToolCalls: calls,
			})

			for _, call := range calls {
				if ctx.Err() != nil {
					return
				}
				callsUsed++
				output, err := a.executeToolCall(ctx, call)
				if err != nil {
					send(AgentChunk{Err: err})
					return
				}
				messages = append(messages, llm.Message{
					Role:       llm.RoleTool,
					Content:    output,
					ToolCallID: call.ID,
				})
			}
		}
	}()

	return out
}

// streamRound runs one streaming model call, forwarding text chunks and
// collecting any tool calls the model requested.
func (a *Agent) streamRound(ctx context.Context, req *llm.Request, out chan<- AgentChunk) (string, []llm.ToolCall, error) {
	ch, err := a.llm.GenerateStreaming(ctx, req)
	if err != nil {
		return "", nil, fmt.Errorf("model call failed: %w", err)
	}

	var text strings.Builder
	var calls []llm.ToolCall
	for chunk := range ch {
		switch chunk.Type {
		case llm.ChunkTypeText:
			text.WriteString(chunk.Text)
			select {
			case <-ctx.Done():
				return "", nil, ctx.Err()
			default:
			}
			select {
			case out <- AgentChunk{Text: chunk.Text}:
			case <-ctx.Done():
				return "", nil, ctx.Err()
			}
		case llm.ChunkTypeToolCall:
			if chunk.ToolCall != nil {
				calls = append(calls, *chunk.ToolCall)
			}
		case llm.ChunkTypeError:
			return "", nil, chunk.Err
		}
	}
	return text.String(), calls, nil
}

// executeToolCall runs one requested tool invocation, emitting its
// lifecycle events.
func (a *Agent) executeToolCall(ctx context.Context, call llm.ToolCall) (string, error) {
	tool, ok := a.byName[call.Name]
	if !ok {
		return "", fmt.Errorf("model requested unknown tool %q", call.Name)
	}

	input := parseToolInput(call.Arguments)

	eventID := a.emitter.Start(schema.SubProcessSourceFunctionCall, tools.FunctionCallPayload{
		Arguments: call.Arguments,
	})

	resp, err := tool.Query(ctx, input)
	if err != nil {
		return "", fmt.Errorf("tool %s failed: %w", call.Name, err)
	}

	a.emitter.End(eventID, schema.SubProcessSourceFunctionCall, tools.FunctionCallPayload{
		Output: resp.Text,
	})
	return resp.Text, nil
}

// parseToolInput extracts the question from a tool call's JSON argument
// object, falling back to the raw argument text.
func parseToolInput(arguments string) string {
	var parsed struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal([]byte(arguments), &parsed); err == nil && parsed.Input != "" {
		return parsed.Input
	}
	return arguments
}
