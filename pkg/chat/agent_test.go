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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsightai/finsight/pkg/llm"
	"github.com/finsightai/finsight/pkg/tools"
)

func TestNewAgent(t *testing.T) {
	t.Run("requires a provider", func(t *testing.T) {
		_, err := NewAgent(nil, nil, "prompt", nil, nil)
		require.Error(t, err)
	})

	t.Run("rejects duplicate tool names", func(t *testing.T) {
		_, err := NewAgent(&scriptedProvider{}, []tools.QueryTool{
			&echoTool{name: "engine"},
			&echoTool{name: "engine"},
		}, "prompt", nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate tool name")
	})
}

func TestAgentChatStreamPlainAnswer(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamChunk{
		textChunks("Hello", ", ", "world."),
	}}
	agent, err := NewAgent(provider, nil, "You are helpful.", nil, nil)
	require.NoError(t, err)

	text, err := collectChunks(agent.ChatStream(context.Background(), "hi"))
	require.NoError(t, err)
	assert.Equal(t, "Hello, world.", text)

	// One round, no tools offered when none are configured.
	reqs := provider.recordedRequests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Tools)
}

func TestAgentChatStreamMessageLayout(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamChunk{
		textChunks("ok"),
	}}
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "earlier question"},
		{Role: llm.RoleAssistant, Content: "earlier answer"},
	}
	agent, err := NewAgent(provider, nil, "system prompt", history, nil)
	require.NoError(t, err)

	_, err = collectChunks(agent.ChatStream(context.Background(), "new question"))
	require.NoError(t, err)

	reqs := provider.recordedRequests()
	require.Len(t, reqs, 1)
	messages := reqs[0].Messages
	require.Len(t, messages, 4)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, "system prompt", messages[0].Content)
	assert.Equal(t, "earlier question", messages[1].Content)
	assert.Equal(t, "earlier answer", messages[2].Content)
	assert.Equal(t, llm.RoleUser, messages[3].Role)
	assert.Equal(t, "new question", messages[3].Content)
}

func TestAgentChatStreamExecutesToolCall(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamChunk{
		toolCallChunk("call-1", "engine", "What was revenue?"),
		textChunks("Revenue was $10M."),
	}}
	tool := &echoTool{name: "engine"}
	agent, err := NewAgent(provider, []tools.QueryTool{tool}, "prompt", nil, nil)
	require.NoError(t, err)

	text, err := collectChunks(agent.ChatStream(context.Background(), "revenue?"))
	require.NoError(t, err)
	assert.Equal(t, "Revenue was $10M.", text)
	assert.Equal(t, []string{"What was revenue?"}, tool.queries)

	// Second round must carry the assistant tool-call message and the
	// tool reply linked by call id.
	reqs := provider.recordedRequests()
	require.Len(t, reqs, 2)
	messages := reqs[1].Messages
	require.GreaterOrEqual(t, len(messages), 4)

	assistant := messages[len(messages)-2]
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call-1", assistant.ToolCalls[0].ID)

	reply := messages[len(messages)-1]
	assert.Equal(t, llm.RoleTool, reply.Role)
	assert.Equal(t, "call-1", reply.ToolCallID)
	assert.Equal(t, "echo: What was revenue?", reply.Content)
}

func TestAgentChatStreamBoundsToolCalls(t *testing.T) {
	// The model asks for a tool every round; the agent must stop
	// offering tools once the per-turn budget is spent.
	provider := &scriptedProvider{rounds: [][]llm.StreamChunk{
		toolCallChunk("call-1", "engine", "q1"),
		toolCallChunk("call-2", "engine", "q2"),
		toolCallChunk("call-3", "engine", "q3"),
		textChunks("final answer"),
	}}
	tool := &echoTool{name: "engine"}
	agent, err := NewAgent(provider, []tools.QueryTool{tool}, "prompt", nil, nil)
	require.NoError(t, err)

	text, err := collectChunks(agent.ChatStream(context.Background(), "question"))
	require.NoError(t, err)
	assert.Equal(t, "final answer", text)
	assert.Equal(t, maxToolCallsPerTurn, tool.queryCount())

	reqs := provider.recordedRequests()
	require.Len(t, reqs, 4)
	assert.NotEmpty(t, reqs[0].Tools)
	assert.NotEmpty(t, reqs[2].Tools)
	// Budget exhausted after three executed calls.
	assert.Empty(t, reqs[3].Tools)
}

func TestAgentChatStreamTruncatesSurplusParallelCalls(t *testing.T) {
	manyCalls := make([]llm.StreamChunk, 0, maxToolCallsPerTurn+2)
	for i := 0; i < maxToolCallsPerTurn+2; i++ {
		manyCalls = append(manyCalls, toolCallChunk(
			string(rune('a'+i)), "engine", "q")[0])
	}

	provider := &scriptedProvider{rounds: [][]llm.StreamChunk{
		manyCalls,
		textChunks("answer"),
	}}
	tool := &echoTool{name: "engine"}
	agent, err := NewAgent(provider, []tools.QueryTool{tool}, "prompt", nil, nil)
	require.NoError(t, err)

	_, err = collectChunks(agent.ChatStream(context.Background(), "question"))
	require.NoError(t, err)
	assert.Equal(t, maxToolCallsPerTurn, tool.queryCount())

	// The transcript only records the calls that actually ran, each with
	// its tool reply.
	reqs := provider.recordedRequests()
	require.Len(t, reqs, 2)
	var assistant *llm.Message
	toolReplies := 0
	for i := range reqs[1].Messages {
		m := &reqs[1].Messages[i]
		if len(m.ToolCalls) > 0 {
			assistant = m
		}
		if m.Role == llm.RoleTool {
			toolReplies++
		}
	}
	require.NotNil(t, assistant)
	assert.Len(t, assistant.ToolCalls, maxToolCallsPerTurn)
	assert.Equal(t, maxToolCallsPerTurn, toolReplies)
}

func TestAgentChatStreamUnknownTool(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamChunk{
		toolCallChunk("call-1", "missing", "q"),
	}}
	agent, err := NewAgent(provider, []tools.QueryTool{&echoTool{name: "engine"}}, "prompt", nil, nil)
	require.NoError(t, err)

	_, err = collectChunks(agent.ChatStream(context.Background(), "question"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestAgentChatStreamToolFailureIsFatal(t *testing.T) {
	provider := &scriptedProvider{rounds: [][]llm.StreamChunk{
		toolCallChunk("call-1", "broken", "q"),
	}}
	agent, err := NewAgent(provider, []tools.QueryTool{&failingTool{name: "broken"}}, "prompt", nil, nil)
	require.NoError(t, err)

	_, err = collectChunks(agent.ChatStream(context.Background(), "question"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")
}

func TestAgentChatStreamCancelReleasesAbandonedTurn(t *testing.T) {
	// Far more chunks than the output buffer holds, so an abandoned
	// consumer would leave the goroutine blocked mid-send without a
	// cancellation path.
	parts := make([]string, 200)
	for i := range parts {
		parts[i] = "x"
	}
	provider := &scriptedProvider{rounds: [][]llm.StreamChunk{textChunks(parts...)}}
	agent, err := NewAgent(provider, nil, "prompt", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch := agent.ChatStream(ctx, "question")

	first := <-ch
	require.NoError(t, first.Err)
	cancel()

	// The goroutine must stop generating and close the channel rather
	// than deliver the rest of the response.
	received := 1
	for range ch {
		received++
	}
	assert.Less(t, received, len(parts))
}

func TestParseToolInput(t *testing.T) {
	assert.Equal(t, "the question", parseToolInput(`{"input": "the question"}`))
	assert.Equal(t, "not json", parseToolInput("not json"))
	assert.Equal(t, `{"other": "field"}`, parseToolInput(`{"other": "field"}`))
}
