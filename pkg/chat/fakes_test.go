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
	"fmt"
	"sync"

	"github.com/finsightai/finsight/pkg/embedder"
	"github.com/finsightai/finsight/pkg/llm"
	"github.com/finsightai/finsight/pkg/tools"
)

// scriptedProvider replays one scripted chunk sequence per streaming
// round. Rounds past the script stream a plain "done" answer, so an
// agent that keeps calling tools eventually terminates.
type scriptedProvider struct {
	mu     sync.Mutex
	rounds [][]llm.StreamChunk

	// requests records the request of every streaming round.
	requests []*llm.Request
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(_ context.Context, req *llm.Request) (*llm.Completion, error) {
	return nil, fmt.Errorf("scripted provider has no blocking mode")
}

func (p *scriptedProvider) GenerateStreaming(_ context.Context, req *llm.Request) (<-chan llm.StreamChunk, error) {
	p.mu.Lock()
	reqCopy := *req
	p.requests = append(p.requests, &reqCopy)

	var chunks []llm.StreamChunk
	if len(p.rounds) > 0 {
		chunks = p.rounds[0]
		p.rounds = p.rounds[1:]
	} else {
		chunks = []llm.StreamChunk{{Type: llm.ChunkTypeText, Text: "done"}}
	}
	p.mu.Unlock()

	ch := make(chan llm.StreamChunk, len(chunks)+1)
	for _, c := range chunks {
		ch <- c
	}
	ch <- llm.StreamChunk{Type: llm.ChunkTypeDone}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) Close() error { return nil }

func (p *scriptedProvider) recordedRequests() []*llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.Request(nil), p.requests...)
}

var _ llm.Provider = (*scriptedProvider)(nil)

// textChunks builds a streamed text round.
func textChunks(parts ...string) []llm.StreamChunk {
	chunks := make([]llm.StreamChunk, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, llm.StreamChunk{Type: llm.ChunkTypeText, Text: p})
	}
	return chunks
}

// toolCallChunk builds a round that requests a single tool invocation.
func toolCallChunk(id, name, input string) []llm.StreamChunk {
	return []llm.StreamChunk{{
		Type: llm.ChunkTypeToolCall,
		ToolCall: &llm.ToolCall{
			ID:        id,
			Name:      name,
			Arguments: fmt.Sprintf(`{"input": %q}`, input),
		},
	}}
}

// echoTool answers every query with a fixed prefix plus the question.
type echoTool struct {
	name string

	mu      sync.Mutex
	queries []string
}

func (t *echoTool) Name() string        { return t.name }
func (t *echoTool) Description() string { return "echoes the question" }

func (t *echoTool) Query(_ context.Context, q string) (*tools.Response, error) {
	t.mu.Lock()
	t.queries = append(t.queries, q)
	t.mu.Unlock()
	return &tools.Response{Text: "echo: " + q}, nil
}

func (t *echoTool) queryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queries)
}

var _ tools.QueryTool = (*echoTool)(nil)

// failingTool fails every query.
type failingTool struct{ name string }

func (t *failingTool) Name() string        { return t.name }
func (t *failingTool) Description() string { return "always fails" }

func (t *failingTool) Query(context.Context, string) (*tools.Response, error) {
	return nil, fmt.Errorf("backend unavailable")
}

var _ tools.QueryTool = (*failingTool)(nil)

// hashEmbedder produces small deterministic embeddings so indexing and
// retrieval work without a real model.
type hashEmbedder struct{ dim int }

func newHashEmbedder() *hashEmbedder { return &hashEmbedder{dim: 8} }

func (e *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)
	for i, r := range text {
		vec[i%e.dim] += float32(r%97) / 97
	}
	return vec, nil
}

func (e *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (e *hashEmbedder) Dimension() int { return e.dim }
func (e *hashEmbedder) Model() string  { return "hash-embedder" }
func (e *hashEmbedder) Close() error   { return nil }

var _ embedder.Embedder = (*hashEmbedder)(nil)

// collectChunks drains an agent stream into accumulated text and the
// first error, if any.
func collectChunks(ch <-chan AgentChunk) (string, error) {
	text := ""
	for chunk := range ch {
		if chunk.Err != nil {
			return text, chunk.Err
		}
		text += chunk.Text
	}
	return text, nil
}
