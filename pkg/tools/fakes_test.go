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

package tools

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finsightai/finsight/pkg/index"
	"github.com/finsightai/finsight/pkg/llm"
	"github.com/finsightai/finsight/pkg/schema"
	"github.com/finsightai/finsight/pkg/vector"
)

// scriptedLLM returns canned completions in order and records every
// request. Streaming is unused by the tool tier.
type scriptedLLM struct {
	mu          sync.Mutex
	completions []string
	requests    []*llm.Request
}

func (p *scriptedLLM) Name() string { return "scripted" }

func (p *scriptedLLM) Generate(_ context.Context, req *llm.Request) (*llm.Completion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	reqCopy := *req
	p.requests = append(p.requests, &reqCopy)

	if len(p.completions) == 0 {
		return nil, fmt.Errorf("scripted completions exhausted")
	}
	text := p.completions[0]
	p.completions = p.completions[1:]
	return &llm.Completion{Text: text, FinishReason: "stop"}, nil
}

func (p *scriptedLLM) GenerateStreaming(context.Context, *llm.Request) (<-chan llm.StreamChunk, error) {
	return nil, fmt.Errorf("scripted LLM has no streaming mode")
}

func (p *scriptedLLM) Close() error { return nil }

func (p *scriptedLLM) recordedRequests() []*llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*llm.Request(nil), p.requests...)
}

var _ llm.Provider = (*scriptedLLM)(nil)

// recordedEvent is one captured emitter call.
type recordedEvent struct {
	id      string
	source  schema.SubProcessSource
	payload EventPayload
	isStart bool
}

// recordingEmitter captures lifecycle events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
	nextID int
}

func (e *recordingEmitter) Start(source schema.SubProcessSource, payload EventPayload) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := fmt.Sprintf("event-%d", e.nextID)
	e.events = append(e.events, recordedEvent{id: id, source: source, payload: payload, isStart: true})
	return id
}

func (e *recordingEmitter) End(eventID string, source schema.SubProcessSource, payload EventPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{id: eventID, source: source, payload: payload, isStart: false})
}

func (e *recordingEmitter) recorded() []recordedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]recordedEvent(nil), e.events...)
}

func (e *recordingEmitter) bySource(source schema.SubProcessSource) []recordedEvent {
	var out []recordedEvent
	for _, ev := range e.recorded() {
		if ev.source == source {
			out = append(out, ev)
		}
	}
	return out
}

var _ Emitter = (*recordingEmitter)(nil)

// staticEmbedder embeds every text to the same vector, so retrieval
// ordering is driven purely by what was stored.
type staticEmbedder struct{}

func (staticEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (e staticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = e.Embed(ctx, texts[i])
	}
	return out, nil
}

func (staticEmbedder) Dimension() int { return 4 }
func (staticEmbedder) Model() string  { return "static" }
func (staticEmbedder) Close() error   { return nil }

// noopMaterializer satisfies the index store without touching storage.
type noopMaterializer struct{}

func (noopMaterializer) IngestDocument(context.Context, schema.Document) error { return nil }

// seededChunk is one pre-stored retrievable chunk.
type seededChunk struct {
	id         string
	documentID string
	pageLabel  int
	text       string
}

// newTestIndices builds real per-document indices over an in-memory
// vector store, pre-seeded with the given chunks.
func newTestIndices(t *testing.T, docs []schema.Document, chunks []seededChunk) map[string]*index.Index {
	t.Helper()

	provider, err := vector.NewChromemProvider(vector.ChromemConfig{})
	require.NoError(t, err)

	sc, err := index.NewStorageContext(index.StorageContextConfig{
		Provider:  provider,
		DataDir:   t.TempDir(),
		Namespace: "tools-test",
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, provider.CreateCollection(ctx, sc.Collection, 4))

	items := make([]vector.Item, 0, len(chunks))
	for _, c := range chunks {
		items = append(items, vector.Item{
			ID:      c.id,
			Vector:  []float32{1, 0, 0, 0},
			Content: c.text,
			Metadata: map[string]any{
				"db_document_id": c.documentID,
				"page_label":     c.pageLabel,
			},
		})
	}
	require.NoError(t, provider.Upsert(ctx, sc.Collection, items))

	store, err := index.NewStore(sc, noopMaterializer{}, staticEmbedder{})
	require.NoError(t, err)

	indices, err := store.LoadOrBuild(ctx, docs)
	require.NoError(t, err)
	return indices
}

// secDocument builds a document carrying SEC filing metadata.
func secDocument(id, name, ticker string, docType schema.SecDocumentType, year, quarter int) schema.Document {
	return schema.Document{
		ID:  id,
		URL: "https://example.com/" + id + ".pdf",
		MetadataMap: map[string]any{
			schema.DocumentMetadataKeySECDocument: map[string]any{
				"company_name":   name,
				"company_ticker": ticker,
				"doc_type":       string(docType),
				"year":           year,
				"quarter":        quarter,
			},
		},
	}
}
