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

package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/finsightai/finsight/pkg/schema"
	"github.com/finsightai/finsight/pkg/vector"
)

// fixedEmbedder embeds everything to one vector.
type fixedEmbedder struct{}

func (fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (e fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = e.Embed(ctx, texts[i])
	}
	return out, nil
}

func (fixedEmbedder) Dimension() int { return 4 }
func (fixedEmbedder) Model() string  { return "fixed" }
func (fixedEmbedder) Close() error   { return nil }

func newMemoryProvider(t *testing.T) vector.Provider {
	t.Helper()
	p, err := vector.NewChromemProvider(vector.ChromemConfig{})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	return p
}

func TestNewService(t *testing.T) {
	provider := newMemoryProvider(t)

	if _, err := NewService(nil, fixedEmbedder{}, provider, "filings", ChunkerConfig{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := NewService(nil, nil, provider, "filings", ChunkerConfig{}); err == nil {
		t.Error("expected error for missing embedder")
	}
	if _, err := NewService(nil, fixedEmbedder{}, nil, "filings", ChunkerConfig{}); err == nil {
		t.Error("expected error for missing provider")
	}
	if _, err := NewService(nil, fixedEmbedder{}, provider, "", ChunkerConfig{}); err == nil {
		t.Error("expected error for missing collection")
	}
	if _, err := NewService(nil, fixedEmbedder{}, provider, "filings", ChunkerConfig{Size: 100, Overlap: 150}); err == nil {
		t.Error("expected error for invalid chunker config")
	}
}

func TestIngestDocument_Validation(t *testing.T) {
	svc, err := NewService(nil, fixedEmbedder{}, newMemoryProvider(t), "filings", ChunkerConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()

	if err := svc.IngestDocument(ctx, schema.Document{}); err == nil {
		t.Error("expected error for missing document id")
	}
	if err := svc.IngestDocument(ctx, schema.Document{ID: "doc-1"}); err == nil {
		t.Error("expected error for missing URL")
	} else if !strings.Contains(err.Error(), "no URL") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDeleteDocument(t *testing.T) {
	ctx := context.Background()
	provider := newMemoryProvider(t)

	if err := provider.CreateCollection(ctx, "filings", 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := provider.Upsert(ctx, "filings", []vector.Item{
		{
			ID:      "c1",
			Vector:  []float32{1, 0, 0, 0},
			Content: "chunk",
			Metadata: map[string]any{
				MetadataKeyDocumentID: "doc-1",
				MetadataKeyPageLabel:  1,
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc, err := NewService(nil, fixedEmbedder{}, provider, "filings", ChunkerConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.DeleteDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := provider.SearchWithFilter(ctx, "filings", []float32{1, 0, 0, 0}, 1, map[string]any{
		MetadataKeyDocumentID: "doc-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results after delete, got %d", len(results))
	}
}
