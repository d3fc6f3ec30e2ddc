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

package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/finsightai/finsight/pkg/embedder"
	"github.com/finsightai/finsight/pkg/ingest"
	"github.com/finsightai/finsight/pkg/observability"
	"github.com/finsightai/finsight/pkg/schema"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 3

// SourceNode is one retrieved chunk with its provenance.
type SourceNode struct {
	ID         string
	Text       string
	Score      float32
	DocumentID string
	PageLabel  int
}

// Index retrieves chunks for a single document.
type Index struct {
	store      *Store
	documentID string
}

// DocumentID returns the document this index serves.
func (ix *Index) DocumentID() string {
	return ix.documentID
}

// Retrieve returns the topK most similar chunks of this document. Only
// chunks belonging to the index's document are considered.
func (ix *Index) Retrieve(ctx context.Context, query string, topK int) ([]SourceNode, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	vec, err := ix.store.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := ix.store.sc.Provider.SearchWithFilter(ctx, ix.store.sc.Collection, vec, topK, map[string]any{
		ingest.MetadataKeyDocumentID: ix.documentID,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval failed for document %s: %w", ix.documentID, err)
	}

	nodes := make([]SourceNode, 0, len(results))
	for _, r := range results {
		nodes = append(nodes, SourceNode{
			ID:         r.ID,
			Text:       r.Content,
			Score:      r.Score,
			DocumentID: ix.documentID,
			PageLabel:  metadataInt(r.Metadata, ingest.MetadataKeyPageLabel),
		})
	}
	return nodes, nil
}

// Materializer turns a document into stored vector chunks. Implemented
// by ingest.Service.
type Materializer interface {
	IngestDocument(ctx context.Context, doc schema.Document) error
}

// Store builds and loads per-document indices over one storage context.
type Store struct {
	sc       *StorageContext
	ingester Materializer
	embedder embedder.Embedder
}

// NewStore creates an index store.
func NewStore(sc *StorageContext, ingester Materializer, emb embedder.Embedder) (*Store, error) {
	if sc == nil {
		return nil, fmt.Errorf("index: storage context is required")
	}
	if ingester == nil {
		return nil, fmt.Errorf("index: ingester is required")
	}
	if emb == nil {
		return nil, fmt.Errorf("index: embedder is required")
	}
	return &Store{sc: sc, ingester: ingester, embedder: emb}, nil
}

// LoadOrBuild returns one index per document, keyed by document id. The
// result always has exactly the requested key set.
//
// When no manifest exists yet, indices for all documents are built and
// persisted. When a manifest exists but any requested document is missing
// from it, everything requested is rebuilt from scratch; partially stale
// state is not trusted.
func (s *Store) LoadOrBuild(ctx context.Context, docs []schema.Document) (map[string]*Index, error) {
	m, err := s.sc.LoadManifest()
	switch {
	case errors.Is(err, ErrManifestNotFound):
		slog.Info("No persisted indices found, building",
			"documents", len(docs))
		return s.buildAll(ctx, &Manifest{Documents: make(map[string]ManifestEntry)}, docs)

	case err != nil:
		slog.Warn("Failed to load index manifest, rebuilding from scratch",
			"error", err)
		observability.IndexRebuildsTotal.Inc()
		return s.buildAll(ctx, &Manifest{Documents: make(map[string]ManifestEntry)}, docs)
	}

	missing := false
	for _, doc := range docs {
		if _, ok := m.Documents[doc.ID]; !ok {
			missing = true
			break
		}
	}
	if missing {
		slog.Warn("Persisted indices incomplete for conversation, rebuilding",
			"documents", len(docs))
		observability.IndexRebuildsTotal.Inc()
		return s.buildAll(ctx, m, docs)
	}

	indices := make(map[string]*Index, len(docs))
	for _, doc := range docs {
		indices[doc.ID] = &Index{store: s, documentID: doc.ID}
	}
	return indices, nil
}

// buildAll ingests every document and persists the updated manifest.
func (s *Store) buildAll(ctx context.Context, m *Manifest, docs []schema.Document) (map[string]*Index, error) {
	ctx, span := observability.Tracer().Start(ctx, "index.buildAll")
	defer span.End()

	indices := make(map[string]*Index, len(docs))

	for _, doc := range docs {
		start := time.Now()
		if err := s.ingester.IngestDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to build index for document %s: %w", doc.ID, err)
		}
		slog.Info("Built index",
			"document_id", doc.ID,
			"took", time.Since(start))
		observability.IndexBuildsTotal.Inc()

		m.Documents[doc.ID] = ManifestEntry{IngestedAt: time.Now()}
		indices[doc.ID] = &Index{store: s, documentID: doc.ID}
	}

	if err := s.sc.SaveManifest(m); err != nil {
		return nil, err
	}
	return indices, nil
}

// metadataInt reads an int-valued metadata entry; providers may return
// the value as a string, int64, or float64.
func metadataInt(metadata map[string]any, key string) int {
	switch v := metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
