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

// Package ingest turns filing documents into indexed vector chunks.
//
// The pipeline is fetch (download the PDF), parse (extract per-page text),
// chunk (overlapping character windows that never cross page boundaries),
// embed, and upsert into the vector store. Every stored chunk carries the
// owning document id and its page label so retrieval can be filtered per
// document and answers can cite pages.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/finsightai/finsight/pkg/embedder"
	"github.com/finsightai/finsight/pkg/schema"
	"github.com/finsightai/finsight/pkg/vector"
)

// Metadata keys attached to every stored chunk.
const (
	MetadataKeyDocumentID = "db_document_id"
	MetadataKeyPageLabel  = "page_label"
)

// embedBatchSize bounds the number of chunks sent per embedding call.
const embedBatchSize = 64

// Page is the extracted text of one PDF page.
type Page struct {
	Label int
	Text  string
}

// Chunk is one indexable window of page text.
type Chunk struct {
	ID         string
	DocumentID string
	PageLabel  int
	Text       string
}

// Service ingests documents into a vector collection.
type Service struct {
	fetcher    *Fetcher
	embedder   embedder.Embedder
	provider   vector.Provider
	collection string
	chunkCfg   ChunkerConfig
}

// NewService creates an ingestion service writing to the given collection.
func NewService(fetcher *Fetcher, emb embedder.Embedder, provider vector.Provider, collection string, chunkCfg ChunkerConfig) (*Service, error) {
	if fetcher == nil {
		fetcher = NewFetcher(FetcherConfig{})
	}
	if emb == nil {
		return nil, fmt.Errorf("ingest: embedder is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("ingest: vector provider is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("ingest: collection name is required")
	}

	chunkCfg.SetDefaults()
	if err := chunkCfg.Validate(); err != nil {
		return nil, err
	}

	return &Service{
		fetcher:    fetcher,
		embedder:   emb,
		provider:   provider,
		collection: collection,
		chunkCfg:   chunkCfg,
	}, nil
}

// IngestDocument downloads, parses, chunks, embeds, and stores one
// document. Re-ingesting a document first removes its previous chunks.
func (s *Service) IngestDocument(ctx context.Context, doc schema.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("ingest: document id is required")
	}
	if doc.URL == "" {
		return fmt.Errorf("ingest: document %s has no URL", doc.ID)
	}

	path, cleanup, err := s.fetcher.Fetch(ctx, doc.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch document %s: %w", doc.ID, err)
	}
	defer cleanup()

	pages, err := ParsePDF(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to parse document %s: %w", doc.ID, err)
	}

	chunks := ChunkPages(doc.ID, pages, s.chunkCfg)
	if len(chunks) == 0 {
		return fmt.Errorf("document %s produced no indexable text", doc.ID)
	}

	slog.Info("Ingesting document",
		"document_id", doc.ID,
		"pages", len(pages),
		"chunks", len(chunks))

	if err := s.provider.CreateCollection(ctx, s.collection, s.embedder.Dimension()); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	// Drop stale chunks from an earlier ingest of the same document.
	if err := s.provider.DeleteByFilter(ctx, s.collection, map[string]any{
		MetadataKeyDocumentID: doc.ID,
	}); err != nil {
		slog.Warn("Failed to delete stale chunks before ingest",
			"document_id", doc.ID,
			"error", err)
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks for document %s: %w", doc.ID, err)
		}

		items := make([]vector.Item, len(batch))
		for i, c := range batch {
			items[i] = vector.Item{
				ID:      c.ID,
				Vector:  vectors[i],
				Content: c.Text,
				Metadata: map[string]any{
					MetadataKeyDocumentID: c.DocumentID,
					MetadataKeyPageLabel:  c.PageLabel,
				},
			}
		}

		if err := s.provider.Upsert(ctx, s.collection, items); err != nil {
			return fmt.Errorf("failed to store chunks for document %s: %w", doc.ID, err)
		}
	}

	return nil
}

// DeleteDocument removes all stored chunks for a document.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	return s.provider.DeleteByFilter(ctx, s.collection, map[string]any{
		MetadataKeyDocumentID: documentID,
	})
}

// newChunkID returns a fresh chunk identifier.
func newChunkID() string {
	return uuid.NewString()
}
