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

// Package vector abstracts the vector store used for filing retrieval.
//
// Two providers are supported: chromem (embedded, file-persisted; the
// zero-config default) and qdrant (external server over gRPC).
package vector

import "context"

// Item is one chunk to store: a pre-computed embedding plus the chunk
// text and its metadata.
type Item struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata map[string]any
}

// Result is one retrieval hit.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
}

// Provider is the interface for vector stores.
//
// Embeddings are always computed externally; providers only store and
// search pre-computed vectors.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// CreateCollection ensures a collection exists with the given
	// vector dimension. Creating an existing collection is a no-op.
	CreateCollection(ctx context.Context, collection string, dimension int) error

	// Upsert adds or replaces items in a collection.
	Upsert(ctx context.Context, collection string, items []Item) error

	// SearchWithFilter returns the topK most similar items whose
	// metadata matches every filter entry. A nil filter matches all.
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// DeleteByFilter removes all items whose metadata matches the filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// DeleteCollection removes a collection and all its items.
	DeleteCollection(ctx context.Context, collection string) error

	// Close flushes and releases resources.
	Close() error
}
