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

// Package index maintains per-document vector indices.
//
// A StorageContext pairs a vector provider with a manifest file recording
// which documents have been ingested. The Store builds one Index handle
// per conversation document, creating and persisting missing indices on
// demand.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/finsightai/finsight/pkg/vector"
)

// manifestFileName is the manifest file inside the namespace directory.
const manifestFileName = "manifest.json"

// ErrManifestNotFound reports that no manifest has been persisted yet.
var ErrManifestNotFound = errors.New("index manifest not found")

// ManifestEntry records one ingested document.
type ManifestEntry struct {
	Chunks     int       `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Manifest records which documents the collection holds.
type Manifest struct {
	Documents map[string]ManifestEntry `json:"documents"`
}

// StorageContext pairs a vector provider with the on-disk manifest for
// one storage namespace.
type StorageContext struct {
	Provider   vector.Provider
	Collection string

	dir string
	mu  sync.Mutex
}

// StorageContextConfig locates a storage namespace.
type StorageContextConfig struct {
	// Provider is the vector store backing the namespace.
	Provider vector.Provider

	// DataDir is the local root for persisted state.
	DataDir string

	// Namespace groups a deployment's indices; it doubles as the
	// collection name.
	Namespace string
}

// NewStorageContext creates a storage context, creating the namespace
// directory if needed.
func NewStorageContext(cfg StorageContextConfig) (*StorageContext, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("index: vector provider is required")
	}
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("index: data dir is required")
	}
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("index: namespace is required")
	}

	dir := filepath.Join(cfg.DataDir, cfg.Namespace)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &StorageContext{
		Provider:   cfg.Provider,
		Collection: cfg.Namespace,
		dir:        dir,
	}, nil
}

// LoadManifest reads the persisted manifest. Returns ErrManifestNotFound
// when none has been written yet.
func (sc *StorageContext) LoadManifest() (*Manifest, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(sc.dir, manifestFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrManifestNotFound
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.Documents == nil {
		m.Documents = make(map[string]ManifestEntry)
	}
	return &m, nil
}

// SaveManifest persists the manifest atomically.
func (sc *StorageContext) SaveManifest(m *Manifest) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := filepath.Join(sc.dir, manifestFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// Storage-context cache. Building a context touches the filesystem and,
// for external providers, the network, so handles are reused for a short
// window rather than rebuilt on every chat message.
var (
	storageContextTTL = 5 * time.Minute

	cacheMu       sync.Mutex
	cachedContext *StorageContext
	cachedAt      time.Time
)

// GetStorageContext returns a cached storage context, rebuilding it after
// the TTL expires. All callers share one handle per process.
func GetStorageContext(build func() (*StorageContext, error)) (*StorageContext, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if cachedContext != nil && time.Since(cachedAt) < storageContextTTL {
		return cachedContext, nil
	}

	sc, err := build()
	if err != nil {
		return nil, err
	}

	cachedContext = sc
	cachedAt = time.Now()
	slog.Debug("Built storage context", "collection", sc.Collection)
	return sc, nil
}

// InvalidateStorageContextCache drops the cached storage context so the
// next GetStorageContext call rebuilds it. Used after out-of-band index
// mutations, e.g. by the ingestion CLI and in tests.
func InvalidateStorageContextCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cachedContext = nil
	cachedAt = time.Time{}
}
