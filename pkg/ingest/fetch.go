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
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// FetcherConfig configures document downloads.
type FetcherConfig struct {
	// Timeout for the whole download (default: 120s). Filings can be
	// large PDFs.
	Timeout time.Duration

	// MaxBytes limits download size (default: 256 MiB).
	MaxBytes int64
}

// Fetcher downloads documents to temporary files.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a document fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 256 << 20
	}
	return &Fetcher{
		client:   &http.Client{Timeout: cfg.Timeout},
		maxBytes: cfg.MaxBytes,
	}
}

// Fetch downloads the URL to a temporary file and returns its path plus a
// cleanup function. Non-2xx responses are errors.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("download failed with status %d for %s", resp.StatusCode, url)
	}

	tmp, err := os.CreateTemp("", "finsight-doc-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, f.maxBytes+1))
	closeErr := tmp.Close()
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write download: %w", err)
	}
	if closeErr != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	if n > f.maxBytes {
		cleanup()
		return "", nil, fmt.Errorf("document exceeds size limit of %d bytes", f.maxBytes)
	}

	return tmp.Name(), cleanup, nil
}
