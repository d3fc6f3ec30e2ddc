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
	"fmt"
	"strings"
	"unicode"
)

// ChunkerConfig configures chunking behavior.
//
// Overlap preserves context at chunk boundaries, which matters for
// retrieval when relevant information spans two chunks.
type ChunkerConfig struct {
	// Size is the target chunk size in characters (default: 1000).
	Size int `yaml:"size,omitempty"`

	// Overlap between consecutive chunks in characters (default: 200).
	Overlap int `yaml:"overlap,omitempty"`
}

// SetDefaults applies default values.
func (c *ChunkerConfig) SetDefaults() {
	if c.Size <= 0 {
		c.Size = 1000
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap == 0 {
		c.Overlap = 200
	}
}

// Validate checks the configuration for errors.
func (c *ChunkerConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("overlap must be non-negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("overlap (%d) must be less than size (%d)", c.Overlap, c.Size)
	}
	return nil
}

// ChunkPages splits extracted pages into overlapping chunks. Chunks never
// cross page boundaries, so each chunk carries a single page label.
func ChunkPages(documentID string, pages []Page, cfg ChunkerConfig) []Chunk {
	cfg.SetDefaults()

	var chunks []Chunk
	for _, page := range pages {
		for _, text := range splitOverlapping(page.Text, cfg.Size, cfg.Overlap) {
			chunks = append(chunks, Chunk{
				ID:         newChunkID(),
				DocumentID: documentID,
				PageLabel:  page.Label,
				Text:       text,
			})
		}
	}
	return chunks
}

// splitOverlapping splits text into windows of roughly size characters
// with the given overlap, breaking on whitespace where possible.
func splitOverlapping(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Pull the cut back to the nearest whitespace so words
			// stay intact; give up after scanning a fifth of the
			// window.
			limit := end - size/5
			for end > limit && !unicode.IsSpace(runes[end-1]) {
				end--
			}
			if end == limit {
				end = start + size
			}
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}

		if end == len(runes) {
			break
		}
		start = end - overlap
		if start < 0 {
			start = 0
		}
	}

	return out
}
