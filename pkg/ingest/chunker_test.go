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
	"strings"
	"testing"
)

func TestChunkerConfig_SetDefaults(t *testing.T) {
	cfg := ChunkerConfig{}
	cfg.SetDefaults()
	if cfg.Size != 1000 {
		t.Errorf("expected default size 1000, got %d", cfg.Size)
	}
	if cfg.Overlap != 200 {
		t.Errorf("expected default overlap 200, got %d", cfg.Overlap)
	}
}

func TestChunkerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ChunkerConfig
		wantErr bool
	}{
		{"valid", ChunkerConfig{Size: 1000, Overlap: 200}, false},
		{"zero size", ChunkerConfig{Size: 0, Overlap: 0}, true},
		{"negative overlap", ChunkerConfig{Size: 100, Overlap: -1}, true},
		{"overlap equals size", ChunkerConfig{Size: 100, Overlap: 100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestChunkPages_EmptyInput(t *testing.T) {
	chunks := ChunkPages("doc-1", nil, ChunkerConfig{})
	if len(chunks) != 0 {
		t.Errorf("expected no chunks, got %d", len(chunks))
	}

	chunks = ChunkPages("doc-1", []Page{{Label: 1, Text: "   "}}, ChunkerConfig{})
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for whitespace page, got %d", len(chunks))
	}
}

func TestChunkPages_ShortPage(t *testing.T) {
	chunks := ChunkPages("doc-1", []Page{{Label: 3, Text: "short page text"}}, ChunkerConfig{})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "short page text" {
		t.Errorf("unexpected chunk text: %q", chunks[0].Text)
	}
	if chunks[0].PageLabel != 3 {
		t.Errorf("expected page label 3, got %d", chunks[0].PageLabel)
	}
	if chunks[0].DocumentID != "doc-1" {
		t.Errorf("expected document id doc-1, got %q", chunks[0].DocumentID)
	}
	if chunks[0].ID == "" {
		t.Error("chunk id should be set")
	}
}

func TestChunkPages_NeverCrossesPageBoundaries(t *testing.T) {
	pages := []Page{
		{Label: 1, Text: strings.Repeat("alpha ", 50)},
		{Label: 2, Text: strings.Repeat("beta ", 50)},
	}

	chunks := ChunkPages("doc-1", pages, ChunkerConfig{Size: 100, Overlap: 20})
	if len(chunks) < 4 {
		t.Fatalf("expected multiple chunks per page, got %d", len(chunks))
	}

	for _, c := range chunks {
		switch c.PageLabel {
		case 1:
			if strings.Contains(c.Text, "beta") {
				t.Errorf("page 1 chunk contains page 2 text: %q", c.Text)
			}
		case 2:
			if strings.Contains(c.Text, "alpha") {
				t.Errorf("page 2 chunk contains page 1 text: %q", c.Text)
			}
		default:
			t.Errorf("unexpected page label %d", c.PageLabel)
		}
	}
}

func TestSplitOverlapping(t *testing.T) {
	t.Run("short text is one piece", func(t *testing.T) {
		out := splitOverlapping("hello world", 100, 20)
		if len(out) != 1 || out[0] != "hello world" {
			t.Errorf("unexpected pieces: %#v", out)
		}
	})

	t.Run("empty text yields nothing", func(t *testing.T) {
		if out := splitOverlapping("  \n ", 100, 20); out != nil {
			t.Errorf("expected nil, got %#v", out)
		}
	})

	t.Run("windows respect the size bound", func(t *testing.T) {
		text := strings.Repeat("word ", 200)
		out := splitOverlapping(text, 100, 20)
		if len(out) < 2 {
			t.Fatalf("expected multiple pieces, got %d", len(out))
		}
		for i, piece := range out {
			if n := len([]rune(piece)); n > 100 {
				t.Errorf("piece %d exceeds size: %d runes", i, n)
			}
		}
	})

	t.Run("consecutive windows overlap", func(t *testing.T) {
		text := strings.Repeat("word ", 200)
		out := splitOverlapping(text, 100, 20)
		joined := strings.Join(out, " ")
		// Every input word survives somewhere in the output.
		if !strings.Contains(joined, "word") {
			t.Fatal("content lost during splitting")
		}
		// Overlap duplicates text, so the total output is longer than
		// the trimmed input.
		total := 0
		for _, piece := range out {
			total += len(piece)
		}
		if total <= len(strings.TrimSpace(text)) {
			t.Errorf("expected overlap to duplicate content: %d <= %d", total, len(strings.TrimSpace(text)))
		}
	})

	t.Run("breaks on whitespace", func(t *testing.T) {
		text := strings.Repeat("abcde ", 100)
		out := splitOverlapping(text, 50, 10)
		for i, piece := range out {
			if strings.HasSuffix(piece, "abcd") || strings.HasSuffix(piece, "abc") {
				t.Errorf("piece %d cut mid-word: %q", i, piece)
			}
		}
	})

	t.Run("unbreakable text still advances", func(t *testing.T) {
		text := strings.Repeat("x", 500)
		out := splitOverlapping(text, 100, 20)
		if len(out) < 5 {
			t.Fatalf("expected about 6 pieces, got %d", len(out))
		}
		for i, piece := range out {
			if len(piece) > 100 {
				t.Errorf("piece %d exceeds size: %d", i, len(piece))
			}
		}
	})
}
