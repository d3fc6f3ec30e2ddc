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

package vector

import (
	"testing"
)

func TestProviderConfig_SetDefaults(t *testing.T) {
	cfg := &ProviderConfig{}
	cfg.SetDefaults()
	if cfg.Type != ProviderChromem {
		t.Errorf("expected default type chromem, got %q", cfg.Type)
	}
	if cfg.Chromem == nil {
		t.Error("expected chromem config to be initialized")
	}
}

func TestProviderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr bool
	}{
		{"chromem", ProviderConfig{Type: ProviderChromem}, false},
		{"qdrant with host", ProviderConfig{Type: ProviderQdrant, Qdrant: &QdrantConfig{Host: "localhost"}}, false},
		{"qdrant without config", ProviderConfig{Type: ProviderQdrant}, true},
		{"qdrant without host", ProviderConfig{Type: ProviderQdrant, Qdrant: &QdrantConfig{}}, true},
		{"empty type", ProviderConfig{}, true},
		{"unknown type", ProviderConfig{Type: "pinecone"}, true},
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

func TestNewProvider(t *testing.T) {
	t.Run("nil config falls back to in-memory chromem", func(t *testing.T) {
		p, err := NewProvider(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name() != "chromem" {
			t.Errorf("expected chromem provider, got %q", p.Name())
		}
	})

	t.Run("unknown type fails", func(t *testing.T) {
		_, err := NewProvider(&ProviderConfig{Type: "pinecone"})
		if err == nil {
			t.Fatal("expected error for unknown provider type")
		}
	})
}
