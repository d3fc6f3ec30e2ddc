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

package chat

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/finsightai/finsight/pkg/config"
	"github.com/finsightai/finsight/pkg/embedder"
	"github.com/finsightai/finsight/pkg/index"
	"github.com/finsightai/finsight/pkg/ingest"
	"github.com/finsightai/finsight/pkg/llm"
	"github.com/finsightai/finsight/pkg/schema"
	"github.com/finsightai/finsight/pkg/tools"
	"github.com/finsightai/finsight/pkg/utils"
	"github.com/finsightai/finsight/pkg/vector"
)

// EngineBuilder assembles a fresh chat agent per request from a
// conversation's documents and history. The LLM provider, embedder, and
// token counter are shared across requests; the storage context comes
// from the process-wide cache.
type EngineBuilder struct {
	cfg      *config.Settings
	provider llm.Provider
	emb      embedder.Embedder
	counter  *utils.TokenCounter
}

// NewEngineBuilder wires the long-lived collaborators from settings.
func NewEngineBuilder(cfg *config.Settings) (*EngineBuilder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("chat: settings are required")
	}

	provider, err := llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.ChatModel,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	emb, err := embedder.NewOpenAIEmbedder(embedder.OpenAIConfig{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.OpenAIBaseURL,
		Model:     cfg.EmbeddingModel,
		Dimension: cfg.EmbeddingDimension,
		Timeout:   cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	return &EngineBuilder{
		cfg:      cfg,
		provider: provider,
		emb:      emb,
		counter:  utils.NewTokenCounter(cfg.ChatModel),
	}, nil
}

// NewEngineBuilderWith creates a builder from pre-built collaborators.
// Used by tests and callers that inject their own providers.
func NewEngineBuilderWith(cfg *config.Settings, provider llm.Provider, emb embedder.Embedder) (*EngineBuilder, error) {
	if cfg == nil {
		return nil, fmt.Errorf("chat: settings are required")
	}
	if provider == nil {
		return nil, fmt.Errorf("chat: LLM provider is required")
	}
	if emb == nil {
		return nil, fmt.Errorf("chat: embedder is required")
	}
	return &EngineBuilder{
		cfg:      cfg,
		provider: provider,
		emb:      emb,
		counter:  utils.NewTokenCounter(cfg.ChatModel),
	}, nil
}

// storageContext returns the cached storage context, building provider
// and namespace on first use or after TTL expiry.
func (b *EngineBuilder) storageContext() (*index.StorageContext, error) {
	return index.GetStorageContext(func() (*index.StorageContext, error) {
		providerCfg := &vector.ProviderConfig{
			Type: vector.ProviderType(b.cfg.VectorProvider),
			Chromem: &vector.ChromemConfig{
				PersistPath: filepath.Join(b.cfg.DataDir, b.cfg.StorageNamespace),
			},
			Qdrant: &vector.QdrantConfig{
				Host: b.cfg.QdrantHost,
				Port: b.cfg.QdrantPort,
			},
		}
		vp, err := vector.NewProvider(providerCfg)
		if err != nil {
			return nil, err
		}
		return index.NewStorageContext(index.StorageContextConfig{
			Provider:  vp,
			DataDir:   b.cfg.DataDir,
			Namespace: b.cfg.StorageNamespace,
		})
	})
}

// BuildChatEngine builds the agent for one conversation: per-document
// indices, the tool hierarchy, reconstructed history, and the system
// prompt with document titles and the current date.
func (b *EngineBuilder) BuildChatEngine(ctx context.Context, conversation schema.Conversation, emitter *Emitter) (*Agent, error) {
	sc, err := b.storageContext()
	if err != nil {
		return nil, fmt.Errorf("failed to get storage context: %w", err)
	}

	ingester, err := ingest.NewService(
		ingest.NewFetcher(ingest.FetcherConfig{}),
		b.emb,
		sc.Provider,
		sc.Collection,
		ingest.ChunkerConfig{},
	)
	if err != nil {
		return nil, err
	}

	store, err := index.NewStore(sc, ingester, b.emb)
	if err != nil {
		return nil, err
	}

	indices, err := store.LoadOrBuild(ctx, conversation.Documents)
	if err != nil {
		return nil, fmt.Errorf("failed to build document indices: %w", err)
	}

	var toolEmitter tools.Emitter = tools.NopEmitter{}
	if emitter != nil {
		toolEmitter = emitter
	}

	topTools, err := tools.BuildToolset(conversation.Documents, indices, tools.ToolsetConfig{
		LLM:               b.provider,
		Emitter:           toolEmitter,
		FilingsAPIBaseURL: b.cfg.FilingsAPIBaseURL,
		Verbose:           b.cfg.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build toolset: %w", err)
	}

	history := GetChatHistory(conversation.Messages)
	history = TrimHistoryToBudget(history, b.counter, b.cfg.HistoryTokenLimit)

	systemPrompt := fmt.Sprintf(SystemMessageTemplate,
		tools.DocumentTitlesBlock(conversation.Documents),
		time.Now().UTC().Format("2006-01-02"))

	return NewAgent(b.provider, topTools, systemPrompt, history, toolEmitter)
}
