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

// Package config holds runtime settings for the FinSight backend.
//
// Settings are read from the environment (with optional .env files); the
// surrounding deployment owns how that environment is populated.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Settings contains all runtime configuration.
type Settings struct {
	// OpenAIAPIKey authenticates chat, embedding, and sub-question calls.
	OpenAIAPIKey string `yaml:"openai_api_key"`

	// OpenAIBaseURL overrides the API host (default: https://api.openai.com/v1).
	OpenAIBaseURL string `yaml:"openai_base_url,omitempty"`

	// ChatModel is the conversational model (default: gpt-4o-mini).
	ChatModel string `yaml:"chat_model,omitempty"`

	// EmbeddingModel produces vectors for indexing and retrieval
	// (default: text-embedding-3-small).
	EmbeddingModel string `yaml:"embedding_model,omitempty"`

	// EmbeddingDimension is the vector size (default: 1536).
	EmbeddingDimension int `yaml:"embedding_dimension,omitempty"`

	// DataDir is the local root for persisted indices (default: ./data).
	DataDir string `yaml:"data_dir,omitempty"`

	// StorageNamespace groups a deployment's persisted indices
	// (default: finsight).
	StorageNamespace string `yaml:"storage_namespace,omitempty"`

	// VectorProvider selects the vector backend: "chromem" or "qdrant"
	// (default: chromem).
	VectorProvider string `yaml:"vector_provider,omitempty"`

	// QdrantHost and QdrantPort locate the Qdrant server when
	// VectorProvider is "qdrant".
	QdrantHost string `yaml:"qdrant_host,omitempty"`
	QdrantPort int    `yaml:"qdrant_port,omitempty"`

	// FilingsAPIBaseURL is the external structured-data API used by the
	// quantitative tools (default: https://api.finsight.ai/filings).
	FilingsAPIBaseURL string `yaml:"filings_api_base_url,omitempty"`

	// HistoryTokenLimit bounds reconstructed chat history (default: 3000).
	HistoryTokenLimit int `yaml:"history_token_limit,omitempty"`

	// RequestTimeout bounds individual provider HTTP calls (default: 60s).
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`

	// OTLPEndpoint enables OTLP trace export when non-empty.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`

	// LogLevel is debug, info, warn, or error (default: info).
	LogLevel string `yaml:"log_level,omitempty"`

	// Verbose enables prompt and sub-question debug logging.
	Verbose bool `yaml:"verbose,omitempty"`
}

// Load reads settings from the environment, after loading .env files.
func Load() (*Settings, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	s := &Settings{
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		ChatModel:          os.Getenv("FINSIGHT_CHAT_MODEL"),
		EmbeddingModel:     os.Getenv("FINSIGHT_EMBEDDING_MODEL"),
		EmbeddingDimension: intEnv("FINSIGHT_EMBEDDING_DIMENSION"),
		DataDir:            os.Getenv("FINSIGHT_DATA_DIR"),
		StorageNamespace:   os.Getenv("FINSIGHT_STORAGE_NAMESPACE"),
		VectorProvider:     os.Getenv("FINSIGHT_VECTOR_PROVIDER"),
		QdrantHost:         os.Getenv("FINSIGHT_QDRANT_HOST"),
		QdrantPort:         intEnv("FINSIGHT_QDRANT_PORT"),
		FilingsAPIBaseURL:  os.Getenv("FINSIGHT_FILINGS_API_URL"),
		HistoryTokenLimit:  intEnv("FINSIGHT_HISTORY_TOKEN_LIMIT"),
		OTLPEndpoint:       os.Getenv("FINSIGHT_OTLP_ENDPOINT"),
		LogLevel:           os.Getenv("FINSIGHT_LOG_LEVEL"),
		Verbose:            boolEnv("FINSIGHT_VERBOSE"),
	}

	s.SetDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetDefaults applies default values.
func (s *Settings) SetDefaults() {
	if s.OpenAIBaseURL == "" {
		s.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if s.ChatModel == "" {
		s.ChatModel = "gpt-4o-mini"
	}
	if s.EmbeddingModel == "" {
		s.EmbeddingModel = "text-embedding-3-small"
	}
	if s.EmbeddingDimension <= 0 {
		s.EmbeddingDimension = 1536
	}
	if s.DataDir == "" {
		s.DataDir = "data"
	}
	if s.StorageNamespace == "" {
		s.StorageNamespace = "finsight"
	}
	if s.VectorProvider == "" {
		s.VectorProvider = "chromem"
	}
	if s.QdrantHost == "" {
		s.QdrantHost = "localhost"
	}
	if s.QdrantPort == 0 {
		s.QdrantPort = 6334
	}
	if s.FilingsAPIBaseURL == "" {
		s.FilingsAPIBaseURL = "https://api.finsight.ai/filings"
	}
	if s.HistoryTokenLimit <= 0 {
		s.HistoryTokenLimit = 3000
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = 60 * time.Second
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
}

// Validate checks the configuration for inconsistencies.
func (s *Settings) Validate() error {
	switch s.VectorProvider {
	case "chromem", "qdrant":
	default:
		return fmt.Errorf("unknown vector provider: %q", s.VectorProvider)
	}
	if s.HistoryTokenLimit < 0 {
		return fmt.Errorf("history token limit must be positive, got %d", s.HistoryTokenLimit)
	}
	return nil
}

func intEnv(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func boolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return false
	}
	return v
}
