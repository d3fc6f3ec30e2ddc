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

// Package utils carries small shared helpers.
package utils

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used when a model has no registered encoding.
const fallbackEncoding = "cl100k_base"

// TokenCounter counts tokens for a specific model.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter for the model, falling back to the
// cl100k_base encoding for unknown models.
func NewTokenCounter(model string) *TokenCounter {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		slog.Debug("No token encoding for model, using fallback",
			"model", model,
			"encoding", fallbackEncoding)
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			enc = nil
		}
	}
	return &TokenCounter{enc: enc}
}

// Count returns the token count of text. When no encoding is available
// the count is approximated at four characters per token.
func (c *TokenCounter) Count(text string) int {
	if c.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}
