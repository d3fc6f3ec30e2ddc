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

// Package tools builds the query tool hierarchy for a conversation.
//
// The bottom tier is one citation retrieval tool per document (named by
// the document id) plus, for SEC filings, one structured-data API tool
// under the same name. The middle tier is a pair of sub-question engines
// that decompose a question across the per-document tools. The top tier
// is the fixed qualitative/quantitative tool pair handed to the agent.
package tools

import (
	"context"

	"github.com/finsightai/finsight/pkg/index"
	"github.com/finsightai/finsight/pkg/schema"
)

// Response is the result of a tool query.
type Response struct {
	// Text is the synthesized answer.
	Text string

	// Sources are the citation chunks backing the answer.
	Sources []index.SourceNode
}

// QueryTool is a named, described query surface scoped to one document or
// one composite engine.
type QueryTool interface {
	// Name returns the tool name. Document-scoped tools are named by
	// their document id so tool invocations correlate 1:1 with source
	// documents.
	Name() string

	// Description returns the prose description shown to the routing
	// model.
	Description() string

	// Query answers a question using this tool's scope.
	Query(ctx context.Context, q string) (*Response, error)
}

// Emitter receives pipeline lifecycle events while tools execute. Start
// and End calls for the same step share the returned event id.
type Emitter interface {
	// Start records the beginning of a pipeline step and returns its
	// event id.
	Start(source schema.SubProcessSource, payload EventPayload) string

	// End records the completion of the step started under eventID.
	End(eventID string, source schema.SubProcessSource, payload EventPayload)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Start(schema.SubProcessSource, EventPayload) string { return "" }

func (NopEmitter) End(string, schema.SubProcessSource, EventPayload) {}

var _ Emitter = NopEmitter{}
