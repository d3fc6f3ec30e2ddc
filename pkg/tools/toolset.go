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

package tools

import (
	"fmt"

	"github.com/finsightai/finsight/pkg/index"
	"github.com/finsightai/finsight/pkg/llm"
	"github.com/finsightai/finsight/pkg/schema"
)

// Top-level tool names. The agent routes every question through one of
// these two.
const (
	QualitativeEngineName  = "qualitative_question_engine"
	QuantitativeEngineName = "quantitative_question_engine"
)

const qualitativeEngineDescription = `A query engine that can answer qualitative questions about a set of SEC financial documents that the user pre-selected for the conversation.
Any questions about company-related headwinds, tailwinds, risks, sentiments, or administrative information should be asked here.`

const quantitativeEngineDescription = `A query engine that can answer quantitative questions about a set of SEC financial documents that the user pre-selected for the conversation.
Any questions about company-related financials or other metrics should be asked here.`

// BuildTitleForDocument renders the human-readable title used in the
// system prompt, e.g. "ACME Inc. (ACME) 10-Q (2023 Q1)".
func BuildTitleForDocument(doc schema.Document) string {
	if meta, ok := doc.SecMetadata(); ok {
		return fmt.Sprintf("%s (%s) %s (%s)",
			meta.CompanyName, meta.CompanyTicker, meta.DocType, meta.TimePeriod())
	}
	return "No Title"
}

// BuildDescriptionForDocument renders the tool description for a
// document's citation retrieval tool.
func BuildDescriptionForDocument(doc schema.Document) string {
	if meta, ok := doc.SecMetadata(); ok {
		return fmt.Sprintf(
			"A SEC %s filing describing the financials of %s (%s) for the %s time period.",
			meta.DocType, meta.CompanyName, meta.CompanyTicker, meta.TimePeriod())
	}
	return "A document containing useful information that the user pre-selected to discuss with the assistant."
}

// ToolsetConfig carries the collaborators needed to compose a
// conversation's tool hierarchy.
type ToolsetConfig struct {
	LLM     llm.Provider
	Emitter Emitter

	// FilingsAPIBaseURL is the structured-data API used by quantitative
	// tools.
	FilingsAPIBaseURL string

	// CitationTopK overrides retrieval depth (default 3).
	CitationTopK int

	// Verbose logs sub-question decomposition detail.
	Verbose bool
}

// BuildToolset composes the full tool hierarchy for a conversation and
// returns the two top-level tools handed to the agent.
//
// Both composite engines exist even when a conversation has no documents;
// they simply hold no child tools and report that nothing is available.
func BuildToolset(docs []schema.Document, indices map[string]*index.Index, cfg ToolsetConfig) ([]QueryTool, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("tools: LLM provider is required")
	}
	if cfg.Emitter == nil {
		cfg.Emitter = NopEmitter{}
	}

	docTitles := DocumentTitlesBlock(docs)

	var citationTools []QueryTool
	for _, doc := range docs {
		ix, ok := indices[doc.ID]
		if !ok {
			return nil, fmt.Errorf("tools: no index for document %s", doc.ID)
		}
		tool, err := NewCitationQueryTool(doc, ix, cfg.LLM, cfg.Emitter, cfg.CitationTopK)
		if err != nil {
			return nil, err
		}
		citationTools = append(citationTools, tool)
	}

	var apiTools []QueryTool
	for _, doc := range docs {
		if _, ok := doc.SecMetadata(); !ok {
			continue
		}
		tool, err := NewFilingsAPITool(doc, cfg.FilingsAPIBaseURL, cfg.Emitter)
		if err != nil {
			return nil, err
		}
		apiTools = append(apiTools, tool)
	}

	qualitative, err := NewSubQuestionEngine(SubQuestionEngineConfig{
		Name:        QualitativeEngineName,
		Description: qualitativeEngineDescription,
		Tools:       citationTools,
		LLM:         cfg.LLM,
		Emitter:     cfg.Emitter,
		DocTitles:   docTitles,
		Verbose:     cfg.Verbose,
	})
	if err != nil {
		return nil, err
	}

	quantitative, err := NewSubQuestionEngine(SubQuestionEngineConfig{
		Name:        QuantitativeEngineName,
		Description: quantitativeEngineDescription,
		Tools:       apiTools,
		LLM:         cfg.LLM,
		Emitter:     cfg.Emitter,
		DocTitles:   docTitles,
		Verbose:     cfg.Verbose,
	})
	if err != nil {
		return nil, err
	}

	return []QueryTool{qualitative, quantitative}, nil
}

// DocumentTitlesBlock renders the bulleted title list for prompts, or the
// sentinel line when the conversation has no documents.
func DocumentTitlesBlock(docs []schema.Document) string {
	if len(docs) == 0 {
		return "No documents selected."
	}
	out := ""
	for i, doc := range docs {
		if i > 0 {
			out += "\n"
		}
		out += "- " + BuildTitleForDocument(doc)
	}
	return out
}
