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
	"context"
	"fmt"
	"strings"

	"github.com/finsightai/finsight/pkg/index"
	"github.com/finsightai/finsight/pkg/llm"
	"github.com/finsightai/finsight/pkg/schema"
)

// CitationChunkSize is the character granularity of citation sources.
// Retrieved chunks are re-split at this size so citations point at small,
// quotable passages.
const CitationChunkSize = 512

const citationSynthPrompt = `Please provide an answer based solely on the provided sources. When referencing information from a source, cite the appropriate source(s) using their corresponding numbers. Every answer should include at least one source citation. Only cite a source when you are explicitly referencing it. If none of the sources are helpful, you should indicate that.
------
%s
------
Query: %s
Answer: `

// CitationQueryTool answers questions about a single document with
// citation-grade sources. Retrieval is restricted to the document's own
// chunks.
type CitationQueryTool struct {
	doc     schema.Document
	ix      *index.Index
	llm     llm.Provider
	emitter Emitter
	topK    int
}

// NewCitationQueryTool creates a citation tool for one document.
func NewCitationQueryTool(doc schema.Document, ix *index.Index, provider llm.Provider, emitter Emitter, topK int) (*CitationQueryTool, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("tools: document id is required")
	}
	if ix == nil {
		return nil, fmt.Errorf("tools: index is required for document %s", doc.ID)
	}
	if provider == nil {
		return nil, fmt.Errorf("tools: LLM provider is required")
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if topK <= 0 {
		topK = index.DefaultTopK
	}
	return &CitationQueryTool{
		doc:     doc,
		ix:      ix,
		llm:     provider,
		emitter: emitter,
		topK:    topK,
	}, nil
}

// Name returns the document id; the tool name and the document identity
// are the same string.
func (t *CitationQueryTool) Name() string {
	return t.doc.ID
}

// Description returns the document's prose description.
func (t *CitationQueryTool) Description() string {
	return BuildDescriptionForDocument(t.doc)
}

// Query retrieves the document's most relevant chunks, re-splits them
// into citation-sized sources, and synthesizes an answer from them.
func (t *CitationQueryTool) Query(ctx context.Context, q string) (*Response, error) {
	queryID := t.emitter.Start(schema.SubProcessSourceQuery, nil)

	retrieveID := t.emitter.Start(schema.SubProcessSourceRetrieve, nil)
	nodes, err := t.ix.Retrieve(ctx, q, t.topK)
	t.emitter.End(retrieveID, schema.SubProcessSourceRetrieve, nil)
	if err != nil {
		return nil, err
	}

	sources := SplitCitationChunks(nodes, CitationChunkSize)

	synthID := t.emitter.Start(schema.SubProcessSourceSynthesize, nil)
	text, err := t.synthesize(ctx, q, sources)
	t.emitter.End(synthID, schema.SubProcessSourceSynthesize, nil)
	if err != nil {
		return nil, err
	}

	resp := &Response{Text: text, Sources: sources}
	t.emitter.End(queryID, schema.SubProcessSourceQuery, ResponsePayload{
		Text:    resp.Text,
		Sources: resp.Sources,
	})
	return resp, nil
}

func (t *CitationQueryTool) synthesize(ctx context.Context, q string, sources []index.SourceNode) (string, error) {
	if len(sources) == 0 {
		return "No relevant passages were found in this document.", nil
	}

	var b strings.Builder
	for i, src := range sources {
		fmt.Fprintf(&b, "Source %d:\n%s\n\n", i+1, src.Text)
	}

	completion, err := t.llm.Generate(ctx, &llm.Request{
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf(citationSynthPrompt, strings.TrimSpace(b.String()), q),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("citation synthesis failed for document %s: %w", t.doc.ID, err)
	}
	return completion.Text, nil
}

// SplitCitationChunks re-splits retrieved chunks into citation-sized
// pieces, preserving each piece's document and page provenance.
func SplitCitationChunks(nodes []index.SourceNode, size int) []index.SourceNode {
	if size <= 0 {
		size = CitationChunkSize
	}

	var out []index.SourceNode
	for _, node := range nodes {
		runes := []rune(node.Text)
		for start := 0; start < len(runes); start += size {
			end := start + size
			if end > len(runes) {
				end = len(runes)
			}
			piece := strings.TrimSpace(string(runes[start:end]))
			if piece == "" {
				continue
			}
			out = append(out, index.SourceNode{
				ID:         fmt.Sprintf("%s-%d", node.ID, len(out)),
				Text:       piece,
				Score:      node.Score,
				DocumentID: node.DocumentID,
				PageLabel:  node.PageLabel,
			})
		}
	}
	return out
}

// Ensure CitationQueryTool implements QueryTool.
var _ QueryTool = (*CitationQueryTool)(nil)
