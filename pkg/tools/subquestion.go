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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/finsightai/finsight/pkg/index"
	"github.com/finsightai/finsight/pkg/llm"
	"github.com/finsightai/finsight/pkg/observability"
	"github.com/finsightai/finsight/pkg/schema"
)

const subQuestionPrompt = `You decompose a user question into sub-questions, each answerable by exactly one of the available tools.

Available tools:
%s

Generate as few sub-questions as necessary to fully answer the question. Each sub-question must be assigned to one tool by its exact name. Respond with a JSON object of the form:
{"sub_questions": [{"sub_question": "...", "tool_name": "..."}]}

Question: %s`

const subQuestionSynthPrompt = `A user has selected a set of SEC filing documents and has asked a question about them. The SEC documents have the following titles:
%s

Several sub-questions were answered to gather the information below.
---------------------
%s
---------------------
Given the information above and not prior knowledge, answer the query.
Query: %s
Answer: `

// SubQuestionEngineConfig configures a composite engine.
type SubQuestionEngineConfig struct {
	Name        string
	Description string
	Tools       []QueryTool
	LLM         llm.Provider
	Emitter     Emitter

	// DocTitles is the bulleted title block used by the synthesis
	// prompt.
	DocTitles string

	Verbose bool
}

// SubQuestionEngine decomposes a question into per-tool sub-questions,
// answers them concurrently, and synthesizes a combined answer.
type SubQuestionEngine struct {
	cfg     SubQuestionEngineConfig
	byName  map[string]QueryTool
	emitter Emitter
}

// NewSubQuestionEngine creates a composite engine over the given tools.
func NewSubQuestionEngine(cfg SubQuestionEngineConfig) (*SubQuestionEngine, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("tools: engine name is required")
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("tools: LLM provider is required")
	}
	if cfg.Emitter == nil {
		cfg.Emitter = NopEmitter{}
	}

	byName := make(map[string]QueryTool, len(cfg.Tools))
	for _, t := range cfg.Tools {
		if _, exists := byName[t.Name()]; exists {
			return nil, fmt.Errorf("tools: duplicate tool name %q in engine %s", t.Name(), cfg.Name)
		}
		byName[t.Name()] = t
	}

	return &SubQuestionEngine{
		cfg:     cfg,
		byName:  byName,
		emitter: cfg.Emitter,
	}, nil
}

// Name returns the engine's tool name.
func (e *SubQuestionEngine) Name() string {
	return e.cfg.Name
}

// Description returns the engine's routing description.
func (e *SubQuestionEngine) Description() string {
	return e.cfg.Description
}

// subQuestionItem is one generated sub-question.
type subQuestionItem struct {
	SubQuestion string `json:"sub_question"`
	ToolName    string `json:"tool_name"`
}

// answeredSubQuestion pairs a sub-question with its tool response.
type answeredSubQuestion struct {
	item subQuestionItem
	resp *Response
}

// Query decomposes the question, answers each sub-question with its
// assigned tool, and synthesizes the results.
func (e *SubQuestionEngine) Query(ctx context.Context, q string) (*Response, error) {
	ctx, span := observability.Tracer().Start(ctx, "tools.SubQuestionEngine.Query")
	span.SetAttributes(attribute.String("engine", e.cfg.Name))
	defer span.End()

	queryID := e.emitter.Start(schema.SubProcessSourceQuery, nil)

	if len(e.byName) == 0 {
		resp := &Response{Text: "No documents are available to answer this question."}
		e.emitter.End(queryID, schema.SubProcessSourceQuery, ResponsePayload{Text: resp.Text})
		return resp, nil
	}

	items, err := e.generateSubQuestions(ctx, q)
	if err != nil {
		return nil, err
	}

	answered := make([]*answeredSubQuestion, len(items))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range items {
		g.Go(func() error {
			tool := e.byName[item.ToolName]

			eventID := e.emitter.Start(schema.SubProcessSourceSubQuestion, SubQuestionPayload{
				Question: item.SubQuestion,
			})

			resp, err := tool.Query(gctx, item.SubQuestion)
			if err != nil {
				return fmt.Errorf("sub-question %q failed on tool %s: %w",
					item.SubQuestion, item.ToolName, err)
			}

			e.emitter.End(eventID, schema.SubProcessSourceSubQuestion, SubQuestionPayload{
				Question: item.SubQuestion,
				Answer:   resp.Text,
				Sources:  resp.Sources,
			})

			answered[i] = &answeredSubQuestion{item: item, resp: resp}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	text, err := e.synthesize(ctx, q, answered)
	if err != nil {
		return nil, err
	}

	var sources []index.SourceNode
	for _, a := range answered {
		sources = append(sources, a.resp.Sources...)
	}

	resp := &Response{Text: text, Sources: sources}
	e.emitter.End(queryID, schema.SubProcessSourceQuery, ResponsePayload{
		Text:    resp.Text,
		Sources: resp.Sources,
	})
	return resp, nil
}

// generateSubQuestions asks the LLM to decompose the question. Items
// naming unknown tools are skipped with a log rather than failing the
// whole query.
func (e *SubQuestionEngine) generateSubQuestions(ctx context.Context, q string) ([]subQuestionItem, error) {
	var toolList strings.Builder
	for _, t := range e.cfg.Tools {
		fmt.Fprintf(&toolList, "- %s: %s\n", t.Name(), t.Description())
	}

	completion, err := e.cfg.LLM.Generate(ctx, &llm.Request{
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf(subQuestionPrompt, strings.TrimSpace(toolList.String()), q),
		}},
		JSONResponse: true,
	})
	if err != nil {
		return nil, fmt.Errorf("sub-question generation failed: %w", err)
	}

	var parsed struct {
		SubQuestions []subQuestionItem `json:"sub_questions"`
	}
	if err := json.Unmarshal([]byte(completion.Text), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse sub-questions: %w", err)
	}

	items := make([]subQuestionItem, 0, len(parsed.SubQuestions))
	for _, item := range parsed.SubQuestions {
		if item.SubQuestion == "" {
			continue
		}
		if _, ok := e.byName[item.ToolName]; !ok {
			slog.Warn("Skipping sub-question for unknown tool",
				"engine", e.cfg.Name,
				"tool", item.ToolName,
				"sub_question", item.SubQuestion)
			continue
		}
		items = append(items, item)
	}

	if e.cfg.Verbose {
		for _, item := range items {
			slog.Debug("Generated sub-question",
				"engine", e.cfg.Name,
				"tool", item.ToolName,
				"sub_question", item.SubQuestion)
		}
	}

	return items, nil
}

func (e *SubQuestionEngine) synthesize(ctx context.Context, q string, answered []*answeredSubQuestion) (string, error) {
	if len(answered) == 0 {
		return "No sub-questions could be generated for this query.", nil
	}

	var b strings.Builder
	for _, a := range answered {
		fmt.Fprintf(&b, "Sub question: %s\nResponse: %s\n\n", a.item.SubQuestion, a.resp.Text)
	}

	completion, err := e.cfg.LLM.Generate(ctx, &llm.Request{
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: fmt.Sprintf(subQuestionSynthPrompt,
				e.cfg.DocTitles, strings.TrimSpace(b.String()), q),
		}},
	})
	if err != nil {
		return "", fmt.Errorf("sub-question synthesis failed: %w", err)
	}
	return completion.Text, nil
}

// Ensure SubQuestionEngine implements QueryTool.
var _ QueryTool = (*SubQuestionEngine)(nil)
