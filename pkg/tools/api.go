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
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finsightai/finsight/pkg/schema"
)

// FilingsAPITool answers quantitative questions about one SEC filing by
// querying the external structured-data API instead of the document text.
// Only documents carrying SEC metadata get one of these.
type FilingsAPITool struct {
	doc     schema.Document
	meta    schema.SecDocumentMetadata
	baseURL string
	client  *http.Client
	emitter Emitter
}

// NewFilingsAPITool creates a quantitative tool for one SEC filing.
func NewFilingsAPITool(doc schema.Document, baseURL string, emitter Emitter) (*FilingsAPITool, error) {
	meta, ok := doc.SecMetadata()
	if !ok {
		return nil, fmt.Errorf("tools: document %s has no SEC metadata", doc.ID)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("tools: filings API base URL is required")
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &FilingsAPITool{
		doc:     doc,
		meta:    meta,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		emitter: emitter,
	}, nil
}

// Name returns the document id, matching the citation tool for the same
// document.
func (t *FilingsAPITool) Name() string {
	return t.doc.ID
}

// Description returns a prose sentence naming the company ticker and the
// filing period.
func (t *FilingsAPITool) Description() string {
	return fmt.Sprintf(
		"A query engine that returns structured financial figures reported by %s (%s) in their SEC %s filing for the %s time period.",
		t.meta.CompanyName, t.meta.CompanyTicker, t.meta.DocType, t.meta.TimePeriod())
}

// filingsAPIResponse is the shape returned by the structured-data API.
type filingsAPIResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

// Query asks the structured-data API about this filing.
func (t *FilingsAPITool) Query(ctx context.Context, q string) (*Response, error) {
	queryID := t.emitter.Start(schema.SubProcessSourceQuery, nil)

	endpoint := fmt.Sprintf("%s/%s/%s?%s",
		t.baseURL,
		url.PathEscape(t.meta.CompanyTicker),
		url.PathEscape(string(t.meta.DocType)),
		url.Values{
			"period": {t.meta.TimePeriod()},
			"q":      {q},
		}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create filings API request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("filings API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read filings API response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("filings API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed filingsAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode filings API response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("filings API error: %s", parsed.Error)
	}

	out := &Response{Text: parsed.Answer}
	t.emitter.End(queryID, schema.SubProcessSourceQuery, ResponsePayload{Text: out.Text})
	return out, nil
}

// Ensure FilingsAPITool implements QueryTool.
var _ QueryTool = (*FilingsAPITool)(nil)
