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

package schema

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DocumentMetadataKeySECDocument marks a document's metadata map entry as
// SEC filing metadata.
const DocumentMetadataKeySECDocument = "sec_document"

// SecDocumentType is the SEC form type of a filing.
type SecDocumentType string

const (
	SecDocumentTypeTenK SecDocumentType = "10-K"
	SecDocumentTypeTenQ SecDocumentType = "10-Q"
)

// SecDocumentMetadata describes the filing a document was extracted from.
//
// Quarter is only set for 10-Q filings.
type SecDocumentMetadata struct {
	CompanyName   string          `json:"company_name" mapstructure:"company_name"`
	CompanyTicker string          `json:"company_ticker" mapstructure:"company_ticker"`
	DocType       SecDocumentType `json:"doc_type" mapstructure:"doc_type"`
	Year          int             `json:"year" mapstructure:"year"`
	Quarter       int             `json:"quarter,omitempty" mapstructure:"quarter"`
}

// TimePeriod renders the filing period, e.g. "2023 Q1" or "2023".
func (m SecDocumentMetadata) TimePeriod() string {
	if m.Quarter > 0 {
		return fmt.Sprintf("%d Q%d", m.Year, m.Quarter)
	}
	return fmt.Sprintf("%d", m.Year)
}

// SecMetadata decodes the SEC filing metadata from a document's metadata
// map. The second return is false when the document carries none.
func (d Document) SecMetadata() (SecDocumentMetadata, bool) {
	raw, ok := d.MetadataMap[DocumentMetadataKeySECDocument]
	if !ok {
		return SecDocumentMetadata{}, false
	}

	var meta SecDocumentMetadata
	if err := mapstructure.Decode(raw, &meta); err != nil {
		return SecDocumentMetadata{}, false
	}
	return meta, true
}
