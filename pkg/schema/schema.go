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

// Package schema defines the domain types shared across the chat pipeline.
//
// Documents, conversations, and messages are owned by the persistence layer;
// this package only mirrors the fields the orchestration core reads. The
// streamed wire types (StreamedMessage, StreamedMessageSubProcess) are the
// payloads delivered to the caller over the output stream.
package schema

import (
	"time"
)

// MessageRole identifies the sender of a chat message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// MessageStatus tracks the lifecycle of a persisted message.
type MessageStatus string

const (
	MessageStatusPending MessageStatus = "PENDING"
	MessageStatusSuccess MessageStatus = "SUCCESS"
	MessageStatusError   MessageStatus = "ERROR"
)

// Message is one turn of a conversation.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversation_id"`
	Role           MessageRole   `json:"role"`
	Content        string        `json:"content"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Document references one uploaded filing.
//
// Documents are immutable once referenced by a conversation. MetadataMap
// optionally carries typed sub-documents keyed by DocumentMetadataKey.
type Document struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	MetadataMap map[string]any `json:"metadata_map,omitempty"`
}

// Conversation is an ordered set of documents plus the message transcript.
// The core only reads conversations; ownership stays with the caller.
type Conversation struct {
	ID        string     `json:"id"`
	Documents []Document `json:"documents"`
	Messages  []Message  `json:"messages"`
}

// UserMessageCreate is the inbound payload for a new user message.
type UserMessageCreate struct {
	Content string `json:"content"`
}

// Citation justifies part of a generated answer.
type Citation struct {
	DocumentID string `json:"document_id"`
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// QuestionAnswerPair is a sub-question with its answer and citations.
type QuestionAnswerPair struct {
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// SubProcessSource identifies which pipeline stage produced a sub-process
// record.
type SubProcessSource string

const (
	SubProcessSourceChunking         SubProcessSource = "CHUNKING"
	SubProcessSourceNodeParsing      SubProcessSource = "NODE_PARSING"
	SubProcessSourceEmbedding        SubProcessSource = "EMBEDDING"
	SubProcessSourceLLM              SubProcessSource = "LLM"
	SubProcessSourceQuery            SubProcessSource = "QUERY"
	SubProcessSourceRetrieve         SubProcessSource = "RETRIEVE"
	SubProcessSourceSynthesize       SubProcessSource = "SYNTHESIZE"
	SubProcessSourceSubQuestion      SubProcessSource = "SUB_QUESTION"
	SubProcessSourceFunctionCall     SubProcessSource = "FUNCTION_CALL"
	SubProcessSourceAgentStep        SubProcessSource = "AGENT_STEP"
	SubProcessSourceConstructedQuery SubProcessSource = "CONSTRUCTED_QUERY_ENGINE"
)

// Sub-process metadata map keys.
const (
	SubProcessMetadataKeySubQuestion  = "sub_question"
	SubProcessMetadataKeySubQuestions = "sub_questions"
)

// SubProcessMetadataMap carries structured metadata attached to a
// sub-process record; populated only on recognized end events.
type SubProcessMetadataMap = map[string]any

// StreamedMessage is a full snapshot of the answer generated so far.
// Each emission replaces the previous one; consumers never merge deltas.
type StreamedMessage struct {
	Content string `json:"content"`
}

// StreamedMessageSubProcess describes one step of internal pipeline
// execution. Start and end records for the same step share an EventID.
type StreamedMessageSubProcess struct {
	Source      SubProcessSource      `json:"source"`
	EventID     string                `json:"event_id"`
	HasEnded    bool                  `json:"has_ended"`
	MetadataMap SubProcessMetadataMap `json:"metadata_map,omitempty"`
}
