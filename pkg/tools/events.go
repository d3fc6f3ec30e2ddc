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
	"github.com/finsightai/finsight/pkg/index"
)

// EventPayload is the tagged union of data carried by lifecycle events.
// A nil payload is valid for steps that only mark progress.
type EventPayload interface {
	isEventPayload()
}

// ResponsePayload carries a synthesized answer and the source chunks
// backing it. Attached to the end event of a query step.
type ResponsePayload struct {
	Text    string
	Sources []index.SourceNode
}

func (ResponsePayload) isEventPayload() {}

// SubQuestionPayload carries one sub-question with, on end events, its
// answer and the sources that produced it.
type SubQuestionPayload struct {
	Question string
	Answer   string
	Sources  []index.SourceNode
}

func (SubQuestionPayload) isEventPayload() {}

// FunctionCallPayload carries the arguments or output of an agent tool
// invocation.
type FunctionCallPayload struct {
	// Arguments is the raw argument text (start events).
	Arguments string

	// Output is the tool's response text (end events).
	Output string
}

func (FunctionCallPayload) isEventPayload() {}
