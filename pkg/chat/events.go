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

package chat

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/finsightai/finsight/pkg/index"
	"github.com/finsightai/finsight/pkg/observability"
	"github.com/finsightai/finsight/pkg/schema"
	"github.com/finsightai/finsight/pkg/tools"
)

// emitterQueueSize bounds the event queue. Enqueue never blocks the
// pipeline; overflow drops the event with a log.
const emitterQueueSize = 256

// emittedEvent is one raw lifecycle event awaiting translation.
type emittedEvent struct {
	id      string
	source  schema.SubProcessSource
	payload tools.EventPayload
	isStart bool
}

// Emitter receives lifecycle events from the tool pipeline, translates
// them into sub-process records, and delivers them to the output stream.
// A single worker drains the queue so delivery keeps event order without
// spawning a goroutine per callback.
type Emitter struct {
	stream *Stream
	queue  chan emittedEvent

	mu     sync.Mutex
	closed bool

	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewEmitter creates an emitter delivering to the stream and starts its
// worker.
func NewEmitter(stream *Stream) *Emitter {
	e := &Emitter{
		stream: stream,
		queue:  make(chan emittedEvent, emitterQueueSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go e.run()
	return e
}

// Start records the beginning of a pipeline step.
func (e *Emitter) Start(source schema.SubProcessSource, payload tools.EventPayload) string {
	id := uuid.NewString()
	e.enqueue(emittedEvent{id: id, source: source, payload: payload, isStart: true})
	return id
}

// End records the completion of the step started under eventID.
func (e *Emitter) End(eventID string, source schema.SubProcessSource, payload tools.EventPayload) {
	if eventID == "" {
		eventID = uuid.NewString()
	}
	e.enqueue(emittedEvent{id: eventID, source: source, payload: payload, isStart: false})
}

// enqueue never blocks the pipeline and never panics: tool work can
// still be in flight when the turn is abandoned, so events arriving
// after Close are dropped with a log.
func (e *Emitter) enqueue(ev emittedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		observability.DroppedEventsTotal.WithLabelValues("emitter_closed").Inc()
		slog.Debug("Received event after emitter closed. Ignoring.",
			"source", ev.source,
			"event_id", ev.id)
		return
	}

	select {
	case e.queue <- ev:
	default:
		observability.DroppedEventsTotal.WithLabelValues("queue_full").Inc()
		slog.Warn("Event queue full, dropping sub-process event",
			"source", ev.source,
			"event_id", ev.id)
	}
}

// Close stops accepting events and blocks until everything already
// queued has been delivered. Start and End stay safe to call afterwards.
func (e *Emitter) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		close(e.stopCh)
	})
	<-e.doneCh
}

func (e *Emitter) run() {
	defer close(e.doneCh)

	for {
		select {
		case ev := <-e.queue:
			e.deliver(ev)
		case <-e.stopCh:
			// Flush what was queued before Close; nothing new can
			// arrive once the closed flag is set.
			for {
				select {
				case ev := <-e.queue:
					e.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (e *Emitter) deliver(ev emittedEvent) {
	record := translateEvent(ev)

	if e.stream.Closed() {
		observability.DroppedEventsTotal.WithLabelValues("stream_closed").Inc()
		slog.Debug("Received event after stream closed. Ignoring.",
			"source", ev.source,
			"has_ended", !ev.isStart)
		return
	}
	if !e.stream.Send(Event{SubProcess: &record}) {
		observability.DroppedEventsTotal.WithLabelValues("stream_closed").Inc()
		slog.Error("Tried sending sub-process event after stream was closed",
			"source", ev.source,
			"has_ended", !ev.isStart)
		return
	}
	observability.SubProcessEventsTotal.WithLabelValues(string(ev.source)).Inc()
}

// translateEvent converts a raw lifecycle event into the wire record.
func translateEvent(ev emittedEvent) schema.StreamedMessageSubProcess {
	return schema.StreamedMessageSubProcess{
		Source:      ev.source,
		EventID:     ev.id,
		HasEnded:    !ev.isStart,
		MetadataMap: metadataForPayload(ev.payload),
	}
}

// metadataForPayload builds the metadata map for an event payload.
// Classification precedence: an answer with citation sources wins, then a
// sub-question, then a bare tool output. Payloads carrying nothing
// user-visible produce nil metadata.
func metadataForPayload(payload tools.EventPayload) schema.SubProcessMetadataMap {
	switch p := payload.(type) {
	case tools.ResponsePayload:
		citations := citationsFromSources(p.Sources)
		if len(citations) == 0 {
			return nil
		}
		return schema.SubProcessMetadataMap{
			schema.SubProcessMetadataKeySubQuestions: []schema.QuestionAnswerPair{{
				Question:  placeholderQuestion,
				Answer:    p.Text,
				Citations: citations,
			}},
		}

	case tools.SubQuestionPayload:
		return schema.SubProcessMetadataMap{
			schema.SubProcessMetadataKeySubQuestion: schema.QuestionAnswerPair{
				Question:  p.Question,
				Answer:    p.Answer,
				Citations: citationsFromSources(p.Sources),
			},
		}

	case tools.FunctionCallPayload:
		if p.Output == "" {
			return nil
		}
		return schema.SubProcessMetadataMap{
			schema.SubProcessMetadataKeySubQuestions: []schema.QuestionAnswerPair{{
				Question:  placeholderQuestion,
				Answer:    p.Output,
				Citations: []schema.Citation{},
			}},
		}
	}

	return nil
}

// citationsFromSources extracts citations from retrieval sources. Nodes
// without full provenance (document id and a positive page number) are
// skipped rather than producing broken citations.
func citationsFromSources(sources []index.SourceNode) []schema.Citation {
	var citations []schema.Citation
	for _, src := range sources {
		if src.DocumentID == "" || src.PageLabel <= 0 {
			continue
		}
		citations = append(citations, schema.Citation{
			DocumentID: src.DocumentID,
			PageNumber: src.PageLabel,
			Text:       truncate(src.Text, citationExcerptLength),
		})
	}
	return citations
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Ensure Emitter implements the tools emitter contract.
var _ tools.Emitter = (*Emitter)(nil)
