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

// Package chat orchestrates one conversational turn: it builds the tool
// hierarchy and agent for a conversation, streams the generated answer as
// growing snapshots, and translates pipeline lifecycle events into
// sub-process records on the same output stream.
package chat

import (
	"sync"

	"github.com/finsightai/finsight/pkg/schema"
)

// Event is one item delivered on the output stream: either an answer
// snapshot or a sub-process record. Exactly one field is set.
type Event struct {
	Message    *schema.StreamedMessage
	SubProcess *schema.StreamedMessageSubProcess
}

// defaultStreamBuffer is the event buffer of a stream.
const defaultStreamBuffer = 128

// Stream is the bounded producer/consumer channel between the chat
// handler and its caller. Either side may close it: the producer when the
// turn completes, the consumer when it stops listening (e.g. the client
// disconnected). Sending on a closed stream is a no-op that reports
// failure instead of panicking.
type Stream struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewStream creates a stream with the default buffer.
func NewStream() *Stream {
	return NewStreamWithBuffer(defaultStreamBuffer)
}

// NewStreamWithBuffer creates a stream with an explicit buffer size.
func NewStreamWithBuffer(buffer int) *Stream {
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}
	return &Stream{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Send delivers an event, blocking while the buffer is full. It returns
// false once the stream is closed.
func (s *Stream) Send(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case <-s.done:
		return false
	case s.ch <- ev:
		return true
	}
}

// Close marks the stream closed. It is idempotent and safe to call from
// either side.
func (s *Stream) Close() {
	s.once.Do(func() { close(s.done) })
}

// Closed reports whether the stream has been closed.
func (s *Stream) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Events is the consumer side. Consumers should also watch Done: events
// already buffered remain receivable after closure.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Done is closed when the stream closes.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Drain receives any events still buffered without blocking. Intended for
// consumers after Done fires.
func (s *Stream) Drain() []Event {
	var out []Event
	for {
		select {
		case ev := <-s.ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
