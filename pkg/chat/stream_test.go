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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsightai/finsight/pkg/schema"
)

func snapshotEvent(content string) Event {
	return Event{Message: &schema.StreamedMessage{Content: content}}
}

func TestStreamSendAndReceive(t *testing.T) {
	stream := NewStream()

	require.True(t, stream.Send(snapshotEvent("hello")))

	select {
	case ev := <-stream.Events():
		require.NotNil(t, ev.Message)
		assert.Equal(t, "hello", ev.Message.Content)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestStreamSendAfterClose(t *testing.T) {
	stream := NewStream()
	stream.Close()

	assert.False(t, stream.Send(snapshotEvent("too late")))
	assert.True(t, stream.Closed())
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	stream := NewStream()
	stream.Close()
	stream.Close()

	select {
	case <-stream.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestStreamDrainAfterClose(t *testing.T) {
	stream := NewStream()
	require.True(t, stream.Send(snapshotEvent("one")))
	require.True(t, stream.Send(snapshotEvent("two")))
	stream.Close()

	// Buffered events stay receivable after closure.
	events := stream.Drain()
	require.Len(t, events, 2)
	assert.Equal(t, "one", events[0].Message.Content)
	assert.Equal(t, "two", events[1].Message.Content)

	assert.Empty(t, stream.Drain())
}

func TestStreamConsumerCloseUnblocksProducer(t *testing.T) {
	stream := NewStreamWithBuffer(1)
	require.True(t, stream.Send(snapshotEvent("fills the buffer")))

	sendDone := make(chan bool, 1)
	go func() {
		sendDone <- stream.Send(snapshotEvent("blocked"))
	}()

	stream.Close()

	select {
	case ok := <-sendDone:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("producer stayed blocked after stream closed")
	}
}
