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
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/finsightai/finsight/pkg/observability"
	"github.com/finsightai/finsight/pkg/schema"
)

// HandleChatMessage answers one user message for a conversation,
// delivering answer snapshots and sub-process records on the stream.
//
// Each answer message is a full snapshot of the text generated so far,
// not a delta. The stream is always closed before returning; a returned
// error means the turn failed before producing a complete answer. If the
// consumer closes the stream mid-turn, generation stops cleanly with no
// error.
func HandleChatMessage(ctx context.Context, builder *EngineBuilder, conversation schema.Conversation, userMessage schema.UserMessageCreate, stream *Stream) error {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "chat.HandleChatMessage")
	span.SetAttributes(
		attribute.String("conversation.id", conversation.ID),
		attribute.Int("conversation.documents", len(conversation.Documents)),
	)
	defer span.End()
	defer stream.Close()
	defer func() { observability.ChatTurnDuration.Observe(time.Since(start).Seconds()) }()

	emitter := NewEmitter(stream)
	defer emitter.Close()

	// Returning early (consumer closed the stream, model error) cancels
	// the agent so its goroutine and any open model stream are released.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	agent, err := builder.BuildChatEngine(ctx, conversation, emitter)
	if err != nil {
		observability.ChatTurnsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to build chat engine: %w", err)
	}

	// Tell the caller the pipeline is ready before the first token.
	stream.Send(Event{SubProcess: &schema.StreamedMessageSubProcess{
		Source:   schema.SubProcessSourceConstructedQuery,
		EventID:  uuid.NewString(),
		HasEnded: true,
	}})
	slog.Debug("Chat engine constructed", "conversation_id", conversation.ID)

	templated := TemplatedQueryPrefix + "\n\n" + userMessage.Content

	response := ""
	for chunk := range agent.ChatStream(ctx, templated) {
		if chunk.Err != nil {
			observability.ChatTurnsTotal.WithLabelValues("error").Inc()
			return chunk.Err
		}

		response += chunk.Text
		if !stream.Send(Event{Message: &schema.StreamedMessage{Content: response}}) {
			slog.Debug("Received streamed token after stream closed. Ignoring.",
				"conversation_id", conversation.ID)
			observability.ChatTurnsTotal.WithLabelValues("closed").Inc()
			return nil
		}
		observability.StreamSnapshotsTotal.Inc()
	}

	if strings.TrimSpace(response) == "" {
		stream.Send(Event{Message: &schema.StreamedMessage{Content: FallbackMessage}})
	}

	observability.ChatTurnsTotal.WithLabelValues("success").Inc()
	return nil
}
