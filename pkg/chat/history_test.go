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

	"github.com/finsightai/finsight/pkg/llm"
	"github.com/finsightai/finsight/pkg/schema"
	"github.com/finsightai/finsight/pkg/utils"
)

func newTestCounter() *utils.TokenCounter {
	return utils.NewTokenCounter("test-model")
}

func msgAt(role schema.MessageRole, content string, status schema.MessageStatus, at time.Time) schema.Message {
	return schema.Message{
		Role:      role,
		Content:   content,
		Status:    status,
		CreatedAt: at,
	}
}

func TestGetChatHistory(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("filters failed and blank messages", func(t *testing.T) {
		messages := []schema.Message{
			msgAt(schema.MessageRoleUser, "hello", schema.MessageStatusSuccess, base),
			msgAt(schema.MessageRoleAssistant, "  \n\t ", schema.MessageStatusSuccess, base.Add(time.Second)),
			msgAt(schema.MessageRoleUser, "failed question", schema.MessageStatusError, base.Add(2*time.Second)),
			msgAt(schema.MessageRoleUser, "pending", schema.MessageStatusPending, base.Add(3*time.Second)),
			msgAt(schema.MessageRoleAssistant, "world", schema.MessageStatusSuccess, base.Add(4*time.Second)),
		}

		history := GetChatHistory(messages)
		require.Len(t, history, 2)
		assert.Equal(t, "hello", history[0].Content)
		assert.Equal(t, "world", history[1].Content)
	})

	t.Run("orders by creation time", func(t *testing.T) {
		messages := []schema.Message{
			msgAt(schema.MessageRoleAssistant, "second", schema.MessageStatusSuccess, base.Add(time.Minute)),
			msgAt(schema.MessageRoleUser, "first", schema.MessageStatusSuccess, base),
			msgAt(schema.MessageRoleUser, "third", schema.MessageStatusSuccess, base.Add(2*time.Minute)),
		}

		history := GetChatHistory(messages)
		require.Len(t, history, 3)
		assert.Equal(t, "first", history[0].Content)
		assert.Equal(t, "second", history[1].Content)
		assert.Equal(t, "third", history[2].Content)
	})

	t.Run("collapses non-assistant roles to user", func(t *testing.T) {
		messages := []schema.Message{
			msgAt(schema.MessageRoleUser, "from user", schema.MessageStatusSuccess, base),
			msgAt(schema.MessageRole("system"), "odd role", schema.MessageStatusSuccess, base.Add(time.Second)),
			msgAt(schema.MessageRoleAssistant, "from assistant", schema.MessageStatusSuccess, base.Add(2*time.Second)),
		}

		history := GetChatHistory(messages)
		require.Len(t, history, 3)
		assert.Equal(t, llm.RoleUser, history[0].Role)
		assert.Equal(t, llm.RoleUser, history[1].Role)
		assert.Equal(t, llm.RoleAssistant, history[2].Role)
	})

	t.Run("does not mutate its input", func(t *testing.T) {
		messages := []schema.Message{
			msgAt(schema.MessageRoleAssistant, "b", schema.MessageStatusSuccess, base.Add(time.Second)),
			msgAt(schema.MessageRoleUser, "a", schema.MessageStatusSuccess, base),
		}

		_ = GetChatHistory(messages)
		assert.Equal(t, "b", messages[0].Content)
		assert.Equal(t, "a", messages[1].Content)
	})

	t.Run("empty input yields empty history", func(t *testing.T) {
		assert.Empty(t, GetChatHistory(nil))
	})
}

func TestTrimHistoryToBudget(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "oldest message with quite a few words in it"},
		{Role: llm.RoleAssistant, Content: "a reply"},
		{Role: llm.RoleUser, Content: "newest"},
	}

	t.Run("zero budget disables trimming", func(t *testing.T) {
		got := TrimHistoryToBudget(history, nil, 0)
		assert.Len(t, got, len(history))
	})

	t.Run("drops whole messages from the oldest side", func(t *testing.T) {
		counter := newTestCounter()
		budget := counter.Count(history[1].Content) + counter.Count(history[2].Content)

		got := TrimHistoryToBudget(history, counter, budget)
		require.Len(t, got, 2)
		assert.Equal(t, "a reply", got[0].Content)
		assert.Equal(t, "newest", got[1].Content)
	})

	t.Run("keeps everything under budget", func(t *testing.T) {
		got := TrimHistoryToBudget(history, newTestCounter(), 1<<20)
		assert.Len(t, got, len(history))
	})
}
