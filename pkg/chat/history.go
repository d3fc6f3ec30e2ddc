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
	"sort"
	"strings"

	"github.com/finsightai/finsight/pkg/llm"
	"github.com/finsightai/finsight/pkg/schema"
	"github.com/finsightai/finsight/pkg/utils"
)

// GetChatHistory reconstructs the model-facing history from a
// conversation's messages. Messages that failed or carry only whitespace
// are dropped, the rest are ordered by creation time, and any
// non-assistant role collapses to user. The input is never mutated.
func GetChatHistory(messages []schema.Message) []llm.Message {
	kept := make([]schema.Message, 0, len(messages))
	for _, m := range messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Status != schema.MessageStatusSuccess {
			continue
		}
		kept = append(kept, m)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].CreatedAt.Before(kept[j].CreatedAt)
	})

	history := make([]llm.Message, 0, len(kept))
	for _, m := range kept {
		role := llm.RoleUser
		if m.Role == schema.MessageRoleAssistant {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: m.Content})
	}
	return history
}

// TrimHistoryToBudget drops whole messages from the oldest side until the
// history fits the token budget. A budget of zero disables trimming.
func TrimHistoryToBudget(history []llm.Message, counter *utils.TokenCounter, budget int) []llm.Message {
	if budget <= 0 || counter == nil {
		return history
	}

	total := 0
	for _, m := range history {
		total += counter.Count(m.Content)
	}

	start := 0
	for start < len(history) && total > budget {
		total -= counter.Count(history[start].Content)
		start++
	}
	return history[start:]
}
