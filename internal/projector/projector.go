package projector

import (
	"sort"
	"time"

	"studenthub-sync/internal/models"
)

// Project orders conversations for display: pinned first, then by
// recency of the last message. The input is not modified.
func Project(convs []models.Conversation) []models.Conversation {
	out := make([]models.Conversation, len(convs))
	copy(out, convs)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return recency(out[i]).After(recency(out[j]))
	})
	return out
}

// recency is the timestamp a conversation sorts by. Conversations
// without any message yet fall back to their own timestamps.
func recency(c models.Conversation) time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	if !c.UpdatedAt.IsZero() {
		return c.UpdatedAt
	}
	return c.CreatedAt
}
