package projector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studenthub-sync/internal/models"
)

func conv(id string, pinned bool, lastAt time.Time) models.Conversation {
	return models.Conversation{
		ID:          id,
		IsPinned:    pinned,
		LastMessage: &models.Message{ID: "m-" + id, CreatedAt: lastAt},
	}
}

func ids(convs []models.Conversation) []string {
	out := make([]string, len(convs))
	for i, c := range convs {
		out[i] = c.ID
	}
	return out
}

func TestPinnedConversationsComeFirst(t *testing.T) {
	now := time.Now()
	input := []models.Conversation{
		conv("old-pinned", true, now.Add(-time.Hour)),
		conv("recent", false, now),
		conv("new-pinned", true, now.Add(-time.Minute)),
		conv("stale", false, now.Add(-2*time.Hour)),
	}

	out := Project(input)
	assert.Equal(t, []string{"new-pinned", "old-pinned", "recent", "stale"}, ids(out))
}

func TestConversationWithoutMessagesSortsByOwnTimestamps(t *testing.T) {
	now := time.Now()
	empty := models.Conversation{ID: "empty", UpdatedAt: now}
	out := Project([]models.Conversation{
		conv("older", false, now.Add(-time.Hour)),
		empty,
	})
	assert.Equal(t, []string{"empty", "older"}, ids(out))
}

func TestProjectDoesNotMutateInput(t *testing.T) {
	now := time.Now()
	input := []models.Conversation{
		conv("b", false, now.Add(-time.Hour)),
		conv("a", false, now),
	}

	out := Project(input)

	require.Equal(t, []string{"a", "b"}, ids(out))
	assert.Equal(t, []string{"b", "a"}, ids(input))
}

func TestProjectEmpty(t *testing.T) {
	assert.Empty(t, Project(nil))
}
