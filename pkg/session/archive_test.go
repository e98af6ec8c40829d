package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smithers-ai/smithers/pkg/conversation"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	archive, err := NewArchive(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })
	return archive
}

func sampleTranscript() []conversation.Message {
	now := time.Now()
	return []conversation.Message{
		{Ordinal: 0, Role: conversation.RoleUser, Content: "what is the weather in tokyo", Timestamp: now},
		{Ordinal: 1, Role: conversation.RoleAssistant, Content: "", ToolCalls: []conversation.ToolCall{
			{ID: "call_1", Name: "get_weather", Arguments: map[string]interface{}{"location": "tokyo"}},
		}, Timestamp: now.Add(time.Second)},
		{Ordinal: 2, Role: conversation.RoleTool, Content: "sunny, 24C", ToolCallID: "call_1", Timestamp: now.Add(2 * time.Second)},
		{Ordinal: 3, Role: conversation.RoleAssistant, Content: "It is sunny in Tokyo, 24C.", Timestamp: now.Add(3 * time.Second)},
	}
}

func TestArchiveSession(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()

	t.Run("stores and lists transcripts", func(t *testing.T) {
		require.NoError(t, archive.ArchiveSession(ctx, "weather-chat", sampleTranscript()))

		keys, err := archive.ArchivedSessions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"weather-chat"}, keys)
	})

	t.Run("re-archiving replaces the previous copy", func(t *testing.T) {
		short := sampleTranscript()[:2]
		require.NoError(t, archive.ArchiveSession(ctx, "weather-chat", short))

		hits, err := archive.Search(ctx, "tokyo", 50)
		require.NoError(t, err)
		for _, hit := range hits {
			assert.Less(t, hit.Ordinal, 2)
		}
	})

	t.Run("rejects invalid session key", func(t *testing.T) {
		err := archive.ArchiveSession(ctx, "../escape", sampleTranscript())
		assert.Error(t, err)
	})
}

func TestArchiveSearch(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()

	require.NoError(t, archive.ArchiveSession(ctx, "s1", sampleTranscript()))
	require.NoError(t, archive.ArchiveSession(ctx, "s2", []conversation.Message{
		{Ordinal: 0, Role: conversation.RoleUser, Content: "compute 2+2", Timestamp: time.Now()},
	}))

	t.Run("finds matching content across sessions", func(t *testing.T) {
		hits, err := archive.Search(ctx, "sunny", 10)
		require.NoError(t, err)
		require.NotEmpty(t, hits)
		for _, hit := range hits {
			assert.Equal(t, "s1", hit.SessionKey)
			assert.Contains(t, hit.Content, "sunny")
		}
	})

	t.Run("no matches yields empty result", func(t *testing.T) {
		hits, err := archive.Search(ctx, "nonexistent-keyword", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("empty keyword errors", func(t *testing.T) {
		_, err := archive.Search(ctx, "", 10)
		assert.Error(t, err)
	})

	t.Run("limit caps result count", func(t *testing.T) {
		hits, err := archive.Search(ctx, "o", 1)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(hits), 1)
	})
}
