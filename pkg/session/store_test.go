package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smithers-ai/smithers/pkg/conversation"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func userMsg(content string) conversation.Message {
	return conversation.Message{
		Role:      conversation.RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

func TestValidateSessionKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid key", "user-123", false},
		{"valid with underscores", "cli_default", false},
		{"empty", "", true},
		{"path traversal", "../etc/passwd", true},
		{"forward slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"null byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSessionKey(tt.key)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAppendAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("round trip preserves order and content", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, "trip", userMsg("first")))
		require.NoError(t, store.Append(ctx, "trip", conversation.Message{
			Role:      conversation.RoleAssistant,
			Content:   "second",
			Timestamp: time.Now(),
		}))

		messages, err := store.Load(ctx, "trip")
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "first", messages[0].Content)
		assert.Equal(t, conversation.RoleAssistant, messages[1].Role)
	})

	t.Run("tool calls survive the round trip", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, "calls", conversation.Message{
			Role: conversation.RoleAssistant,
			ToolCalls: []conversation.ToolCall{
				{ID: "call_1", Name: "calculator", Arguments: map[string]interface{}{"expression": "2+2"}},
			},
			Timestamp: time.Now(),
		}))

		messages, err := store.Load(ctx, "calls")
		require.NoError(t, err)
		require.Len(t, messages, 1)
		require.Len(t, messages[0].ToolCalls, 1)
		assert.Equal(t, "calculator", messages[0].ToolCalls[0].Name)
	})

	t.Run("missing session loads empty", func(t *testing.T) {
		messages, err := store.Load(ctx, "never-written")
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("rejects empty role", func(t *testing.T) {
		err := store.Append(ctx, "bad", conversation.Message{Content: "x"})
		assert.Error(t, err)
	})

	t.Run("rejects message with no content and no tool calls", func(t *testing.T) {
		err := store.Append(ctx, "bad", conversation.Message{Role: conversation.RoleUser})
		assert.Error(t, err)
	})

	t.Run("empty tool result stays paired with its call", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, "pair", conversation.Message{
			Role: conversation.RoleAssistant,
			ToolCalls: []conversation.ToolCall{
				{ID: "call_1", Name: "read_file", Arguments: map[string]interface{}{"path": "empty.txt"}},
			},
			Timestamp: time.Now(),
		}))
		require.NoError(t, store.Append(ctx, "pair", conversation.Message{
			Role:       conversation.RoleTool,
			Content:    "",
			ToolCallID: "call_1",
			Timestamp:  time.Now(),
		}))

		messages, err := store.Load(ctx, "pair")
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, conversation.RoleTool, messages[1].Role)
		assert.Equal(t, "call_1", messages[1].ToolCallID)
		assert.Empty(t, messages[1].Content)
	})
}

func TestLoadSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "corrupt", userMsg("good one")))

	f, err := os.OpenFile(filepath.Join(dir, "corrupt.jsonl"), os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("{not json at all\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, store.Append(ctx, "corrupt", userMsg("good two")))

	messages, err := store.Load(ctx, "corrupt")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "good one", messages[0].Content)
	assert.Equal(t, "good two", messages[1].Content)
}

func TestRepair(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "fix", userMsg("keep me")))

	path := filepath.Join(dir, "fix.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("garbage line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, store.Repair(ctx, "fix"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "garbage")

	messages, err := store.Load(ctx, "fix")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "keep me", messages[0].Content)
}

func TestDeleteAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "alpha", userMsg("a")))
	require.NoError(t, store.Append(ctx, "beta", userMsg("b")))

	sessions, err := store.ListSessions()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, sessions)

	require.NoError(t, store.Delete(ctx, "alpha"))

	sessions, err = store.ListSessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, sessions)

	// deleting a missing session is not an error
	assert.NoError(t, store.Delete(ctx, "alpha"))
}

func TestInfo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "meta", userMsg("hello")))
	require.NoError(t, store.Append(ctx, "meta", userMsg("world")))

	info, err := store.Info(ctx, "meta")
	require.NoError(t, err)
	assert.Equal(t, "meta", info["sessionKey"])
	assert.Equal(t, 2, info["messageCount"])

	_, err = store.Info(ctx, "missing")
	assert.Error(t, err)
}

func TestConcurrentAppends(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const writers = 10
	done := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			done <- store.Append(ctx, "race", userMsg("concurrent"))
		}()
	}
	for i := 0; i < writers; i++ {
		require.NoError(t, <-done)
	}

	messages, err := store.Load(ctx, "race")
	require.NoError(t, err)
	assert.Len(t, messages, writers)
}
