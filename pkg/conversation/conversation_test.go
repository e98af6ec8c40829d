package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend(t *testing.T) {
	t.Run("assigns ordinals in append order", func(t *testing.T) {
		c := New()

		first := c.Append(Message{Role: RoleUser, Content: "hello"})
		second := c.Append(Message{Role: RoleAssistant, Content: "hi"})

		assert.Equal(t, 0, first.Ordinal)
		assert.Equal(t, 1, second.Ordinal)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("no implicit deduplication", func(t *testing.T) {
		c := New()

		c.Append(Message{Role: RoleTool, ToolCallID: "call-1", Content: "4"})
		c.Append(Message{Role: RoleTool, ToolCallID: "call-1", Content: "4"})

		msgs := c.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, 0, msgs[0].Ordinal)
		assert.Equal(t, 1, msgs[1].Ordinal)
		assert.Equal(t, msgs[0].Content, msgs[1].Content)
	})

	t.Run("assigns timestamp when missing", func(t *testing.T) {
		c := New()
		stored := c.Append(Message{Role: RoleUser, Content: "x"})
		assert.False(t, stored.Timestamp.IsZero())
	})

	t.Run("stored message is isolated from caller slice", func(t *testing.T) {
		c := New()

		calls := []ToolCall{{ID: "a", Name: "calculator"}}
		c.Append(Message{Role: RoleAssistant, ToolCalls: calls})

		calls[0].Name = "mutated"
		assert.Equal(t, "calculator", c.Messages()[0].ToolCalls[0].Name)
	})
}

func TestMessagesSnapshot(t *testing.T) {
	c := New()
	c.Append(Message{Role: RoleUser, Content: "original"})

	snapshot := c.Messages()
	snapshot[0].Content = "mutated"

	assert.Equal(t, "original", c.Messages()[0].Content)
}

func TestConcurrentAppend(t *testing.T) {
	c := New()
	const writers = 16
	const perWriter = 50

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				c.Append(Message{Role: RoleTool, Content: fmt.Sprintf("w%d-%d", id, j)})
			}
		}(i)
	}
	wg.Wait()

	msgs := c.Messages()
	require.Len(t, msgs, writers*perWriter)
	for i, msg := range msgs {
		assert.Equal(t, i, msg.Ordinal)
	}
}

func TestUnresolvedToolCalls(t *testing.T) {
	t.Run("empty conversation has none", func(t *testing.T) {
		assert.Empty(t, New().UnresolvedToolCalls())
	})

	t.Run("reports pending calls from last assistant turn", func(t *testing.T) {
		c := New()
		c.Append(Message{Role: RoleUser, Content: "compute"})
		c.Append(Message{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "a", Name: "calculator"},
			{ID: "b", Name: "clock"},
		}})
		c.Append(Message{Role: RoleTool, ToolCallID: "a", Content: "4"})

		pending := c.UnresolvedToolCalls()
		require.Len(t, pending, 1)
		assert.Equal(t, "b", pending[0].ID)
	})

	t.Run("fully resolved turn has none", func(t *testing.T) {
		c := New()
		c.Append(Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "a", Name: "calculator"}}})
		c.Append(Message{Role: RoleTool, ToolCallID: "a", Content: "4"})

		assert.Empty(t, c.UnresolvedToolCalls())
	})

	t.Run("earlier resolved turns are ignored", func(t *testing.T) {
		c := New()
		c.Append(Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "a", Name: "calculator"}}})
		c.Append(Message{Role: RoleTool, ToolCallID: "a", Content: "4"})
		c.Append(Message{Role: RoleAssistant, Content: "done"})

		assert.Empty(t, c.UnresolvedToolCalls())
	})
}

func TestLastAssistantText(t *testing.T) {
	c := New()
	assert.Empty(t, c.LastAssistantText())

	c.Append(Message{Role: RoleUser, Content: "q"})
	c.Append(Message{Role: RoleAssistant, Content: "first"})
	c.Append(Message{Role: RoleUser, Content: "q2"})
	c.Append(Message{Role: RoleAssistant, Content: "second"})

	assert.Equal(t, "second", c.LastAssistantText())
}
