// Package conversation holds the append-only ordered history of one
// agent session: user turns, assistant turns (with any tool-call
// requests), and tool results.
package conversation

import (
	"sync"
	"time"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the assistant.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Message is a single conversation turn. Once appended to a
// Conversation it never changes.
type Message struct {
	Ordinal    int        `json:"ordinal"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolError  bool       `json:"tool_error,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Conversation is an append-only ordered message sequence. Appends are
// safe under concurrent writers; reads return snapshots.
type Conversation struct {
	mu       sync.Mutex
	messages []Message
}

// New creates an empty conversation.
func New() *Conversation {
	return &Conversation{}
}

// Append adds a message, assigning its ordinal position. The stored
// message (with ordinal and timestamp filled in) is returned. Identical
// content appended twice yields two distinct messages.
func (c *Conversation) Append(msg Message) Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg.Ordinal = len(c.messages)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if len(msg.ToolCalls) > 0 {
		calls := make([]ToolCall, len(msg.ToolCalls))
		copy(calls, msg.ToolCalls)
		msg.ToolCalls = calls
	}

	c.messages = append(c.messages, msg)
	return msg
}

// Messages returns a snapshot of the full ordered history.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of appended messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// UnresolvedToolCalls returns tool calls from the most recent assistant
// message that have no matching tool result yet. The agent loop must
// drain this to empty before requesting the next assistant turn.
func (c *Conversation) UnresolvedToolCalls() []ToolCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	resolved := make(map[string]bool)
	var pending []ToolCall

	for i := len(c.messages) - 1; i >= 0; i-- {
		msg := c.messages[i]
		if msg.Role == RoleTool {
			resolved[msg.ToolCallID] = true
			continue
		}
		if msg.Role == RoleAssistant {
			for _, tc := range msg.ToolCalls {
				if !resolved[tc.ID] {
					pending = append(pending, tc)
				}
			}
			break
		}
	}

	return pending
}

// LastAssistantText returns the content of the most recent assistant
// message, or empty string if none exists.
func (c *Conversation) LastAssistantText() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleAssistant {
			return c.messages[i].Content
		}
	}
	return ""
}
