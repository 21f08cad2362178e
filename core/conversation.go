package orchestration

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-tutor/core/llms"
)

// conversation is the dialogue history passed to text generation with each
// new utterance.
type conversation struct {
	mu    sync.RWMutex
	turns []llms.Turn
}

func (c *conversation) History() []llms.Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.turns)
}

func (c *conversation) addUserTurn(utterance Utterance) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := utterance.ID
	if id == "" {
		id = uuid.NewString()
	}
	c.turns = append(c.turns, llms.Turn{ID: id, Role: llms.TurnRoleUser, Content: utterance.Text})
}

// addAssistantTurn records a reply and returns its ID. Empty replies
// without tool calls are not recorded and return "".
func (c *conversation) addAssistantTurn(content string, toolCalls []llms.ToolCall, interrupted bool) string {
	if content == "" && len(toolCalls) == 0 {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.NewString()
	c.turns = append(c.turns, llms.Turn{
		ID:          id,
		Role:        llms.TurnRoleAssistant,
		Content:     content,
		ToolCalls:   slices.Clone(toolCalls),
		Interrupted: interrupted,
	})
	return id
}

func (c *conversation) markInterrupted(turnID string) {
	if turnID == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].ID == turnID {
			c.turns[i].Interrupted = true
			return
		}
	}
}
