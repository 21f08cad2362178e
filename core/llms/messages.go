package llms

type TurnRole string

const (
	TurnRoleUser      TurnRole = "user"
	TurnRoleAssistant TurnRole = "assistant"
)

// Turn is a single turn taken in the conversation.
type Turn struct {
	ID   string
	Role TurnRole

	// Content is the content of the turn
	// In user's turn it is the utterance,
	// in assistant's turn it is the reply text that was generated
	Content   string
	ToolCalls []ToolCall

	// Interrupted is set on assistant turns the user talked over. Content then
	// holds only what was generated before the interruption.
	Interrupted bool
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	Response  string
}
