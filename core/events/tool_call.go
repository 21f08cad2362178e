package events

// KindToolCallStarted identifies a tool call made by the model.
const KindToolCallStarted Kind = "tool_call.started"

// ToolCallStarted marks a tool call in the reply stream.
type ToolCallStarted struct {
	Base
	ID        string
	Name      string
	Arguments string
}

// NewToolCallStarted creates a tool call started event.
func NewToolCallStarted(id, name, arguments string) ToolCallStarted {
	return ToolCallStarted{Base: NewBase(KindToolCallStarted), ID: id, Name: name, Arguments: arguments}
}
