package events

const (
	// KindAssistantResponseStarted identifies a reply request for a turn.
	KindAssistantResponseStarted Kind = "assistant_response.started"
	// KindAssistantResponseSegment identifies streamed reply text.
	KindAssistantResponseSegment Kind = "assistant_response.segment"
	// KindAssistantResponseSentence identifies a sentence queued for speech.
	KindAssistantResponseSentence Kind = "assistant_response.sentence"
	// KindAssistantResponseFinal identifies the end of the reply stream.
	KindAssistantResponseFinal Kind = "assistant_response.final"
	// KindAssistantResponseFailed identifies a reply that could not be generated.
	KindAssistantResponseFailed Kind = "assistant_response.failed"
)

// AssistantResponseStarted marks the dispatch of an utterance for a reply.
type AssistantResponseStarted struct {
	Base
	Turn uint64
}

// NewAssistantResponseStarted creates an assistant response started event.
func NewAssistantResponseStarted(turn uint64) AssistantResponseStarted {
	return AssistantResponseStarted{Base: NewBase(KindAssistantResponseStarted), Turn: turn}
}

// AssistantResponseSegment carries streamed reply text in arrival order.
type AssistantResponseSegment struct {
	Base
	Segment string
}

// NewAssistantResponseSegment creates an assistant response segment event.
func NewAssistantResponseSegment(segment string) AssistantResponseSegment {
	return AssistantResponseSegment{Base: NewBase(KindAssistantResponseSegment), Segment: segment}
}

// AssistantResponseSentence carries a sentence handed to speech synthesis.
type AssistantResponseSentence struct {
	Base
	Ordinal int
	Text    string
}

// NewAssistantResponseSentence creates an assistant response sentence event.
func NewAssistantResponseSentence(ordinal int, text string) AssistantResponseSentence {
	return AssistantResponseSentence{Base: NewBase(KindAssistantResponseSentence), Ordinal: ordinal, Text: text}
}

// AssistantResponseFinal carries the complete reply text.
type AssistantResponseFinal struct {
	Base
	Text string
}

// NewAssistantResponseFinal creates an assistant response final event.
func NewAssistantResponseFinal(text string) AssistantResponseFinal {
	return AssistantResponseFinal{Base: NewBase(KindAssistantResponseFinal), Text: text}
}

// AssistantResponseFailed carries the reason a reply could not be generated.
type AssistantResponseFailed struct {
	Base
	Error string
}

// NewAssistantResponseFailed creates an assistant response failed event.
func NewAssistantResponseFailed(err string) AssistantResponseFailed {
	return AssistantResponseFailed{Base: NewBase(KindAssistantResponseFailed), Error: err}
}
