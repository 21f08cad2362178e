package events

const (
	// KindAssistantPlaybackStarted identifies the start of a sentence's playback.
	KindAssistantPlaybackStarted Kind = "assistant_playback.started"
	// KindAssistantPlaybackEnded identifies the end of a sentence's playback.
	KindAssistantPlaybackEnded Kind = "assistant_playback.ended"
)

// AssistantPlaybackStarted reports the sentence that is playing now.
type AssistantPlaybackStarted struct {
	Base
	Ordinal int
	Text    string
}

// NewAssistantPlaybackStarted creates an assistant playback started event.
func NewAssistantPlaybackStarted(ordinal int, text string) AssistantPlaybackStarted {
	return AssistantPlaybackStarted{Base: NewBase(KindAssistantPlaybackStarted), Ordinal: ordinal, Text: text}
}

// AssistantPlaybackEnded reports that a sentence stopped playing. Stopped is
// set when playback was cut short.
type AssistantPlaybackEnded struct {
	Base
	Ordinal int
	Text    string
	Stopped bool
}

// NewAssistantPlaybackEnded creates an assistant playback ended event.
func NewAssistantPlaybackEnded(ordinal int, text string, stopped bool) AssistantPlaybackEnded {
	return AssistantPlaybackEnded{Base: NewBase(KindAssistantPlaybackEnded), Ordinal: ordinal, Text: text, Stopped: stopped}
}
