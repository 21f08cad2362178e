package orchestration

import (
	"time"

	"github.com/koscakluka/ema-tutor/core/speechtotext"
)

type TranscriptDelta = speechtotext.TranscriptDelta

// Utterance is one finalized spoken input. Text is never empty.
type Utterance struct {
	ID          string
	Text        string
	FinalizedAt time.Time
}

// ReplyBuffer collects the streamed text of one assistant reply. The
// segmenter advances consumed; text only grows.
type ReplyBuffer struct {
	turn     uint64
	text     string
	consumed int

	nextOrdinal int
}

func NewReplyBuffer(turn uint64) *ReplyBuffer {
	return &ReplyBuffer{turn: turn}
}

func (b *ReplyBuffer) Append(token string) { b.text += token }
func (b *ReplyBuffer) Text() string        { return b.text }
func (b *ReplyBuffer) Turn() uint64        { return b.turn }

// Consumed returns how many bytes of Text have been segmented already.
func (b *ReplyBuffer) Consumed() int { return b.consumed }

// Pending returns the text that has not been segmented yet.
func (b *ReplyBuffer) Pending() string { return b.text[b.consumed:] }

// Chunks returns how many sentence chunks were cut from this reply.
func (b *ReplyBuffer) Chunks() int { return b.nextOrdinal }

func (b *ReplyBuffer) newChunk(text string) SentenceChunk {
	chunk := SentenceChunk{Text: text, Ordinal: b.nextOrdinal, Turn: b.turn}
	b.nextOrdinal++
	return chunk
}

// SentenceChunk is one sentence of an assistant reply, ready for synthesis.
type SentenceChunk struct {
	Text    string
	Ordinal int
	Turn    uint64
}

type TurnState int

const (
	TurnStateIdle TurnState = iota
	TurnStateListeningForUser
	TurnStateAwaitingAssistantReply
	TurnStateSpeaking
	TurnStateInterrupted
)

func (s TurnState) String() string {
	switch s {
	case TurnStateIdle:
		return "idle"
	case TurnStateListeningForUser:
		return "listening_for_user"
	case TurnStateAwaitingAssistantReply:
		return "awaiting_assistant_reply"
	case TurnStateSpeaking:
		return "speaking"
	case TurnStateInterrupted:
		return "interrupted"
	}
	return "unknown"
}

const (
	StatusLabelAIDisabled  = "AI Disabled"
	StatusLabelListening   = "Listening"
	StatusLabelProcessing  = "Processing"
	StatusLabelSpeaking    = "Speak to interrupt"
	StatusLabelInterrupted = "Interrupted"

	StatusLabelRetrieving = "Retrieving relevant information"
	StatusLabelThinking   = "Thinking"
)

// Status is what the host displays for the current turn state. Label is
// more specific than the state while a reply is being worked on.
type Status struct {
	State TurnState
	Label string
}

func statusFor(state TurnState, bargeIn bool) Status {
	status := Status{State: state}
	switch state {
	case TurnStateIdle:
		status.Label = StatusLabelAIDisabled
	case TurnStateListeningForUser:
		status.Label = StatusLabelListening
	case TurnStateAwaitingAssistantReply:
		status.Label = StatusLabelProcessing
	case TurnStateSpeaking:
		status.Label = StatusLabelSpeaking
		if !bargeIn {
			status.Label = "Speaking"
		}
	case TurnStateInterrupted:
		status.Label = StatusLabelInterrupted
	}
	return status
}

// toolStatusLabel is shown while the model is working with a tool.
func toolStatusLabel(toolName string) string {
	if toolName == retrievalToolName {
		return StatusLabelRetrieving
	}
	return StatusLabelThinking
}
