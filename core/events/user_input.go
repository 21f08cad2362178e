package events

const (
	KindUserSpeechStarted       Kind = "user_input.speech_started"
	KindUserSpeechEnded         Kind = "user_input.speech_ended"
	KindUserTranscriptUpdated   Kind = "user_input.transcript_updated"
	KindUserUtteranceFinalized  Kind = "user_input.utterance_finalized"
	KindUserUtteranceSuppressed Kind = "user_input.utterance_suppressed"
)

type UserSpeechStarted struct{ Base }

func NewUserSpeechStarted() UserSpeechStarted {
	return UserSpeechStarted{Base: NewBase(KindUserSpeechStarted)}
}

type UserSpeechEnded struct{ Base }

func NewUserSpeechEnded() UserSpeechEnded {
	return UserSpeechEnded{Base: NewBase(KindUserSpeechEnded)}
}

// UserTranscriptUpdated carries the cumulative transcript of the utterance
// being spoken. Each event replaces the previous one.
type UserTranscriptUpdated struct {
	Base
	Transcript string
	IsFinal    bool
}

func NewUserTranscriptUpdated(transcript string, isFinal bool) UserTranscriptUpdated {
	return UserTranscriptUpdated{Base: NewBase(KindUserTranscriptUpdated), Transcript: transcript, IsFinal: isFinal}
}

type UserUtteranceFinalized struct {
	Base
	UtteranceID string
	Text        string
}

func NewUserUtteranceFinalized(utteranceID, text string) UserUtteranceFinalized {
	return UserUtteranceFinalized{Base: NewBase(KindUserUtteranceFinalized), UtteranceID: utteranceID, Text: text}
}

type UserUtteranceSuppressed struct{ Base }

func NewUserUtteranceSuppressed() UserUtteranceSuppressed {
	return UserUtteranceSuppressed{Base: NewBase(KindUserUtteranceSuppressed)}
}
