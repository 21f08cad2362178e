package speechtotext

import "github.com/koscakluka/ema-tutor/core/audio"

// TranscriptDelta is a cumulative snapshot of what the recognizer has heard
// since the transcript was last reset. Text always replaces the previous
// delta's text. Sequence increases by one per delta within a recognizer.
type TranscriptDelta struct {
	Text     string
	IsFinal  bool
	Sequence int64
}

type TranscriptionOptions struct {
	TranscriptDeltaCallback func(TranscriptDelta)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()
	// ErrorCallback is called once when an established recognition session is
	// lost. No deltas follow it until Transcribe is called again.
	ErrorCallback func(error)

	// Language is a BCP-47 code such as "en-US" or "id-ID".
	Language     string
	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithTranscriptDeltaCallback(callback func(TranscriptDelta)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptDeltaCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithErrorCallback(callback func(error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ErrorCallback = callback
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}

// NewTranscriptionOptions applies opts over no-op callbacks and the default
// encoding so implementations never need nil checks.
func NewTranscriptionOptions(opts ...TranscriptionOption) TranscriptionOptions {
	options := TranscriptionOptions{
		TranscriptDeltaCallback: func(TranscriptDelta) {},
		SpeechStartedCallback:   func() {},
		SpeechEndedCallback:     func() {},
		ErrorCallback:           func(error) {},
		Language:                "en-US",
		EncodingInfo:            audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.TranscriptDeltaCallback == nil {
		options.TranscriptDeltaCallback = func(TranscriptDelta) {}
	}
	if options.SpeechStartedCallback == nil {
		options.SpeechStartedCallback = func() {}
	}
	if options.SpeechEndedCallback == nil {
		options.SpeechEndedCallback = func() {}
	}
	if options.ErrorCallback == nil {
		options.ErrorCallback = func(error) {}
	}
	if options.EncodingInfo.IsZero() {
		options.EncodingInfo = audio.GetDefaultEncodingInfo()
	}
	return options
}
