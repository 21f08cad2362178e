package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/events"
	"github.com/koscakluka/ema-tutor/core/llms"
	"github.com/koscakluka/ema-tutor/core/speechtotext"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
)

type SessionOption func(*Session)

type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
}

// WithSpeechToTextClient sets the recognizer. Closing is optional; clients
// with a Close method are closed whenever recognition stops.
func WithSpeechToTextClient(client SpeechToText) SessionOption {
	return func(s *Session) { s.speechToText = newSpeechToText(client) }
}

type TextGenerator interface {
	PromptWithStream(ctx context.Context, prompt string, opts ...llms.StreamingPromptOption) llms.Stream
}

func WithTextGenerator(client TextGenerator) SessionOption {
	return func(s *Session) { s.generator = client }
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (texttospeech.AudioStream, error)
}

func WithSynthesizer(client Synthesizer) SessionOption {
	return func(s *Session) { s.synthesizer = client }
}

// CanvasCapturer provides the current drawing as a data URI image for the
// text generator.
type CanvasCapturer interface {
	CaptureCanvas(ctx context.Context) (string, error)
}

func WithCanvasCapturer(capturer CanvasCapturer) SessionOption {
	return func(s *Session) { s.canvas = capturer }
}

type AudioInput interface {
	EncodingInfo() audio.EncodingInfo
	Stream(ctx context.Context, onAudio func(audio []byte)) error
	Close()
}

type AudioInputFine interface {
	StartCapture(ctx context.Context, onAudio func(audio []byte)) error
	StopCapture() error
}

func WithAudioInput(client AudioInput) SessionOption {
	return func(s *Session) { s.inputClient = client }
}

type audioOutputBase interface {
	EncodingInfo() audio.EncodingInfo
	SendAudio(audio []byte) error
	ClearBuffer()
}

type AudioOutputV0 interface {
	audioOutputBase
	AwaitMark() error
}

func WithAudioOutputV0(client AudioOutputV0) SessionOption {
	return func(s *Session) { s.output.Set(client) }
}

type AudioOutputV1 interface {
	audioOutputBase
	Mark(string, func(string)) error
}

func WithAudioOutputV1(client AudioOutputV1) SessionOption {
	return func(s *Session) { s.output.Set(client) }
}

// WithDebounce sets how long the user has to be silent before an utterance
// is finalized.
func WithDebounce(delay time.Duration) SessionOption {
	return func(s *Session) {
		if delay > 0 {
			s.debounce = delay
		}
	}
}

// WithBargeIn controls whether user speech interrupts the assistant. With
// barge-in off, speech heard while the assistant talks is dropped as
// feedback from the speaker.
func WithBargeIn(enabled bool) SessionOption {
	return func(s *Session) { s.bargeIn = enabled }
}

// WithMinBargeInChars sets how much transcript, in characters, counts as
// the user talking over the assistant.
func WithMinBargeInChars(chars int) SessionOption {
	return func(s *Session) {
		if chars > 0 {
			s.minBargeInChars = chars
		}
	}
}

func WithAmplitudeInterval(interval time.Duration) SessionOption {
	return func(s *Session) {
		if interval > 0 {
			s.amplitudeInterval = interval
		}
	}
}

func WithStatusCallback(callback func(Status)) SessionOption {
	return func(s *Session) { s.onStatus = callback }
}

func WithAmplitudeCallback(callback func(AmplitudeSample)) SessionOption {
	return func(s *Session) { s.onAmplitude = callback }
}

// WithEventHandler receives every session event. Handlers are called one at
// a time and must not block.
func WithEventHandler(handler func(events.Event)) SessionOption {
	return func(s *Session) { s.onEvent = handler }
}

// WithLanguages replaces the supported languages. The first one is the
// initial language.
func WithLanguages(languages ...Language) SessionOption {
	return func(s *Session) {
		if len(languages) > 0 {
			s.languages = languages
		}
	}
}

// WithInitialLanguage selects the starting language by code.
func WithInitialLanguage(code string) SessionOption {
	return func(s *Session) { s.initialLanguage = code }
}

func WithInstructions(instructions string) SessionOption {
	return func(s *Session) { s.instructions = instructions }
}

func WithTools(tools ...llms.Tool) SessionOption {
	return func(s *Session) { s.tools = append(s.tools, tools...) }
}

// WithSessionTools lets the model mute the microphone and switch the
// conversation language.
func WithSessionTools() SessionOption {
	return func(s *Session) { s.tools = append(s.tools, sessionTools(s)...) }
}

// WithAIEnabled sets the initial state of the workflow gate.
func WithAIEnabled(enabled bool) SessionOption {
	return func(s *Session) { s.aiEnabled = enabled }
}
