package texttospeech

import (
	"errors"

	"github.com/koscakluka/ema-tutor/core/audio"
)

var ErrStreamClosed = errors.New("audio stream closed")

// AudioStream is a progressively readable synthesis result.
type AudioStream interface {
	// Read blocks until the next chunk of encoded audio is available. It
	// returns io.EOF once the whole sentence has been delivered.
	//
	// Read returns ErrStreamClosed after Close has been called.
	Read() ([]byte, error)
	// Close stops the synthesis (if still in flight) and releases the
	// underlying connection. Repeated calls are ignored.
	Close() error
	// EncodingInfo describes the bytes returned by Read.
	EncodingInfo() audio.EncodingInfo
}

type SynthesisOptions struct {
	// Voice is the provider voice identifier. Empty uses the provider default.
	Voice string
	// Language is the BCP-47 code of the text, used by providers that pick
	// pronunciation from it.
	Language string

	EncodingInfo audio.EncodingInfo
}

type SynthesisOption func(*SynthesisOptions)

func WithVoice(voice string) SynthesisOption {
	return func(o *SynthesisOptions) { o.Voice = voice }
}

func WithLanguage(language string) SynthesisOption {
	return func(o *SynthesisOptions) { o.Language = language }
}

// WithEncodingInfo requests output audio in the given encoding. Zero values
// are ignored and leave the provider default in place.
func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesisOption {
	return func(o *SynthesisOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}

// NewSynthesisOptions applies opts over the provider defaults.
func NewSynthesisOptions(defaults SynthesisOptions, opts ...SynthesisOption) SynthesisOptions {
	options := defaults
	for _, opt := range opts {
		opt(&options)
	}
	if options.EncodingInfo.IsZero() {
		options.EncodingInfo = audio.GetDefaultEncodingInfo()
	}
	return options
}
