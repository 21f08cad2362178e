package deepgram

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/texttospeech"
)

type deepgramVoice string

const (
	VoiceThalia    deepgramVoice = "aura-2-thalia-en"
	VoiceAndromeda deepgramVoice = "aura-2-andromeda-en"
	VoiceHelena    deepgramVoice = "aura-2-helena-en"
	VoiceApollo    deepgramVoice = "aura-2-apollo-en"
	VoiceArcas     deepgramVoice = "aura-2-arcas-en"
	VoiceAsteria   deepgramVoice = "aura-asteria-en"

	defaultVoice = VoiceThalia
)

func GetAvailableVoices() []deepgramVoice {
	return []deepgramVoice{VoiceThalia, VoiceAndromeda, VoiceHelena, VoiceApollo, VoiceArcas, VoiceAsteria}
}

// TextToSpeechClient synthesizes one sentence per websocket session so every
// sentence can be requested concurrently and cancelled on its own.
type TextToSpeechClient struct {
	apiKey   string
	voice    deepgramVoice
	encoding audio.EncodingInfo
	dialer   *websocket.Dialer
	scheme   string
	host     string
}

type ClientOption func(*TextToSpeechClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiKey = apiKey }
}

func WithDefaultVoice(voice deepgramVoice) ClientOption {
	return func(c *TextToSpeechClient) { c.voice = voice }
}

func WithEncoding(encoding audio.EncodingInfo) ClientOption {
	return func(c *TextToSpeechClient) {
		if !encoding.IsZero() {
			c.encoding = encoding
		}
	}
}

func NewTextToSpeechClient(opts ...ClientOption) (*TextToSpeechClient, error) {
	client := &TextToSpeechClient{
		voice:    defaultVoice,
		encoding: audio.EncodingInfo{SampleRate: 24000, Format: audio.EncodingLinear16},
		dialer:   websocket.DefaultDialer,
		scheme:   "wss",
		host:     "api.deepgram.com",
	}
	if apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok {
		client.apiKey = apiKey
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not found")
	}
	if !slices.Contains(GetAvailableVoices(), client.voice) {
		return nil, fmt.Errorf("invalid voice %q", client.voice)
	}

	return client, nil
}

// Synthesize opens a speak session for text and returns a stream that
// yields audio as Deepgram produces it.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) (texttospeech.AudioStream, error) {
	ctx, span := tracer.Start(ctx, "deepgram synthesize")
	defer span.End()

	options := texttospeech.NewSynthesisOptions(texttospeech.SynthesisOptions{
		Voice:        string(c.voice),
		EncodingInfo: c.encoding,
	}, opts...)

	voice := deepgramVoice(options.Voice)
	if !slices.Contains(GetAvailableVoices(), voice) {
		logger.DebugContext(ctx, "voice not available on deepgram, using default", "voice", options.Voice)
		voice = c.voice
	}

	conn, err := c.connect(ctx, voice, options.EncodingInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to open websocket: %w", err)
	}

	stream := newSpeechStream(conn, options.EncodingInfo)
	if err := stream.speak(text); err != nil {
		_ = stream.Close()
		return nil, err
	}
	go stream.processIncomingMessages(ctx)

	return stream, nil
}
