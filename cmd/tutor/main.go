// Command tutor holds a spoken tutoring conversation in the terminal using
// the default microphone and speakers.
//
// Usage:
//
//	tutor -config tutor.yaml
//	tutor -language id-ID -speech openai -audio portaudio
//
// Requirements:
//   - DEEPGRAM_API_KEY for recognition (and synthesis with -speech deepgram)
//   - OPENAI_API_KEY for replies (and synthesis with -speech openai)
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	orchestration "github.com/koscakluka/ema-tutor/core"
	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/audio/miniaudio"
	"github.com/koscakluka/ema-tutor/core/audio/portaudio"
	"github.com/koscakluka/ema-tutor/core/events"
	"github.com/koscakluka/ema-tutor/core/llms/openai"
	deepgramstt "github.com/koscakluka/ema-tutor/core/speechtotext/deepgram"
	deepgramtts "github.com/koscakluka/ema-tutor/core/texttospeech/deepgram"
	openaitts "github.com/koscakluka/ema-tutor/core/texttospeech/openai"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	language := flag.String("language", "", "Conversation language code (en-US, id-ID)")
	speech := flag.String("speech", "", "Speech synthesis provider: 'deepgram' or 'openai'")
	audioBackend := flag.String("audio", "", "Audio backend: 'miniaudio' or 'portaudio'")
	noBargeIn := flag.Bool("no-barge-in", false, "Do not let speech interrupt the tutor")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *language != "" {
		cfg.Language = *language
	}
	if *speech != "" {
		cfg.Speech = *speech
	}
	if *audioBackend != "" {
		cfg.Audio = *audioBackend
	}
	if *noBargeIn {
		bargeIn := false
		cfg.BargeIn = &bargeIn
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config) error {
	recognizer, err := deepgramstt.NewTranscriptionClient()
	if err != nil {
		return fmt.Errorf("failed to create recognizer: %w", err)
	}

	var llmOpts []openai.ClientOption
	if cfg.Model != "" {
		llmOpts = append(llmOpts, openai.WithModel(cfg.Model))
	}
	generator, err := openai.NewClient(llmOpts...)
	if err != nil {
		return fmt.Errorf("failed to create text generator: %w", err)
	}

	opts := cfg.sessionOptions()
	opts = append(opts,
		orchestration.WithSpeechToTextClient(recognizer),
		orchestration.WithTextGenerator(generator),
	)

	switch cfg.Audio {
	case "miniaudio":
		device, err := miniaudio.NewClient()
		if err != nil {
			return fmt.Errorf("failed to open audio devices: %w", err)
		}
		defer device.Close()
		opts = append(opts, orchestration.WithAudioInput(device), orchestration.WithAudioOutputV1(device))

		synthesizer, err := newSynthesizer(cfg.Speech, device.EncodingInfo())
		if err != nil {
			return err
		}
		opts = append(opts, orchestration.WithSynthesizer(synthesizer))

	case "portaudio":
		device, err := portaudio.NewClient(0)
		if err != nil {
			return fmt.Errorf("failed to open audio devices: %w", err)
		}
		defer device.Close()
		opts = append(opts, orchestration.WithAudioInput(device), orchestration.WithAudioOutputV0(device))

		synthesizer, err := newSynthesizer(cfg.Speech, device.EncodingInfo())
		if err != nil {
			return err
		}
		opts = append(opts, orchestration.WithSynthesizer(synthesizer))

	default:
		return fmt.Errorf("unknown audio backend %q, use 'miniaudio' or 'portaudio'", cfg.Audio)
	}

	updates := make(chan tea.Msg, 256)
	opts = append(opts, orchestration.WithEventHandler(func(event events.Event) {
		if _, ok := event.(events.AmplitudeSampled); ok {
			select {
			case updates <- eventMsg{event: event}:
			default:
			}
			return
		}
		select {
		case updates <- eventMsg{event: event}:
		case <-ctx.Done():
		}
	}))
	opts = append(opts, orchestration.WithStatusCallback(func(status orchestration.Status) {
		select {
		case updates <- statusMsg(status):
		case <-ctx.Done():
		}
	}))

	session := orchestration.NewSession(opts...)
	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.Close()

	program := tea.NewProgram(newModel(session, cfg.Language, updates), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal ui failed: %w", err)
	}
	return nil
}

func newSynthesizer(provider string, encoding audio.EncodingInfo) (orchestration.Synthesizer, error) {
	switch provider {
	case "deepgram":
		client, err := deepgramtts.NewTextToSpeechClient(deepgramtts.WithEncoding(encoding))
		if err != nil {
			return nil, fmt.Errorf("failed to create deepgram synthesizer: %w", err)
		}
		return client, nil
	case "openai":
		client, err := openaitts.NewTextToSpeechClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create openai synthesizer: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown speech provider %q, use 'deepgram' or 'openai'", provider)
	}
}
