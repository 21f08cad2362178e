package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/koscakluka/ema-tutor/core/audio"
)

// audioInput drives the microphone. While the input is not live, captured
// audio is dropped; inputs with capture controls are stopped outright.
type audioInput struct {
	base AudioInput
	fine AudioInputFine

	capturing atomic.Bool
	live      atomic.Bool

	onAudio func(audio []byte)
	onError func(error)
}

func newAudioInput(client AudioInput, onAudio func(audio []byte), onError func(error)) *audioInput {
	if onAudio == nil {
		onAudio = func([]byte) {}
	}
	if onError == nil {
		onError = func(error) {}
	}

	input := &audioInput{onAudio: onAudio, onError: onError}
	if client != nil {
		input.base = client
		if fine, ok := client.(AudioInputFine); ok {
			input.fine = fine
		}
	}
	return input
}

func (a *audioInput) IsConfigured() bool { return a != nil && a.base != nil }
func (a *audioInput) IsLive() bool       { return a != nil && a.live.Load() }

// SetLive starts or pauses delivery of microphone audio.
func (a *audioInput) SetLive(ctx context.Context, live bool) error {
	if !a.IsConfigured() {
		return nil
	}

	a.live.Store(live)
	if live {
		return a.capture(ctx)
	}
	return a.pause()
}

func (a *audioInput) capture(ctx context.Context) error {
	if !a.capturing.CompareAndSwap(false, true) {
		return nil
	}

	if a.fine != nil {
		if err := a.fine.StartCapture(ctx, a.forward); err != nil {
			a.capturing.Store(false)
			return fmt.Errorf("failed to start audio capture: %w", err)
		}
		return nil
	}

	go func() {
		run := panicSafeNamedWorker("audio input", func(ctx context.Context) error {
			return a.base.Stream(ctx, a.forward)
		})
		if err := run(ctx); err != nil {
			a.capturing.Store(false)
			a.onError(err)
		}
	}()
	return nil
}

// pause only stops inputs with capture controls; plain streams keep
// running and forward drops their audio.
func (a *audioInput) pause() error {
	if a.fine == nil || !a.capturing.CompareAndSwap(true, false) {
		return nil
	}

	if err := a.fine.StopCapture(); err != nil {
		return fmt.Errorf("failed to stop audio capture: %w", err)
	}
	return nil
}

func (a *audioInput) Close() error {
	if !a.IsConfigured() {
		return nil
	}

	a.live.Store(false)
	var errs error
	if err := a.pause(); err != nil {
		errs = errors.Join(errs, err)
	}
	a.base.Close()
	a.capturing.Store(false)

	return errs
}

func (a *audioInput) EncodingInfo() audio.EncodingInfo {
	if !a.IsConfigured() {
		return audio.GetDefaultEncodingInfo()
	}

	encoding := a.base.EncodingInfo()
	if encoding.IsZero() {
		return audio.GetDefaultEncodingInfo()
	}
	return encoding
}

func (a *audioInput) forward(audio []byte) {
	if a.live.Load() {
		a.onAudio(audio)
	}
}
