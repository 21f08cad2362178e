package orchestration

import (
	"reflect"

	"github.com/koscakluka/ema-tutor/core/audio"
)

// audioOutput routes playback to either a mark-capable (v1) or a blocking
// mark (v0) output. An unconfigured facade drops audio and confirms marks
// right away, so playback still completes.
type audioOutput struct {
	base audioOutputBase
	v0   AudioOutputV0
	v1   AudioOutputV1
}

func newAudioOutput(client audioOutputBase) *audioOutput {
	output := &audioOutput{}
	output.Set(client)
	return output
}

// Set replaces the output client. Nil and typed-nil clients leave the
// facade unconfigured.
func (a *audioOutput) Set(client audioOutputBase) {
	if a == nil {
		return
	}

	a.base, a.v0, a.v1 = nil, nil, nil
	if isNilAudioOutputBase(client) {
		return
	}
	a.base = client

	switch typed := client.(type) {
	case AudioOutputV1:
		a.v1 = typed
	case AudioOutputV0:
		a.v0 = typed
	}
}

func (a *audioOutput) isConfigured() bool {
	return a != nil && (a.v0 != nil || a.v1 != nil)
}

func (a *audioOutput) SendAudio(audio []byte) error {
	if !a.isConfigured() {
		return nil
	}
	return a.base.SendAudio(audio)
}

// Mark calls callback once everything sent before it has been played. v0
// outputs block in AwaitMark, so the wait happens on its own goroutine.
func (a *audioOutput) Mark(mark string, callback func(string)) error {
	switch {
	case a.isConfigured() && a.v1 != nil:
		return a.v1.Mark(mark, callback)
	case a.isConfigured() && a.v0 != nil:
		go func() {
			if err := a.v0.AwaitMark(); err != nil {
				logger.Debug("waiting for playback mark failed", "mark", mark, "error", err)
			}
			callback(mark)
		}()
		return nil
	}

	callback(mark)
	return nil
}

// Clear drops audio that was sent but not played yet.
func (a *audioOutput) Clear() {
	if a.isConfigured() {
		a.base.ClearBuffer()
	}
}

// EncodingInfo falls back to the default encoding when nothing is
// configured.
func (a *audioOutput) EncodingInfo() audio.EncodingInfo {
	if !a.isConfigured() {
		return audio.GetDefaultEncodingInfo()
	}

	encoding := a.base.EncodingInfo()
	if encoding.IsZero() {
		return audio.GetDefaultEncodingInfo()
	}
	return encoding
}

func isNilAudioOutputBase(client audioOutputBase) bool {
	if client == nil {
		return true
	}

	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}
