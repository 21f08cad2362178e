package orchestration

import "errors"

var (
	// ErrRecognitionUnavailable is reported when speech recognition is not
	// configured or could not be started. The session stays idle until the
	// next gate, mute or visibility change.
	ErrRecognitionUnavailable = errors.New("speech recognition unavailable")
	// ErrSynthesisFailed marks a sentence that was skipped because synthesis
	// failed.
	ErrSynthesisFailed = errors.New("speech synthesis failed")
	// ErrDispatchFailed is reported when the reply for an utterance could not
	// be generated.
	ErrDispatchFailed = errors.New("failed to dispatch utterance")
)
