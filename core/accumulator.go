package orchestration

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultDebounce = 2000 * time.Millisecond

// UtteranceAccumulator debounces cumulative transcript deltas into
// finalized utterances. An utterance is finalized once no non-empty delta
// has arrived for the debounce delay.
type UtteranceAccumulator struct {
	mu sync.Mutex

	delay time.Duration

	transcript   string
	lastSequence int64
	timer        *time.Timer
	// generation invalidates a timer that fired while Reset or a newer delta
	// was holding the lock.
	generation uint64

	canSend      func() bool
	onFinalized  func(Utterance)
	onSuppressed func()
}

type AccumulatorOption func(*UtteranceAccumulator)

// WithFinalizeGate sets the check that decides, at finalization time,
// whether the utterance may be sent. A closed gate clears the transcript
// and calls the suppressed callback instead.
func WithFinalizeGate(canSend func() bool) AccumulatorOption {
	return func(a *UtteranceAccumulator) { a.canSend = canSend }
}

func WithUtteranceFinalizedCallback(callback func(Utterance)) AccumulatorOption {
	return func(a *UtteranceAccumulator) { a.onFinalized = callback }
}

func WithUtteranceSuppressedCallback(callback func()) AccumulatorOption {
	return func(a *UtteranceAccumulator) { a.onSuppressed = callback }
}

func NewUtteranceAccumulator(delay time.Duration, opts ...AccumulatorOption) *UtteranceAccumulator {
	if delay <= 0 {
		delay = DefaultDebounce
	}

	a := &UtteranceAccumulator{
		delay:        delay,
		canSend:      func() bool { return true },
		onFinalized:  func(Utterance) {},
		onSuppressed: func() {},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnDelta replaces the current transcript with delta's text. Deltas older
// than the last accepted one are ignored; deltas with Sequence 0 are always
// accepted.
func (a *UtteranceAccumulator) OnDelta(delta TranscriptDelta) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if delta.Sequence != 0 {
		if delta.Sequence < a.lastSequence {
			return
		}
		a.lastSequence = delta.Sequence
	}

	a.transcript = delta.Text
	if strings.TrimSpace(delta.Text) == "" {
		return
	}

	a.generation++
	generation := a.generation
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() { a.finalize(generation) })
}

// Transcript returns the text that would be finalized now.
func (a *UtteranceAccumulator) Transcript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.TrimSpace(a.transcript)
}

// Reset cancels a pending finalization and forgets the transcript.
func (a *UtteranceAccumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.generation++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.transcript = ""
	a.lastSequence = 0
}

func (a *UtteranceAccumulator) finalize(generation uint64) {
	a.mu.Lock()
	if generation != a.generation {
		a.mu.Unlock()
		return
	}
	text := strings.TrimSpace(a.transcript)
	a.transcript = ""
	a.timer = nil
	a.mu.Unlock()

	if text == "" {
		return
	}

	if !a.canSend() {
		a.onSuppressed()
		return
	}

	a.onFinalized(Utterance{
		ID:          uuid.NewString(),
		Text:        text,
		FinalizedAt: time.Now(),
	})
}
