package orchestration

import (
	"sync"

	"github.com/koscakluka/ema-tutor/core/events"
)

// eventEmitter serializes calls into host callbacks. The event loop,
// amplitude samplers and playback all emit from their own goroutines.
type eventEmitter struct {
	mu sync.Mutex

	onEvent     func(events.Event)
	onStatus    func(Status)
	onAmplitude func(AmplitudeSample)
}

func newEventEmitter(onEvent func(events.Event), onStatus func(Status), onAmplitude func(AmplitudeSample)) *eventEmitter {
	if onEvent == nil {
		onEvent = func(events.Event) {}
	}
	if onStatus == nil {
		onStatus = func(Status) {}
	}
	if onAmplitude == nil {
		onAmplitude = func(AmplitudeSample) {}
	}
	return &eventEmitter{onEvent: onEvent, onStatus: onStatus, onAmplitude: onAmplitude}
}

func (e *eventEmitter) Emit(event events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEvent(event)
}

func (e *eventEmitter) Status(status Status) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStatus(status)
	e.onEvent(events.NewTurnStateChanged(status.State.String(), status.Label))
}

func (e *eventEmitter) Amplitude(sample AmplitudeSample) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onAmplitude(sample)
	e.onEvent(events.NewAmplitudeSampled(string(sample.Source), sample.Level, sample.Bands))
}

func (e *eventEmitter) Notice(level events.NoticeLevel, message string, persistent bool) {
	e.Emit(events.NewNoticeRaised(level, message, persistent))
}
