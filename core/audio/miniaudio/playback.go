package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// playbackDevice plays queued audio and confirms marks as the device
// consumes the audio before them. Positions count bytes since the device
// was initialized.
type playbackDevice struct {
	mu     sync.Mutex
	device *malgo.Device

	pending []byte
	written int
	played  int
	marks   []playbackMark
}

type playbackMark struct {
	name     string
	position int
	callback func(string)
}

func (p *playbackDevice) init(audioContext *malgo.AllocatedContext, sampleRate int) error {
	config := deviceConfig(malgo.Playback, sampleRate)
	// ~100ms periods
	config.PeriodSizeInFrames = uint32(sampleRate / 10)
	config.Periods = 4

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{Data: p.render})
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.device = device
	p.mu.Unlock()
	return nil
}

func (p *playbackDevice) start() error {
	p.mu.Lock()
	device := p.device
	p.mu.Unlock()

	if device == nil {
		return errDeviceNotInitialized
	}
	if err := device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}
	return nil
}

func (p *playbackDevice) enqueue(audio []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device == nil {
		return errDeviceNotInitialized
	}
	p.pending = append(p.pending, audio...)
	p.written += len(audio)
	return nil
}

// clear drops queued audio along with the marks waiting on it.
func (p *playbackDevice) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = nil
	p.played = p.written
	p.marks = nil
}

func (p *playbackDevice) mark(name string, callback func(string)) error {
	p.mu.Lock()
	if p.device == nil {
		p.mu.Unlock()
		return errDeviceNotInitialized
	}

	if len(p.pending) == 0 {
		p.mu.Unlock()
		go callback(name)
		return nil
	}
	p.marks = append(p.marks, playbackMark{name: name, position: p.written, callback: callback})
	p.mu.Unlock()
	return nil
}

func (p *playbackDevice) render(output, _ []byte, frameCount uint32) {
	need := min(int(frameCount)*bytesPerFrame, len(output))

	p.mu.Lock()
	n := copy(output[:need], p.pending)
	p.pending = p.pending[n:]
	p.played += n

	var passed []playbackMark
	for len(p.marks) > 0 && p.marks[0].position <= p.played {
		passed = append(passed, p.marks[0])
		p.marks = p.marks[1:]
	}
	p.mu.Unlock()

	clear(output[n:need])

	if len(passed) > 0 {
		// Never call back on the audio thread.
		go func() {
			for _, mark := range passed {
				mark.callback(mark.name)
			}
		}()
	}
}

func (p *playbackDevice) uninit() {
	p.mu.Lock()
	device := p.device
	p.device = nil
	p.pending = nil
	p.marks = nil
	p.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
}
