package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

type captureDevice struct {
	mu      sync.Mutex
	device  *malgo.Device
	onAudio func(audio []byte)
}

func (c *captureDevice) init(audioContext *malgo.AllocatedContext, sampleRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	config := deviceConfig(malgo.Capture, sampleRate)
	// 30ms periods keep recognition latency low.
	config.PeriodSizeInFrames = uint32(sampleRate * 30 / 1000)
	config.Periods = 3

	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if n == 0 || len(input) < n {
				return
			}

			c.mu.Lock()
			onAudio := c.onAudio
			c.mu.Unlock()
			if onAudio != nil {
				// The device reuses input after the callback returns.
				onAudio(append([]byte(nil), input[:n]...))
			}
		},
	})
	if err != nil {
		return err
	}
	c.device = device
	return nil
}

func (c *captureDevice) start(onAudio func(audio []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return errDeviceNotInitialized
	}
	c.onAudio = onAudio
	if c.device.IsStarted() {
		return nil
	}
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (c *captureDevice) stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return errDeviceNotInitialized
	}
	c.onAudio = nil
	if !c.device.IsStarted() {
		return nil
	}
	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (c *captureDevice) uninit() {
	c.mu.Lock()
	device := c.device
	c.device = nil
	c.onAudio = nil
	c.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
}
