// Package miniaudio plays and captures mono 16-bit audio on the default
// system devices.
package miniaudio

import (
	"context"
	"errors"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-tutor/core/audio"
)

type Client struct {
	// audioContext is kept to be uninitialized together with the devices
	// that were created on it.
	audioContext *malgo.AllocatedContext
	sampleRate   int

	playback playbackDevice
	capture  captureDevice
}

type ClientOption func(*Client)

// WithSampleRate sets the rate both devices run at. Synthesized speech at
// other rates is resampled before it gets here.
func WithSampleRate(sampleRate int) ClientOption {
	return func(c *Client) {
		if sampleRate > 0 {
			c.sampleRate = sampleRate
		}
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{sampleRate: audio.DefaultSampleRate}
	for _, opt := range opts {
		opt(client)
	}

	audioContext, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}
	client.audioContext = audioContext

	if err := client.playback.init(audioContext, client.sampleRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := client.playback.start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}
	if err := client.capture.init(audioContext, client.sampleRate); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return client, nil
}

// Stream captures until ctx is done.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	if err := c.capture.start(onAudio); err != nil {
		return err
	}
	<-ctx.Done()
	return c.capture.stop()
}

func (c *Client) StartCapture(_ context.Context, onAudio func(audio []byte)) error {
	return c.capture.start(onAudio)
}

func (c *Client) StopCapture() error {
	return c.capture.stop()
}

func (c *Client) SendAudio(audio []byte) error {
	return c.playback.enqueue(audio)
}

func (c *Client) ClearBuffer() {
	c.playback.clear()
}

// Mark calls callback once the device has played everything sent before
// the mark.
func (c *Client) Mark(mark string, callback func(string)) error {
	return c.playback.mark(mark, callback)
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: c.sampleRate, Format: audio.EncodingLinear16}
}

func (c *Client) Close() {
	c.capture.uninit()
	c.playback.uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}

var errDeviceNotInitialized = errors.New("device not initialized")

func deviceConfig(deviceType malgo.DeviceType, sampleRate int) malgo.DeviceConfig {
	config := malgo.DefaultDeviceConfig(deviceType)
	config.SampleRate = uint32(sampleRate)
	config.Alsa.NoMMap = 1
	switch deviceType {
	case malgo.Capture:
		config.Capture.Format = malgo.FormatS16
		config.Capture.Channels = 1
		config.PerformanceProfile = malgo.LowLatency
	case malgo.Playback:
		config.Playback.Format = malgo.FormatS16
		config.Playback.Channels = 1
	}
	return config
}

const bytesPerFrame = 2
