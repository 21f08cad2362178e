// Package portaudio runs a duplex PortAudio stream on the default devices.
// It only supports blocking marks, so sessions wait on AwaitMark.
package portaudio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-tutor/core/audio"
)

const defaultFramesPerBuffer = 512

type Client struct {
	framesPerBuffer int
	stream          *portaudio.Stream

	readMu sync.Mutex
	in     []int16

	writeMu sync.Mutex
	out     []int16
	pending []byte
}

func NewClient(framesPerBuffer int) (*Client, error) {
	if framesPerBuffer <= 0 {
		framesPerBuffer = defaultFramesPerBuffer
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	client := &Client{
		framesPerBuffer: framesPerBuffer,
		in:              make([]int16, framesPerBuffer),
		out:             make([]int16, framesPerBuffer),
	}
	stream, err := portaudio.OpenDefaultStream(1, 1, audio.DefaultSampleRate, framesPerBuffer, client.in, client.out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start portaudio stream: %w", err)
	}
	client.stream = stream

	return client, nil
}

// Stream reads the microphone until ctx is done.
func (c *Client) Stream(ctx context.Context, onAudio func(audio []byte)) error {
	for ctx.Err() == nil {
		chunk, err := c.read()
		if err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			return fmt.Errorf("failed to read from portaudio stream: %w", err)
		}
		onAudio(chunk)
	}
	return nil
}

func (c *Client) read() ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if err := c.stream.Read(); err != nil {
		return nil, err
	}
	chunk := make([]byte, 2*len(c.in))
	for i, sample := range c.in {
		binary.LittleEndian.PutUint16(chunk[2*i:], uint16(sample))
	}
	return chunk, nil
}

// SendAudio writes every full buffer right away and keeps the remainder
// for the next call.
func (c *Client) SendAudio(audio []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.pending = append(c.pending, audio...)
	bufferBytes := 2 * c.framesPerBuffer
	for len(c.pending) >= bufferBytes {
		if err := c.writeLocked(c.pending[:bufferBytes]); err != nil {
			return err
		}
		c.pending = c.pending[bufferBytes:]
	}
	return nil
}

func (c *Client) writeLocked(chunk []byte) error {
	clear(c.out)
	for i := 0; i+1 < len(chunk) && i/2 < len(c.out); i += 2 {
		c.out[i/2] = int16(binary.LittleEndian.Uint16(chunk[i:]))
	}
	if err := c.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
		return fmt.Errorf("failed to write to portaudio stream: %w", err)
	}
	return nil
}

func (c *Client) ClearBuffer() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.pending = nil
}

// AwaitMark pads and writes the remainder. Writes block until the device
// has room, so returning means the audio has been handed to the device.
func (c *Client) AwaitMark() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if len(c.pending) == 0 {
		return nil
	}
	chunk := c.pending
	c.pending = nil
	return c.writeLocked(chunk)
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{SampleRate: audio.DefaultSampleRate, Format: audio.EncodingLinear16}
}

func (c *Client) Close() {
	_ = c.stream.Stop()
	_ = c.stream.Close()
	_ = portaudio.Terminate()
}
