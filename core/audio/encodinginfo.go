package audio

import (
	"fmt"
	"time"
)

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: EncodingLinear16}
}

// EncodingInfo describes a mono audio stream.
type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	}

	return 0
}

// BytesPerSecond returns how many encoded bytes make up one second of audio,
// or 0 when the encoding is unknown.
func (e EncodingInfo) BytesPerSecond() int {
	size := e.Format.ByteSize()
	if size <= 0 || e.SampleRate <= 0 {
		return 0
	}
	return e.SampleRate * size
}

// Duration returns the playback duration of byteCount encoded bytes.
func (e EncodingInfo) Duration(byteCount int) time.Duration {
	perSecond := e.BytesPerSecond()
	if perSecond == 0 {
		return 0
	}
	return time.Duration(byteCount) * time.Second / time.Duration(perSecond)
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)

// ParseFormat maps a format name (as used in provider query strings and
// config files) to a known encoding.
func ParseFormat(name string) (encodingFormat, error) {
	switch encodingFormat(name) {
	case EncodingMulaw, EncodingALaw, EncodingLinear16:
		return encodingFormat(name), nil
	case "pcm", "pcm16", "s16le":
		return EncodingLinear16, nil
	}
	return "", fmt.Errorf("unsupported audio format %q", name)
}
