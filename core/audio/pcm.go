package audio

import "encoding/binary"

// Decoder turns encoded audio chunks into signed 16-bit samples as they
// arrive. Chunks may split a linear16 sample in half; the dangling byte is
// kept and prepended to the next chunk.
type Decoder struct {
	format encodingFormat
	carry  []byte
}

func NewDecoder(encoding EncodingInfo) *Decoder {
	format := encoding.Format
	if format == "" {
		format = EncodingLinear16
	}
	return &Decoder{format: format}
}

// Decode returns the complete samples contained in chunk plus any carried
// bytes from a previous call.
func (d *Decoder) Decode(chunk []byte) []int16 {
	switch d.format {
	case EncodingMulaw:
		samples := make([]int16, len(chunk))
		for i, b := range chunk {
			samples[i] = mulawToLinear(b)
		}
		return samples
	case EncodingALaw:
		samples := make([]int16, len(chunk))
		for i, b := range chunk {
			samples[i] = alawToLinear(b)
		}
		return samples
	}

	data := chunk
	if len(d.carry) > 0 {
		data = append(d.carry, chunk...)
		d.carry = nil
	}
	if len(data)%2 == 1 {
		d.carry = []byte{data[len(data)-1]}
		data = data[:len(data)-1]
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return samples
}

// Pending reports whether a partial sample is waiting for more bytes.
func (d *Decoder) Pending() bool { return len(d.carry) > 0 }

// Reset drops any carried partial sample.
func (d *Decoder) Reset() { d.carry = nil }

// EncodeLinear16 packs samples as little-endian signed 16-bit PCM.
func EncodeLinear16(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// Encode converts samples to the requested output format.
func Encode(samples []int16, format encodingFormat) []byte {
	switch format {
	case EncodingMulaw:
		out := make([]byte, len(samples))
		for i, s := range samples {
			out[i] = linearToMulaw(s)
		}
		return out
	case EncodingALaw:
		out := make([]byte, len(samples))
		for i, s := range samples {
			out[i] = linearToALaw(s)
		}
		return out
	}
	return EncodeLinear16(samples)
}

const (
	mulawBias = 0x84
	mulawClip = 32635
)

func mulawToLinear(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	magnitude := ((int32(mantissa) << 3) + mulawBias) << exponent
	magnitude -= mulawBias
	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

func linearToMulaw(sample int16) byte {
	s := int32(sample)
	sign := byte(0)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > mulawClip {
		s = mulawClip
	}
	s += mulawBias

	exponent := byte(7)
	for mask := int32(0x4000); s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((s >> (exponent + 3)) & 0x0F)
	return ^(sign | exponent<<4 | mantissa)
}

func alawToLinear(b byte) int16 {
	b ^= 0x55
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := int32(b & 0x0F)

	var magnitude int32
	if exponent == 0 {
		magnitude = mantissa<<4 + 8
	} else {
		magnitude = (mantissa<<4 + 0x108) << (exponent - 1)
	}
	if sign == 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}

func linearToALaw(sample int16) byte {
	s := int32(sample)
	sign := byte(0x80)
	if s < 0 {
		s = -s - 1
		sign = 0
	}
	if s > 32767 {
		s = 32767
	}

	var exponent byte
	var mantissa byte
	if s >= 256 {
		exponent = 7
		for mask := int32(0x4000); s&mask == 0 && exponent > 1; mask >>= 1 {
			exponent--
		}
		mantissa = byte((s >> (exponent + 3)) & 0x0F)
	} else {
		mantissa = byte(s>>4) & 0x0F
	}
	return (sign | exponent<<4 | mantissa) ^ 0x55
}
