package audio

// Resampler converts a mono sample stream between sample rates with linear
// interpolation. It keeps the last sample of each chunk so consecutive
// chunks join without a seam.
type Resampler struct {
	step float64

	position float64
	last     int16
	primed   bool
}

func NewResampler(fromRate, toRate int) *Resampler {
	if fromRate <= 0 || toRate <= 0 {
		fromRate, toRate = 1, 1
	}
	return &Resampler{step: float64(fromRate) / float64(toRate)}
}

// Passthrough reports whether the rates match and Process returns its input.
func (r *Resampler) Passthrough() bool { return r.step == 1 }

func (r *Resampler) Process(samples []int16) []int16 {
	if r.Passthrough() || len(samples) == 0 {
		return samples
	}

	source := samples
	if r.primed {
		source = make([]int16, 0, len(samples)+1)
		source = append(source, r.last)
		source = append(source, samples...)
	}

	end := float64(len(source) - 1)
	out := make([]int16, 0, int(float64(len(samples))/r.step)+1)
	position := r.position
	for ; position <= end; position += r.step {
		i := int(position)
		if i+1 >= len(source) {
			out = append(out, source[i])
			continue
		}
		frac := position - float64(i)
		value := float64(source[i])*(1-frac) + float64(source[i+1])*frac
		out = append(out, int16(value))
	}

	r.position = position - end
	r.last = source[len(source)-1]
	r.primed = true
	return out
}

// Reset forgets the stream position.
func (r *Resampler) Reset() {
	r.position = 0
	r.primed = false
}
