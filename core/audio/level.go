package audio

import "math"

// Level returns the RMS level of samples normalized to [0, 1].
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}
	return math.Min(1, math.Sqrt(sum/float64(len(samples))))
}

// Bands returns count magnitudes in [0, 1] taken from the spectrum of
// samples. Bins are picked on a quadratic curve so the low end (where speech
// energy sits) gets more resolution than the high end.
func Bands(samples []int16, count int) []float64 {
	bands := make([]float64, count)
	if count == 0 || len(samples) < 2 {
		return bands
	}

	bins := len(samples) / 2
	for i := range bands {
		position := float64(i) / float64(count)
		bin := int(math.Floor(position * position * float64(bins-1)))
		// The DC bin only carries the offset, never voice energy.
		if bin == 0 {
			bin = 1
		}
		bands[i] = binMagnitude(samples, bin)
	}
	return bands
}

// binMagnitude evaluates a single DFT bin with the Goertzel recurrence,
// normalized so a full-scale sine at that bin reports 1.
func binMagnitude(samples []int16, bin int) float64 {
	n := float64(len(samples))
	coefficient := 2 * math.Cos(2*math.Pi*float64(bin)/n)

	var prev, prev2 float64
	for i, s := range samples {
		// Hann window keeps leakage from neighbouring bins down.
		window := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/(n-1))
		current := float64(s)/math.MaxInt16*window + coefficient*prev - prev2
		prev2 = prev
		prev = current
	}

	power := prev*prev + prev2*prev2 - coefficient*prev*prev2
	if power < 0 {
		power = 0
	}
	// A windowed full-scale sine peaks at n/4.
	return math.Min(1, math.Sqrt(power)/(n/4))
}
