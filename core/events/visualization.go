package events

// KindAmplitudeSampled identifies a periodic visualization sample.
const KindAmplitudeSampled Kind = "visualization.amplitude_sampled"

// AmplitudeSampled carries the level and band magnitudes, all in [0, 1], of
// the audio that currently owns the visualization. Source is "microphone"
// or "playback".
type AmplitudeSampled struct {
	Base
	Source string
	Level  float64
	Bands  []float64
}

// NewAmplitudeSampled creates an amplitude sampled event.
func NewAmplitudeSampled(source string, level float64, bands []float64) AmplitudeSampled {
	return AmplitudeSampled{Base: NewBase(KindAmplitudeSampled), Source: source, Level: level, Bands: bands}
}
