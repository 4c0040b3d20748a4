package commands

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/auravis/auravis/pkg/audio/pcm"
)

// Scenario is a sequence of signal steps streamed by simulate.
type Scenario struct {
	Steps []ScenarioStep `yaml:"steps" json:"steps"`
}

// ScenarioStep describes one stretch of synthetic signal.
type ScenarioStep struct {
	// Kind is "sine", "noise" or "silence".
	Kind string `yaml:"kind" json:"kind"`

	// Freq is the tone frequency in Hz (sine only).
	Freq float64 `yaml:"freq" json:"freq"`

	// Seconds is the step duration.
	Seconds float64 `yaml:"seconds" json:"seconds"`

	// Amplitude is the peak amplitude in [0,1]; defaults to 0.5 for
	// sine and noise.
	Amplitude float64 `yaml:"amplitude" json:"amplitude"`
}

// render produces the step's samples at the given rate.
func (s ScenarioStep) render(sampleRate int, rng *rand.Rand) ([]float32, error) {
	n := int(s.Seconds * float64(sampleRate))
	if n <= 0 {
		return nil, fmt.Errorf("step %q: seconds must be positive", s.Kind)
	}
	amp := s.Amplitude
	if amp <= 0 {
		amp = 0.5
	}
	out := make([]float32, n)
	switch s.Kind {
	case "sine":
		if s.Freq <= 0 {
			return nil, fmt.Errorf("sine step: freq must be positive")
		}
		w := 2 * math.Pi * s.Freq / float64(sampleRate)
		for i := range out {
			out[i] = float32(amp * math.Sin(w*float64(i)))
		}
	case "noise":
		for i := range out {
			out[i] = float32(amp * (2*rng.Float64() - 1))
		}
	case "silence":
		// all zeros
	default:
		return nil, fmt.Errorf("unknown step kind %q", s.Kind)
	}
	return out, nil
}

// renderPCM renders the whole scenario to little-endian PCM16 bytes.
func (sc Scenario) renderPCM(sampleRate int, rng *rand.Rand) ([]byte, error) {
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario has no steps")
	}
	var samples []float32
	for _, step := range sc.Steps {
		s, err := step.render(sampleRate, rng)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s...)
	}
	return pcm.EncodeSamples(samples), nil
}
