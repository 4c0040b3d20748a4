package mfcc

import "math"

// descriptors holds the frequency-domain descriptors of one frame.
type descriptors struct {
	centroid float64
	rolloff  float64
	spread   float64
	tonality float64
}

// spectralDescriptors computes the frequency-domain descriptors from a power
// spectrum of nfft/2+1 bins. Centroid and rolloff are normalized by the
// Nyquist frequency, spread by a quarter of the sample rate; all are clamped
// to [0,1]. Frames with no spectral energy yield centroid 0, rolloff 0 and
// the neutral 0.5 for spread and tonality.
func spectralDescriptors(power []float64, sampleRate, nfft int) descriptors {
	d := descriptors{spread: 0.5, tonality: 0.5}

	var total float64
	for _, p := range power {
		total += p
	}
	if total <= 0 {
		return d
	}

	nyquist := float64(sampleRate) / 2
	binHz := float64(sampleRate) / float64(nfft)

	var wsum float64
	for k, p := range power {
		wsum += float64(k) * binHz * p
	}
	centroidHz := wsum / total
	d.centroid = clamp01(centroidHz / nyquist)

	// Rolloff: lowest frequency containing 85% of the spectral energy.
	target := 0.85 * total
	rolloffHz := nyquist
	cum := 0.0
	for k, p := range power {
		cum += p
		if cum >= target {
			rolloffHz = float64(k) * binHz
			break
		}
	}
	d.rolloff = clamp01(rolloffHz / nyquist)

	// Spread: energy-weighted standard deviation around the centroid.
	var vsum float64
	for k, p := range power {
		dv := float64(k)*binHz - centroidHz
		vsum += dv * dv * p
	}
	bw := math.Sqrt(vsum / total)
	d.spread = clamp01(bw / (float64(sampleRate) / 4))

	// Tonality: 1 - spectral flatness (geometric over arithmetic mean).
	// Pure tones approach 1, white noise approaches 0.
	n := float64(len(power))
	logSum := 0.0
	for _, p := range power {
		if p < 1e-10 {
			p = 1e-10
		}
		logSum += math.Log(p)
	}
	gm := math.Exp(logSum / n)
	am := total / n
	d.tonality = clamp01(1 - gm/am)

	return d
}

// frameRMS computes the root mean square energy of a time-domain frame.
func frameRMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// frameZCR computes the zero-crossing rate of a time-domain frame as sign
// changes per sample pair, a rate in [0,1].
func frameZCR(frame []float32) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if frame[i-1]*frame[i] < 0 {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
