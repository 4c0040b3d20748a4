// Package mfcc computes mel-frequency cepstral coefficients and spectral
// descriptors from PCM audio.
//
// This is the analysis front-end for the visualization pipeline. The input is
// a window of normalized float32 samples; the output is a per-frame matrix of
// M cepstral coefficients with first and second order deltas, plus per-frame
// spectral descriptors (centroid, rolloff, RMS, zero-crossing rate, spread,
// tonality). Use Summary to collapse a window into frame averages.
//
// The frame length adapts to short windows: it is rounded down to the largest
// power of two that fits, never below MinFrameLength. Windows shorter than
// MinFrameLength are rejected with ErrShortWindow.
//
// Default parameters:
//
//	SampleRate:  16000
//	NumCoeffs:   13
//	FrameLength: 2048
//	FrameShift:  512
//	NumMelBins:  40
//	LowFreq:     20
//	HighFreq:    Nyquist
//	PreEmphasis: 0.97
package mfcc

import (
	"errors"
	"fmt"
	"math"
)

// MinFrameLength is the smallest FFT frame the extractor will use.
const MinFrameLength = 512

// ErrShortWindow is returned when the input window is shorter than
// MinFrameLength samples.
var ErrShortWindow = errors.New("mfcc: window shorter than minimum frame")

// Config controls extraction parameters.
type Config struct {
	SampleRate  int     // audio sample rate in Hz (default 16000)
	NumCoeffs   int     // cepstral coefficients per frame (default 13)
	FrameLength int     // preferred FFT frame length in samples (default 2048)
	FrameShift  int     // hop between frames in samples (default 512)
	NumMelBins  int     // mel filterbank size (default 40)
	LowFreq     float64 // lowest filterbank frequency (default 20)
	HighFreq    float64 // highest filterbank frequency (0 = Nyquist)
	PreEmphasis float64 // pre-emphasis coefficient (default 0.97)
}

// DefaultConfig returns the standard analysis config.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		NumCoeffs:   13,
		FrameLength: 2048,
		FrameShift:  512,
		NumMelBins:  40,
		LowFreq:     20,
		PreEmphasis: 0.97,
	}
}

// Dim returns the length of the feature vector assembled by
// [Summary.Vector] for the given coefficient count: M cepstra, M deltas,
// M delta-deltas and 4 scalar descriptors.
func Dim(numCoeffs int) int {
	return 3*numCoeffs + 4
}

// Extractor computes cepstra and descriptors from sample windows.
// It is not safe for concurrent use; each stream owns its own Extractor.
type Extractor struct {
	cfg Config
	dct [][]float64

	// per-frame-length resources, keyed by FFT size
	plans map[int]*plan
}

type plan struct {
	window  []float64
	melBank [][]float64
}

// New creates an Extractor with the given config. Zero fields take defaults.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.NumCoeffs == 0 {
		cfg.NumCoeffs = def.NumCoeffs
	}
	if cfg.FrameLength == 0 {
		cfg.FrameLength = def.FrameLength
	}
	if cfg.FrameShift == 0 {
		cfg.FrameShift = def.FrameShift
	}
	if cfg.NumMelBins == 0 {
		cfg.NumMelBins = def.NumMelBins
	}
	if cfg.LowFreq == 0 {
		cfg.LowFreq = def.LowFreq
	}
	if cfg.HighFreq == 0 {
		cfg.HighFreq = float64(cfg.SampleRate) / 2
	}
	if cfg.PreEmphasis == 0 {
		cfg.PreEmphasis = def.PreEmphasis
	}
	return &Extractor{
		cfg:   cfg,
		dct:   dctMatrix(cfg.NumCoeffs, cfg.NumMelBins),
		plans: make(map[int]*plan),
	}
}

// Config returns the resolved configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// EffectiveFrameLength returns the FFT frame length used for a window of n
// samples: the largest power of two not exceeding both n and the configured
// FrameLength, never below MinFrameLength. Returns 0 when n is too short.
func (e *Extractor) EffectiveFrameLength(n int) int {
	if n < MinFrameLength {
		return 0
	}
	limit := e.cfg.FrameLength
	if n < limit {
		limit = n
	}
	p := MinFrameLength
	for p*2 <= limit {
		p *= 2
	}
	return p
}

// Transform analyzes a window of normalized samples and returns the per-frame
// coefficient matrices and descriptors. The input is not modified.
func (e *Extractor) Transform(window []float32) (*Windowed, error) {
	n := len(window)
	nfft := e.EffectiveFrameLength(n)
	if nfft == 0 {
		return nil, fmt.Errorf("%w: %d < %d samples", ErrShortWindow, n, MinFrameLength)
	}
	for _, s := range window {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.New("mfcc: window contains non-finite samples")
		}
	}

	pl := e.plan(nfft)
	cfg := e.cfg

	shift := cfg.FrameShift
	if shift > nfft {
		shift = nfft
	}
	numFrames := (n-nfft)/shift + 1
	half := nfft/2 + 1

	w := &Windowed{
		SampleRate: cfg.SampleRate,
		FrameLen:   nfft,
		Coeffs:     make([][]float32, numFrames),
		Centroid:   make([]float32, numFrames),
		Rolloff:    make([]float32, numFrames),
		RMS:        make([]float32, numFrames),
		ZCR:        make([]float32, numFrames),
		Spread:     make([]float32, numFrames),
		Tonality:   make([]float32, numFrames),
	}

	re := make([]float64, nfft)
	im := make([]float64, nfft)
	power := make([]float64, half)
	melLog := make([]float64, cfg.NumMelBins)

	for t := 0; t < numFrames; t++ {
		frame := window[t*shift : t*shift+nfft]

		w.RMS[t] = float32(frameRMS(frame))
		w.ZCR[t] = float32(frameZCR(frame))

		// Pre-emphasis + Hamming window into the FFT input.
		for i := 0; i < nfft; i++ {
			s := float64(frame[i])
			if i > 0 {
				s -= cfg.PreEmphasis * float64(frame[i-1])
			}
			re[i] = s * pl.window[i]
			im[i] = 0
		}
		fft(re, im)
		for i := 0; i < half; i++ {
			power[i] = re[i]*re[i] + im[i]*im[i]
		}

		d := spectralDescriptors(power, cfg.SampleRate, nfft)
		w.Centroid[t] = float32(d.centroid)
		w.Rolloff[t] = float32(d.rolloff)
		w.Spread[t] = float32(d.spread)
		w.Tonality[t] = float32(d.tonality)

		// Mel filterbank log energies, then DCT-II to cepstra.
		for m := 0; m < cfg.NumMelBins; m++ {
			sum := 0.0
			for k, wt := range pl.melBank[m] {
				sum += wt * power[k]
			}
			if sum < 1e-10 {
				sum = 1e-10
			}
			melLog[m] = math.Log(sum)
		}
		coeffs := make([]float32, cfg.NumCoeffs)
		for i := 0; i < cfg.NumCoeffs; i++ {
			sum := 0.0
			for j := 0; j < cfg.NumMelBins; j++ {
				sum += melLog[j] * e.dct[i][j]
			}
			coeffs[i] = float32(sum)
		}
		w.Coeffs[t] = coeffs
	}

	w.Delta = deltas(w.Coeffs)
	w.Delta2 = deltas(w.Delta)
	return w, nil
}

// plan returns (building if needed) the window and filterbank for an FFT size.
func (e *Extractor) plan(nfft int) *plan {
	if pl, ok := e.plans[nfft]; ok {
		return pl
	}
	pl := &plan{
		window:  hammingWindow(nfft),
		melBank: melFilterBank(e.cfg.NumMelBins, nfft, e.cfg.SampleRate, e.cfg.LowFreq, e.cfg.HighFreq),
	}
	e.plans[nfft] = pl
	return pl
}

// Windowed holds the per-frame analysis of one sample window.
type Windowed struct {
	SampleRate int
	FrameLen   int

	Coeffs [][]float32 // [T][M] cepstral coefficients
	Delta  [][]float32 // [T][M] first-order deltas
	Delta2 [][]float32 // [T][M] second-order deltas

	// Per-frame descriptors. Centroid, Rolloff, Spread and Tonality are
	// normalized to [0,1]; RMS is a non-negative magnitude; ZCR is a rate
	// in [0,1].
	Centroid []float32
	Rolloff  []float32
	RMS      []float32
	ZCR      []float32
	Spread   []float32
	Tonality []float32
}

// NumFrames returns the number of analysis frames in the window.
func (w *Windowed) NumFrames() int {
	return len(w.Coeffs)
}

// Summary collapses the per-frame analysis into frame averages.
func (w *Windowed) Summary() Summary {
	s := Summary{
		Coeffs:   meanColumns(w.Coeffs),
		Delta:    meanColumns(w.Delta),
		Delta2:   meanColumns(w.Delta2),
		Centroid: mean(w.Centroid),
		Rolloff:  mean(w.Rolloff),
		RMS:      mean(w.RMS),
		ZCR:      mean(w.ZCR),
		Spread:   mean(w.Spread),
		Tonality: mean(w.Tonality),
	}
	return s
}

// Summary is the frame-averaged analysis of a window.
type Summary struct {
	Coeffs []float32
	Delta  []float32
	Delta2 []float32

	Centroid float32
	Rolloff  float32
	RMS      float32
	ZCR      float32
	Spread   float32
	Tonality float32
}

// Vector assembles the flat feature vector: M cepstra means, M delta means,
// M delta-delta means, then centroid, rolloff, RMS and ZCR.
func (s Summary) Vector() []float32 {
	m := len(s.Coeffs)
	out := make([]float32, 0, Dim(m))
	out = append(out, s.Coeffs...)
	out = append(out, s.Delta...)
	out = append(out, s.Delta2...)
	out = append(out, s.Centroid, s.Rolloff, s.RMS, s.ZCR)
	return out
}

func mean(xs []float32) float32 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += float64(x)
	}
	return float32(sum / float64(len(xs)))
}

// meanColumns averages a [T][M] matrix across frames into an [M] vector.
func meanColumns(rows [][]float32) []float32 {
	if len(rows) == 0 {
		return nil
	}
	cols := len(rows[0])
	out := make([]float32, cols)
	acc := make([]float64, cols)
	for _, row := range rows {
		for j, v := range row {
			acc[j] += float64(v)
		}
	}
	for j := range out {
		out[j] = float32(acc[j] / float64(len(rows)))
	}
	return out
}
