// Package features turns live audio into smoothed, fixed-dimension feature
// vectors for the visualization pipeline.
//
// An Extractor owns a rolling sample window (default 2s) and exponential
// smoothing state. Chunks are pushed as they arrive; Extract analyzes the
// most recent window and returns a Result whose vector holds M cepstral
// coefficients, their first and second order deltas and four scalar
// descriptors (see [github.com/auravis/auravis/pkg/audio/mfcc]).
//
// # Fallback behavior
//
// Extract never fails. Windows that are too short, effectively silent or
// that trip an internal transform error all yield the previous smoothed
// result, or a defined silent result when nothing has been extracted yet.
// The smoothing state is only advanced by successful extractions, so a burst
// of silence does not drag the feature estimate toward zero.
//
// Extractor methods are not safe for concurrent use; each stream owns one
// Extractor and serializes access (see the viz package).
package features

import (
	"log/slog"

	"github.com/auravis/auravis/pkg/audio/mfcc"
	"github.com/auravis/auravis/pkg/buffer"
)

// Result is the outcome of one extraction pass.
//
// Vector has length Dim() and feeds the projector. RMS and Centroid are
// exponentially smoothed alongside the vector; Spread, Tonality, ZCR and
// Rolloff are reported raw from the analyzed window. Silent marks results
// produced by the fallback path.
type Result struct {
	Vector []float32

	RMS      float32
	Centroid float32
	Spread   float32
	Tonality float32
	ZCR      float32
	Rolloff  float32

	Silent bool
}

// clone returns a copy whose vector does not alias internal state.
func (r Result) clone() Result {
	out := r
	out.Vector = make([]float32, len(r.Vector))
	copy(out.Vector, r.Vector)
	return out
}

// SilentResult returns the defined all-silent result for a vector of the
// given dimension: zero vector, zero energy, neutral spread and tonality.
func SilentResult(dim int) Result {
	return Result{
		Vector:   make([]float32, dim),
		Spread:   0.5,
		Tonality: 0.5,
		Silent:   true,
	}
}

// Extractor maintains the rolling window and smoothing state for one audio
// stream.
type Extractor struct {
	sampleRate    int
	numCoeffs     int
	windowSeconds float64
	minSeconds    float64
	alpha         float32
	silencePeak   float32
	frameLength   int
	logger        *slog.Logger

	transform *mfcc.Extractor
	window    *buffer.Ring[float32]
	minSamp   int

	hasPrev      bool
	prevVector   []float32
	prevRMS      float32
	prevCentroid float32
	last         Result
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSampleRate sets the stream sample rate in Hz (default 16000).
func WithSampleRate(hz int) Option {
	return func(e *Extractor) {
		if hz > 0 {
			e.sampleRate = hz
		}
	}
}

// WithNumCoeffs sets the number of cepstral coefficients M (default 13).
// The resulting vector dimension is 3M+4.
func WithNumCoeffs(m int) Option {
	return func(e *Extractor) {
		if m > 0 {
			e.numCoeffs = m
		}
	}
}

// WithWindowSeconds sets how much trailing audio is retained for analysis
// (default 2.0 seconds).
func WithWindowSeconds(s float64) Option {
	return func(e *Extractor) {
		if s > 0 {
			e.windowSeconds = s
		}
	}
}

// WithMinSeconds sets the minimum window length required before extraction
// is attempted (default 0.3 seconds).
func WithMinSeconds(s float64) Option {
	return func(e *Extractor) {
		if s > 0 {
			e.minSeconds = s
		}
	}
}

// WithSmoothing sets the exponential smoothing factor applied to new values
// (default 0.3). Must be in (0, 1].
func WithSmoothing(alpha float64) Option {
	return func(e *Extractor) {
		if alpha > 0 && alpha <= 1 {
			e.alpha = float32(alpha)
		}
	}
}

// WithSilencePeak sets the peak amplitude below which a window is treated as
// silence and skipped (default 0.001).
func WithSilencePeak(peak float64) Option {
	return func(e *Extractor) {
		if peak >= 0 {
			e.silencePeak = float32(peak)
		}
	}
}

// WithFrameLength sets the preferred FFT frame length (default 2048).
func WithFrameLength(n int) Option {
	return func(e *Extractor) {
		if n >= mfcc.MinFrameLength {
			e.frameLength = n
		}
	}
}

// WithLogger sets the logger used for fallback diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Extractor with the given options.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		sampleRate:    16000,
		numCoeffs:     13,
		windowSeconds: 2.0,
		minSeconds:    0.3,
		alpha:         0.3,
		silencePeak:   0.001,
		frameLength:   2048,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.transform = mfcc.New(mfcc.Config{
		SampleRate:  e.sampleRate,
		NumCoeffs:   e.numCoeffs,
		FrameLength: e.frameLength,
	})
	capacity := int(float64(e.sampleRate) * e.windowSeconds)
	e.window = buffer.NewRing[float32](capacity)
	e.minSamp = int(float64(e.sampleRate) * e.minSeconds)
	e.last = SilentResult(e.Dim())
	return e
}

// Dim returns the feature vector dimension (3M+4).
func (e *Extractor) Dim() int {
	return mfcc.Dim(e.numCoeffs)
}

// SampleRate returns the configured stream sample rate.
func (e *Extractor) SampleRate() int {
	return e.sampleRate
}

// Buffered returns the number of samples currently in the rolling window.
func (e *Extractor) Buffered() int {
	return e.window.Len()
}

// Push appends decoded samples to the rolling window. Older samples beyond
// the retained window length are dropped.
func (e *Extractor) Push(samples []float32) {
	e.window.Write(samples)
}

// Extract analyzes the current rolling window. See the package comment for
// the fallback rules; Extract never fails.
func (e *Extractor) Extract() Result {
	if e.window.Len() < e.minSamp {
		return e.fallback()
	}
	return e.extract(e.window.Snapshot())
}

// ExtractWindow analyzes the given window directly, with the same fallback
// rules as Extract. The input is not modified.
func (e *Extractor) ExtractWindow(window []float32) Result {
	if len(window) < e.minSamp {
		return e.fallback()
	}
	owned := make([]float32, len(window))
	copy(owned, window)
	return e.extract(owned)
}

// extract runs the transform on a window the extractor owns.
func (e *Extractor) extract(window []float32) Result {
	peak := float32(0)
	for _, s := range window {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}

	if peak < e.silencePeak {
		// Near-silence: do not pollute the smoothing state with
		// noise-floor features.
		return e.fallback()
	}
	if peak > 1.0 {
		inv := 1.0 / peak
		for i := range window {
			window[i] *= inv
		}
	}

	w, err := e.transform.Transform(window)
	if err != nil {
		e.logger.Debug("features: transform failed, using fallback", "error", err)
		return e.fallback()
	}

	s := w.Summary()
	raw := s.Vector()

	if !e.hasPrev {
		e.prevVector = raw
		e.prevRMS = s.RMS
		e.prevCentroid = s.Centroid
		e.hasPrev = true
	} else {
		for i := range e.prevVector {
			e.prevVector[i] = e.alpha*raw[i] + (1-e.alpha)*e.prevVector[i]
		}
		e.prevRMS = e.alpha*s.RMS + (1-e.alpha)*e.prevRMS
		e.prevCentroid = e.alpha*s.Centroid + (1-e.alpha)*e.prevCentroid
	}

	e.last = Result{
		Vector:   e.prevVector,
		RMS:      e.prevRMS,
		Centroid: e.prevCentroid,
		Spread:   s.Spread,
		Tonality: s.Tonality,
		ZCR:      s.ZCR,
		Rolloff:  s.Rolloff,
	}
	return e.last.clone()
}

// fallback returns the previous smoothed result, or the silent result when
// nothing has been extracted yet. The result is marked Silent so callers can
// tell no fresh extraction occurred. Smoothing state is left untouched.
func (e *Extractor) fallback() Result {
	out := e.last.clone()
	out.Silent = true
	return out
}

// Reset clears the rolling window, the smoothing state and the last result.
func (e *Extractor) Reset() {
	e.window.Reset()
	e.hasPrev = false
	e.prevVector = nil
	e.prevRMS = 0
	e.prevCentroid = 0
	e.last = SilentResult(e.Dim())
}
