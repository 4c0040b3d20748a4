package mfcc

import (
	"errors"
	"math"
	"testing"
)

// sine generates n samples of a sine tone at the given frequency and
// amplitude, sampled at 16kHz.
func sine(n int, freq, amp float64) []float32 {
	pcm := make([]float32, n)
	for i := range pcm {
		pcm[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/16000))
	}
	return pcm
}

func TestHammingWindow(t *testing.T) {
	w := hammingWindow(512)
	if len(w) != 512 {
		t.Fatalf("expected 512, got %d", len(w))
	}
	// Hamming window: endpoints should be ~0.08
	if math.Abs(w[0]-0.08) > 0.01 {
		t.Errorf("w[0] = %f, want ~0.08", w[0])
	}
	// Center should be ~1.0
	if math.Abs(w[255]-1.0) > 0.02 {
		t.Errorf("w[255] = %f, want ~1.0", w[255])
	}
}

func TestMelConversion(t *testing.T) {
	// HTK mel scale: 2595 * log10(1 + f/700)
	mel := hzToMel(1000)
	if math.Abs(mel-1000.45) > 1.0 {
		t.Errorf("hzToMel(1000) = %f, want ~1000.45", mel)
	}
	hz := melToHz(mel)
	if math.Abs(hz-1000) > 0.1 {
		t.Errorf("melToHz(hzToMel(1000)) = %f, want 1000", hz)
	}
}

func TestFFT(t *testing.T) {
	// Known signal: DC + 1Hz cosine in 8-sample window
	n := 8
	re := make([]float64, n)
	im := make([]float64, n)
	for i := range re {
		re[i] = 1.0 + math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	fft(re, im)

	// DC component should be n
	if math.Abs(re[0]-float64(n)) > 0.01 {
		t.Errorf("DC = %f, want %d", re[0], n)
	}
	// First harmonic should be n/2
	if math.Abs(re[1]-float64(n)/2) > 0.01 {
		t.Errorf("H1 real = %f, want %f", re[1], float64(n)/2)
	}
}

func TestEffectiveFrameLength(t *testing.T) {
	e := New(DefaultConfig())
	cases := []struct {
		n, want int
	}{
		{10, 0},
		{511, 0},
		{512, 512},
		{600, 512},
		{1024, 1024},
		{2047, 1024},
		{2048, 2048},
		{16000, 2048}, // capped by FrameLength
	}
	for _, c := range cases {
		if got := e.EffectiveFrameLength(c.n); got != c.want {
			t.Errorf("EffectiveFrameLength(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestTransform440Hz(t *testing.T) {
	e := New(DefaultConfig())

	// 1 second of 440Hz sine at 16kHz, amplitude 0.5
	pcm := sine(16000, 440, 0.5)
	w, err := e.Transform(pcm)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}

	wantFrames := (16000-2048)/512 + 1
	if w.NumFrames() != wantFrames {
		t.Fatalf("expected %d frames, got %d", wantFrames, w.NumFrames())
	}
	if len(w.Coeffs[0]) != 13 {
		t.Fatalf("expected 13 coefficients, got %d", len(w.Coeffs[0]))
	}
	if w.FrameLen != 2048 {
		t.Errorf("FrameLen = %d, want 2048", w.FrameLen)
	}

	for i, row := range w.Coeffs {
		for j, v := range row {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("coeffs[%d][%d] = %f (not finite)", i, j, v)
			}
		}
	}

	s := w.Summary()

	// 440Hz tone: centroid and rolloff sit near 440/8000.
	if s.Centroid < 0.01 || s.Centroid > 0.2 {
		t.Errorf("centroid = %f, want near 0.055", s.Centroid)
	}
	if s.Rolloff > 0.2 {
		t.Errorf("rolloff = %f, want near 0.055", s.Rolloff)
	}
	// RMS of a 0.5 amplitude sine is 0.5/sqrt(2).
	if math.Abs(float64(s.RMS)-0.3536) > 0.05 {
		t.Errorf("rms = %f, want ~0.354", s.RMS)
	}
	// ZCR of 440Hz at 16kHz: 880 crossings/s over 16000 samples/s.
	if math.Abs(float64(s.ZCR)-0.055) > 0.02 {
		t.Errorf("zcr = %f, want ~0.055", s.ZCR)
	}
	// A pure tone is strongly tonal.
	if s.Tonality < 0.5 {
		t.Errorf("tonality = %f, want > 0.5 for a pure tone", s.Tonality)
	}
}

func TestTransformShortWindow(t *testing.T) {
	e := New(DefaultConfig())
	_, err := e.Transform(make([]float32, 10))
	if !errors.Is(err, ErrShortWindow) {
		t.Fatalf("err = %v, want ErrShortWindow", err)
	}
}

func TestTransformAdaptiveFrame(t *testing.T) {
	e := New(DefaultConfig())

	// 600 samples force a 512-sample frame and a single analysis frame.
	w, err := e.Transform(sine(600, 440, 0.5))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if w.FrameLen != 512 {
		t.Errorf("FrameLen = %d, want 512", w.FrameLen)
	}
	if w.NumFrames() != 1 {
		t.Fatalf("expected 1 frame, got %d", w.NumFrames())
	}
	// Too few frames for regression deltas: must be zeros, not an error.
	for j, v := range w.Delta[0] {
		if v != 0 {
			t.Errorf("delta[0][%d] = %f, want 0", j, v)
		}
	}
}

func TestTransformRejectsNonFinite(t *testing.T) {
	e := New(DefaultConfig())
	pcm := sine(1024, 440, 0.5)
	pcm[100] = float32(math.NaN())
	if _, err := e.Transform(pcm); err == nil {
		t.Fatal("expected error for NaN input")
	}
}

func TestDeltas(t *testing.T) {
	t.Run("constant input", func(t *testing.T) {
		rows := make([][]float32, 12)
		for i := range rows {
			rows[i] = []float32{3, -1}
		}
		d := deltas(rows)
		for i, row := range d {
			for j, v := range row {
				if v != 0 {
					t.Errorf("delta[%d][%d] = %f, want 0", i, j, v)
				}
			}
		}
	})

	t.Run("linear ramp", func(t *testing.T) {
		rows := make([][]float32, 12)
		for i := range rows {
			rows[i] = []float32{float32(i)}
		}
		d := deltas(rows)
		// Interior frames of a unit ramp have slope 1.
		if math.Abs(float64(d[6][0])-1.0) > 1e-5 {
			t.Errorf("interior delta = %f, want 1", d[6][0])
		}
	})

	t.Run("two frames fall back to zeros", func(t *testing.T) {
		d := deltas([][]float32{{1}, {5}})
		if d[0][0] != 0 || d[1][0] != 0 {
			t.Errorf("deltas = %v, want zeros", d)
		}
	})
}

func TestSpectralDescriptorsSilence(t *testing.T) {
	d := spectralDescriptors(make([]float64, 257), 16000, 512)
	if d.centroid != 0 || d.rolloff != 0 {
		t.Errorf("centroid/rolloff = %f/%f, want 0/0", d.centroid, d.rolloff)
	}
	if d.spread != 0.5 || d.tonality != 0.5 {
		t.Errorf("spread/tonality = %f/%f, want 0.5/0.5", d.spread, d.tonality)
	}
}

func TestSummaryVector(t *testing.T) {
	e := New(DefaultConfig())
	w, err := e.Transform(sine(8000, 440, 0.5))
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	s := w.Summary()
	vec := s.Vector()

	if len(vec) != Dim(13) {
		t.Fatalf("vector len = %d, want %d", len(vec), Dim(13))
	}
	// Layout: M cepstra, M deltas, M delta-deltas, then the 4 scalars.
	if vec[0] != s.Coeffs[0] {
		t.Errorf("vec[0] = %f, want coeff mean %f", vec[0], s.Coeffs[0])
	}
	if vec[39] != s.Centroid || vec[40] != s.Rolloff || vec[41] != s.RMS || vec[42] != s.ZCR {
		t.Errorf("scalar tail mismatch: %v", vec[39:])
	}
}

func BenchmarkTransform(b *testing.B) {
	e := New(DefaultConfig())
	pcm := sine(32000, 440, 0.5)

	b.ResetTimer()
	b.ReportAllocs()
	for range b.N {
		if _, err := e.Transform(pcm); err != nil {
			b.Fatal(err)
		}
	}
}
