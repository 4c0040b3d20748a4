package viz

import (
	"log/slog"
	"sync"

	"github.com/auravis/auravis/pkg/audio/pcm"
	"github.com/auravis/auravis/pkg/features"
	"github.com/auravis/auravis/pkg/jsontime"
	"github.com/auravis/auravis/pkg/manifold"
	"github.com/auravis/auravis/pkg/projector"
)

// SessionConfig holds the per-session pipeline parameters. Zero fields take
// the defaults from DefaultSessionConfig.
type SessionConfig struct {
	// SampleRate is the PCM sample rate in Hz.
	SampleRate int `json:"sample_rate" yaml:"sample_rate"`

	// NumCoeffs is the number of cepstral coefficients M; the feature
	// vector has dimension 3M+4.
	NumCoeffs int `json:"num_coeffs" yaml:"num_coeffs"`

	// WindowSeconds is how much trailing audio the extractor retains.
	WindowSeconds float64 `json:"window_seconds" yaml:"window_seconds"`

	// MinSeconds is the minimum window before extraction is attempted.
	MinSeconds float64 `json:"min_seconds" yaml:"min_seconds"`

	// Smoothing is the exponential smoothing factor for features.
	Smoothing float64 `json:"smoothing" yaml:"smoothing"`

	// SilencePeak is the peak amplitude below which a window is silence.
	SilencePeak float64 `json:"silence_peak" yaml:"silence_peak"`

	// AdmitRMS is the minimum feature RMS for a result to count as
	// training material.
	AdmitRMS float64 `json:"admit_rms" yaml:"admit_rms"`

	// TargetSamples is the number of admitted vectors that trigger
	// training.
	TargetSamples int `json:"target_samples" yaml:"target_samples"`

	// History is how many recent projections are averaged per output.
	History int `json:"history" yaml:"history"`
}

// DefaultSessionConfig returns the standard pipeline parameters.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SampleRate:    16000,
		NumCoeffs:     13,
		WindowSeconds: 2.0,
		MinSeconds:    0.3,
		Smoothing:     0.3,
		SilencePeak:   0.001,
		AdmitRMS:      1e-4,
		TargetSamples: 50,
		History:       5,
	}
}

// withDefaults fills zero fields from DefaultSessionConfig.
func (c SessionConfig) withDefaults() SessionConfig {
	def := DefaultSessionConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = def.SampleRate
	}
	if c.NumCoeffs <= 0 {
		c.NumCoeffs = def.NumCoeffs
	}
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = def.WindowSeconds
	}
	if c.MinSeconds <= 0 {
		c.MinSeconds = def.MinSeconds
	}
	if c.Smoothing <= 0 {
		c.Smoothing = def.Smoothing
	}
	if c.SilencePeak <= 0 {
		c.SilencePeak = def.SilencePeak
	}
	if c.AdmitRMS <= 0 {
		c.AdmitRMS = def.AdmitRMS
	}
	if c.TargetSamples <= 0 {
		c.TargetSamples = def.TargetSamples
	}
	if c.History <= 0 {
		c.History = def.History
	}
	return c
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithNeighborConfig overrides the projector's embedding fit parameters.
func WithNeighborConfig(cfg manifold.NeighborConfig) Option {
	return func(s *Session) {
		s.neighborCfg = cfg
	}
}

// WithMinForceSamples overrides the ForceTrain sample floor.
func WithMinForceSamples(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.minForce = n
		}
	}
}

// Session is one audio-to-frame pipeline: extractor, projector and a frame
// sequence counter. Safe for concurrent use; chunk processing is serialized
// internally.
type Session struct {
	cfg         SessionConfig
	logger      *slog.Logger
	neighborCfg manifold.NeighborConfig
	minForce    int

	mu        sync.Mutex
	extractor *features.Extractor
	proj      *projector.Projector
	seq       uint64
}

// NewSession creates a Session with the given config.
func NewSession(cfg SessionConfig, opts ...Option) *Session {
	s := &Session{
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		minForce: 10,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.extractor = features.New(
		features.WithSampleRate(s.cfg.SampleRate),
		features.WithNumCoeffs(s.cfg.NumCoeffs),
		features.WithWindowSeconds(s.cfg.WindowSeconds),
		features.WithMinSeconds(s.cfg.MinSeconds),
		features.WithSmoothing(s.cfg.Smoothing),
		features.WithSilencePeak(s.cfg.SilencePeak),
		features.WithLogger(s.logger),
	)
	s.proj = projector.New(
		projector.WithTargetSamples(s.cfg.TargetSamples),
		projector.WithHistory(s.cfg.History),
		projector.WithMinForceSamples(s.minForce),
		projector.WithNeighborConfig(s.neighborCfg),
		projector.WithLogger(s.logger),
	)
	return s
}

// Config returns the effective session configuration.
func (s *Session) Config() SessionConfig {
	return s.cfg
}

// ProcessChunk decodes a PCM16LE mono chunk and processes it. It never
// returns nil; malformed or empty input still yields a frame built from
// the current state.
func (s *Session) ProcessChunk(data []byte) *Frame {
	return s.ProcessSamples(pcm.DecodeSamples(data))
}

// ProcessSamples processes pre-decoded samples: push to the rolling window,
// extract, feed training while warranted, project and assemble the frame.
func (s *Session) ProcessSamples(samples []float32) *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.extractor.Push(samples)
	res := s.extractor.Extract()

	if !res.Silent && res.RMS > float32(s.cfg.AdmitRMS) {
		s.proj.Observe(res.Vector)
	}

	pos := s.proj.Project(res.Vector)
	st := s.proj.Status()

	s.seq++
	return &Frame{
		Timestamp: jsontime.NowEpochMilli(),
		X:         pos[0],
		Y:         pos[1],
		Z:         pos[2],
		RMS:       res.RMS,
		Centroid:  res.Centroid,
		Spread:    res.Spread,
		Tonality:  res.Tonality,
		ZCR:       res.ZCR,
		Rolloff:   res.Rolloff,
		Trained:   st.Trained,
		Progress:  st.Progress,
		Seq:       s.seq,
	}
}

// Reset clears the rolling window, the smoothing state and the frame
// counter. When resetModel is true the projector is reset as well, so the
// next chunks start collecting training material from scratch.
func (s *Session) Reset(resetModel bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.extractor.Reset()
	s.seq = 0
	if resetModel {
		s.proj.Reset()
	}
}

// Status returns the projector status.
func (s *Session) Status() projector.Status {
	return s.proj.Status()
}

// ForceTrain asks the projector to train early; see projector.ForceTrain.
func (s *Session) ForceTrain() bool {
	return s.proj.ForceTrain()
}

// FrameCount returns how many frames this session has emitted since the
// last reset.
func (s *Session) FrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Snapshot captures the trained projector model, if any.
func (s *Session) Snapshot() (*projector.Snapshot, bool) {
	return s.proj.Snapshot()
}

// Restore installs a snapshotted projector model.
func (s *Session) Restore(snap *projector.Snapshot) error {
	return s.proj.Restore(snap)
}

// Close stops the session's background training worker.
func (s *Session) Close() {
	s.proj.Close()
}
