// Package projector turns a stream of feature vectors into 3D positions.
//
// A Projector starts untrained and collects observed vectors until it has
// enough to fit a 3D embedding (see [github.com/auravis/auravis/pkg/manifold]).
// Training runs on a background worker so the real-time path never blocks;
// the fitted model is swapped in atomically under the projector mutex and is
// immutable afterwards. Until a model is installed every projection returns
// the center of the unit cube, so consumers always have a defined position.
//
// # Lifecycle
//
//	Untrained --N samples / ForceTrain--> Training --fit ok--> Trained
//	     ^                                    |
//	     +-------------- fit failed ----------+
//
// Reset returns the projector to Untrained and bumps an internal generation
// counter; training results from before the reset are recognized as stale
// and dropped, so a reset can never be undone by an in-flight fit.
package projector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/auravis/auravis/pkg/manifold"
)

// State is the projector lifecycle state.
type State int

const (
	// StateUntrained means the projector is collecting samples.
	StateUntrained State = iota

	// StateTraining means a fit is running on the background worker.
	StateTraining

	// StateTrained means a model is installed and projections are live.
	StateTrained
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateUntrained:
		return "untrained"
	case StateTraining:
		return "training"
	case StateTrained:
		return "trained"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so states render as their
// names in JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "untrained":
		*s = StateUntrained
	case "training":
		*s = StateTraining
	case "trained":
		*s = StateTrained
	default:
		return fmt.Errorf("projector: unknown state %q", text)
	}
	return nil
}

// Status is a point-in-time view of the projector.
type Status struct {
	State    State   `json:"state" yaml:"state"`
	Trained  bool    `json:"trained" yaml:"trained"`
	Training bool    `json:"training" yaml:"training"`
	Progress float64 `json:"progress" yaml:"progress"`
	Samples  int     `json:"samples" yaml:"samples"`
	Target   int     `json:"target" yaml:"target"`
	Backend  string  `json:"backend,omitempty" yaml:"backend,omitempty"`
}

// trainRequest carries a copy of the training set to the worker, tagged
// with the generation it was built from.
type trainRequest struct {
	generation uint64
	data       [][]float32
}

// trainedModel bundles an embedding with the bounds of its training layout.
// Instances are immutable once installed.
type trainedModel struct {
	embedding manifold.Embedding
	bounds    manifold.Bounds
}

// Projector collects feature vectors, trains a 3D embedding in the
// background and projects vectors through it.
//
// All methods are safe for concurrent use.
type Projector struct {
	targetSamples   int
	minForceSamples int
	history         int
	neighborCfg     manifold.NeighborConfig
	logger          *slog.Logger

	mu         sync.Mutex
	state      State
	samples    [][]float32
	generation uint64
	model      *trainedModel
	recent     [][3]float32
	recentIdx  int
	recentLen  int

	trainCh chan trainRequest
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Projector.
type Option func(*Projector)

// WithTargetSamples sets how many samples trigger training (default 50).
func WithTargetSamples(n int) Option {
	return func(p *Projector) {
		if n > 0 {
			p.targetSamples = n
		}
	}
}

// WithMinForceSamples sets the minimum samples ForceTrain accepts
// (default 10).
func WithMinForceSamples(n int) Option {
	return func(p *Projector) {
		if n > 0 {
			p.minForceSamples = n
		}
	}
}

// WithHistory sets how many recent projections are averaged (default 5).
func WithHistory(n int) Option {
	return func(p *Projector) {
		if n > 0 {
			p.history = n
		}
	}
}

// WithNeighborConfig sets the neighbor embedding fit parameters.
func WithNeighborConfig(cfg manifold.NeighborConfig) Option {
	return func(p *Projector) {
		p.neighborCfg = cfg
	}
}

// WithLogger sets the logger used by the training worker.
func WithLogger(l *slog.Logger) Option {
	return func(p *Projector) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates an untrained Projector.
func New(opts ...Option) *Projector {
	p := &Projector{
		targetSamples:   50,
		minForceSamples: 10,
		history:         5,
		logger:          slog.Default(),
		trainCh:         make(chan trainRequest, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.recent = make([][3]float32, p.history)
	return p
}

// Observe offers a feature vector as training material and returns the
// training progress in [0, 1].
//
// Vectors are admitted only while the projector is untrained, and only if
// they have at least one nonzero component; everything else is a no-op.
// Admitting the target-th sample flips the state to Training and hands the
// collected set to the background worker.
func (p *Projector) Observe(v []float32) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.state != StateUntrained {
		return p.progressLocked()
	}
	if !nonzero(v) {
		return p.progressLocked()
	}
	if len(p.samples) > 0 && len(v) != len(p.samples[0]) {
		p.logger.Debug("projector: dropping vector with mismatched dimension",
			"got", len(v), "want", len(p.samples[0]))
		return p.progressLocked()
	}

	cp := make([]float32, len(v))
	copy(cp, v)
	p.samples = append(p.samples, cp)

	if len(p.samples) >= p.targetSamples {
		p.beginTrainingLocked()
	}
	return p.progressLocked()
}

// Project maps a feature vector to a position in the unit cube.
//
// While no model is installed the center (0.5, 0.5, 0.5) is returned.
// Once trained, the vector is embedded, normalized against the training
// bounds, clamped and averaged with the most recent projections to damp
// jitter.
func (p *Projector) Project(v []float32) [3]float32 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateTrained || p.model == nil {
		return [3]float32{0.5, 0.5, 0.5}
	}

	pos := p.model.bounds.Normalize(p.model.embedding.Transform(v))

	p.recent[p.recentIdx] = pos
	p.recentIdx = (p.recentIdx + 1) % p.history
	if p.recentLen < p.history {
		p.recentLen++
	}

	var avg [3]float32
	for i := 0; i < p.recentLen; i++ {
		for axis := 0; axis < 3; axis++ {
			avg[axis] += p.recent[i][axis]
		}
	}
	for axis := 0; axis < 3; axis++ {
		avg[axis] /= float32(p.recentLen)
	}
	return avg
}

// ForceTrain starts training early. It reports whether training was
// started; it refuses unless the projector is untrained with at least
// MinForceSamples collected.
func (p *Projector) ForceTrain() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.state != StateUntrained {
		return false
	}
	if len(p.samples) < p.minForceSamples {
		return false
	}
	p.beginTrainingLocked()
	return true
}

// Status returns a point-in-time view of the projector.
func (p *Projector) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	backend := ""
	if p.model != nil {
		backend = p.model.embedding.Name()
	}
	return Status{
		State:    p.state,
		Trained:  p.state == StateTrained,
		Training: p.state == StateTraining,
		Progress: p.progressLocked(),
		Samples:  len(p.samples),
		Target:   p.targetSamples,
		Backend:  backend,
	}
}

// Reset discards the model, the collected samples and the projection
// history, returning the projector to Untrained. An in-flight fit is
// invalidated by the generation bump and will be dropped when it lands.
func (p *Projector) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	p.state = StateUntrained
	p.samples = nil
	p.model = nil
	p.recentIdx = 0
	p.recentLen = 0
}

// Close stops the background worker and waits for it to exit. Close is
// idempotent; a closed projector keeps serving Project and Status but
// admits no further training.
func (p *Projector) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// progressLocked returns training progress in [0, 1].
func (p *Projector) progressLocked() float64 {
	if p.state == StateTrained {
		return 1
	}
	progress := float64(len(p.samples)) / float64(p.targetSamples)
	if progress > 1 {
		progress = 1
	}
	return progress
}

// beginTrainingLocked flips to Training and signals the worker with a copy
// of the collected samples. Called with the mutex held, at most once per
// generation because only Untrained admits samples.
func (p *Projector) beginTrainingLocked() {
	p.state = StateTraining
	p.ensureWorkerLocked()

	data := make([][]float32, len(p.samples))
	copy(data, p.samples)
	req := trainRequest{generation: p.generation, data: data}
	select {
	case p.trainCh <- req:
	default:
		// A request is already queued; the worker will pick up the newer
		// state when it gets there. Cannot happen in the normal lifecycle.
	}
}

// ensureWorkerLocked starts the training worker on first use.
func (p *Projector) ensureWorkerLocked() {
	if p.started || p.closed {
		return
	}
	p.started = true
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.worker(ctx)
}

func (p *Projector) worker(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-p.trainCh:
			p.fit(ctx, req)
		}
	}
}

// fit trains a model outside the mutex and installs it, unless the
// generation moved on while it was running.
func (p *Projector) fit(ctx context.Context, req trainRequest) {
	start := time.Now()

	var embedding manifold.Embedding
	e, err := manifold.FitNeighborEmbed(ctx, req.data, p.neighborCfg)
	switch {
	case err == nil:
		embedding = e
	case ctx.Err() != nil:
		return
	default:
		p.logger.Warn("projector: neighbor embedding failed, trying pca", "error", err)
		pca, err := manifold.FitPCA(req.data)
		if err != nil {
			p.logger.Error("projector: training failed", "error", err, "samples", len(req.data))
		} else {
			embedding = pca
		}
	}

	var model *trainedModel
	if embedding != nil {
		points := make([][3]float32, len(req.data))
		for i, row := range req.data {
			points[i] = embedding.Transform(row)
		}
		model = &trainedModel{
			embedding: embedding,
			bounds:    manifold.FromPoints(points),
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if req.generation != p.generation {
		p.logger.Debug("projector: dropping stale training result",
			"generation", req.generation, "current", p.generation)
		return
	}
	if model == nil {
		// Both fits failed; go back to collecting. Samples are kept so a
		// later attempt has material to work with.
		p.state = StateUntrained
		return
	}
	p.model = model
	p.state = StateTrained
	p.logger.Info("projector: model trained",
		"backend", model.embedding.Name(),
		"samples", len(req.data),
		"elapsed", time.Since(start))
}

// nonzero reports whether v has at least one nonzero component.
func nonzero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}
