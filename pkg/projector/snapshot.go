package projector

import (
	"fmt"
	"time"

	"github.com/auravis/auravis/pkg/manifold"
)

// Snapshot is the serializable form of a trained projector model. It holds
// exactly one backend state plus the normalization bounds, so a restored
// projector projects identically to the one that was captured.
type Snapshot struct {
	Backend   string                  `msgpack:"backend"`
	PCA       *manifold.PCAState      `msgpack:"pca,omitempty"`
	Neighbor  *manifold.NeighborState `msgpack:"neighbor,omitempty"`
	Bounds    manifold.Bounds         `msgpack:"bounds"`
	Samples   int                     `msgpack:"samples"`
	TrainedAt time.Time               `msgpack:"trained_at"`
}

// Snapshot captures the installed model. It returns false while the
// projector has no trained model to capture.
func (p *Projector) Snapshot() (*Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateTrained || p.model == nil {
		return nil, false
	}

	s := &Snapshot{
		Bounds:    p.model.bounds,
		Samples:   len(p.samples),
		TrainedAt: time.Now().UTC(),
	}
	switch e := p.model.embedding.(type) {
	case *manifold.NeighborEmbed:
		s.Backend = e.Name()
		s.Neighbor = e.State()
	case *manifold.PCA:
		s.Backend = e.Name()
		s.PCA = e.State()
	default:
		return nil, false
	}
	return s, true
}

// Restore installs a snapshotted model and marks the projector Trained,
// replacing whatever state it was in. In-flight training from before the
// restore is invalidated.
func (p *Projector) Restore(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("projector: nil snapshot")
	}

	var embedding manifold.Embedding
	switch {
	case s.Neighbor != nil:
		e, err := manifold.NewNeighborFromState(s.Neighbor)
		if err != nil {
			return fmt.Errorf("projector: restore: %w", err)
		}
		embedding = e
	case s.PCA != nil:
		e, err := manifold.NewPCAFromState(s.PCA)
		if err != nil {
			return fmt.Errorf("projector: restore: %w", err)
		}
		embedding = e
	default:
		return fmt.Errorf("projector: snapshot has no model state")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	p.model = &trainedModel{embedding: embedding, bounds: s.Bounds}
	p.state = StateTrained
	p.samples = nil
	p.recentIdx = 0
	p.recentLen = 0
	return nil
}
