// Package manifold fits 3D embeddings of high-dimensional feature vectors.
//
// Two backends implement the [Embedding] interface. [FitNeighborEmbed]
// builds a k-nearest-neighbor graph over the training set and lays it out
// in 3D with stochastic gradient descent, preserving local structure; unseen
// vectors are embedded by distance-weighted interpolation of their nearest
// training points. [FitPCA] is the linear fallback: a plain principal
// component projection onto the top three axes.
//
// Raw embedding coordinates live in an arbitrary range. [Bounds] captures
// the training-set extent so outputs can be normalized into the unit cube.
package manifold

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is returned by the fit functions when the training
// set is empty or has fewer than two points.
var ErrInsufficientData = errors.New("manifold: insufficient training data")

// Embedding maps feature vectors into 3D.
type Embedding interface {
	// Transform embeds a single vector. The input dimension must match Dim.
	Transform(v []float32) [3]float32

	// Dim returns the expected input dimension.
	Dim() int

	// Name identifies the backend ("neighbor", "pca").
	Name() string
}

// Bounds is the per-axis extent of a set of 3D points, used to normalize
// embedding output into the unit cube.
type Bounds struct {
	Min [3]float32 `msgpack:"min"`
	Max [3]float32 `msgpack:"max"`
}

// FromPoints computes the bounds of the given points. An empty slice yields
// zero bounds.
func FromPoints(points [][3]float32) Bounds {
	var b Bounds
	if len(points) == 0 {
		return b
	}
	b.Min = points[0]
	b.Max = points[0]
	for _, p := range points[1:] {
		for axis := 0; axis < 3; axis++ {
			if p[axis] < b.Min[axis] {
				b.Min[axis] = p[axis]
			}
			if p[axis] > b.Max[axis] {
				b.Max[axis] = p[axis]
			}
		}
	}
	return b
}

// Normalize maps p into [0,1] per axis. Axes with a degenerate range
// (width below 1e-3) are treated as width 1 so a collapsed axis maps near
// its minimum instead of exploding. The result is clamped to [0,1].
func (b Bounds) Normalize(p [3]float32) [3]float32 {
	var out [3]float32
	for axis := 0; axis < 3; axis++ {
		width := b.Max[axis] - b.Min[axis]
		if width < 1e-3 {
			width = 1
		}
		v := (p[axis] - b.Min[axis]) / width
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		out[axis] = v
	}
	return out
}

// checkData validates a training set: non-empty, at least two points, all
// rows the same nonzero dimension. Returns the dimension.
func checkData(data [][]float32) (int, error) {
	if len(data) < 2 {
		return 0, ErrInsufficientData
	}
	dim := len(data[0])
	if dim == 0 {
		return 0, ErrInsufficientData
	}
	for i, row := range data {
		if len(row) != dim {
			return 0, fmt.Errorf("manifold: inconsistent vector dimension at row %d: %d != %d", i, len(row), dim)
		}
	}
	return dim, nil
}
