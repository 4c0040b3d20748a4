package manifold

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PCA is a linear projection onto the top three principal components of the
// training set. It is the fallback backend when the neighbor embedding
// cannot be fit.
type PCA struct {
	dim        int
	mean       []float64
	components [][]float64 // row per output axis, unit-norm, at most 3
}

// PCAState is the serializable form of a fitted PCA.
type PCAState struct {
	Mean       []float64   `msgpack:"mean"`
	Components [][]float64 `msgpack:"components"`
}

// FitPCA fits a principal component projection: mean-center, covariance,
// symmetric eigendecomposition, top eigenvectors by eigenvalue. When the
// input dimension is below 3 the missing output axes stay at zero.
func FitPCA(data [][]float32) (*PCA, error) {
	dim, err := checkData(data)
	if err != nil {
		return nil, err
	}
	n := len(data)

	mean := make([]float64, dim)
	for _, row := range data {
		for j, v := range row {
			mean[j] += float64(v)
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}

	// Covariance with the standard n-1 normalization.
	cov := mat.NewSymDense(dim, nil)
	centered := make([][]float64, n)
	for i, row := range data {
		c := make([]float64, dim)
		for j, v := range row {
			c[j] = float64(v) - mean[j]
		}
		centered[i] = c
	}
	for a := 0; a < dim; a++ {
		for b := a; b < dim; b++ {
			var sum float64
			for i := 0; i < n; i++ {
				sum += centered[i][a] * centered[i][b]
			}
			cov.SetSym(a, b, sum/float64(n-1))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, fmt.Errorf("manifold: eigendecomposition failed")
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues come back in ascending order; the top components are the
	// trailing columns.
	k := 3
	if dim < k {
		k = dim
	}
	components := make([][]float64, k)
	for c := 0; c < k; c++ {
		col := dim - 1 - c
		comp := make([]float64, dim)
		for j := 0; j < dim; j++ {
			comp[j] = vecs.At(j, col)
		}
		components[c] = comp
	}

	return &PCA{dim: dim, mean: mean, components: components}, nil
}

// NewPCAFromState reconstructs a PCA from its serialized state.
func NewPCAFromState(s *PCAState) (*PCA, error) {
	if s == nil || len(s.Mean) == 0 || len(s.Components) == 0 {
		return nil, fmt.Errorf("manifold: empty pca state")
	}
	dim := len(s.Mean)
	for i, comp := range s.Components {
		if len(comp) != dim {
			return nil, fmt.Errorf("manifold: pca state component %d has dimension %d, want %d", i, len(comp), dim)
		}
	}
	return &PCA{dim: dim, mean: s.Mean, components: s.Components}, nil
}

// State returns the serializable form of the projection.
func (p *PCA) State() *PCAState {
	return &PCAState{Mean: p.mean, Components: p.components}
}

// Transform projects the centered vector onto the principal components.
func (p *PCA) Transform(v []float32) [3]float32 {
	var out [3]float32
	if len(v) != p.dim {
		return out
	}
	for c, comp := range p.components {
		var sum float64
		for j, x := range v {
			sum += (float64(x) - p.mean[j]) * comp[j]
		}
		out[c] = float32(sum)
	}
	return out
}

// Dim returns the expected input dimension.
func (p *PCA) Dim() int { return p.dim }

// Name returns "pca".
func (p *PCA) Name() string { return "pca" }
