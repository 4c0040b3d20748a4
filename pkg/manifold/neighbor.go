package manifold

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"

	"github.com/auravis/auravis/pkg/vecstore"
)

// NeighborConfig tunes the neighbor embedding fit. Zero fields take
// defaults.
type NeighborConfig struct {
	// K is the number of nearest neighbors per point (default 8, capped
	// at n-1).
	K int

	// Epochs is the number of SGD layout passes (default 150).
	Epochs int

	// LearningRate is the initial SGD step size, decayed linearly to zero
	// (default 1.0).
	LearningRate float64

	// NegativeSamples is the number of repulsion samples per edge per
	// epoch (default 5).
	NegativeSamples int

	// Seed drives the layout RNG so fits are reproducible (default 42).
	Seed uint64
}

func (c NeighborConfig) withDefaults() NeighborConfig {
	if c.K <= 0 {
		c.K = 8
	}
	if c.Epochs <= 0 {
		c.Epochs = 150
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 1.0
	}
	if c.NegativeSamples <= 0 {
		c.NegativeSamples = 5
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	return c
}

// Attraction/repulsion curve parameters for a target min-dist of 0.1.
const (
	curveA = 1.577
	curveB = 0.895
)

// gradClip bounds a single gradient component before the learning rate is
// applied, keeping early epochs from flinging points out of the layout.
const gradClip = 4.0

// NeighborEmbed is a fitted neighbor embedding: the training vectors, their
// 3D layout coordinates and a vector index for out-of-sample queries.
type NeighborEmbed struct {
	dim    int
	k      int
	data   [][]float32
	coords [][3]float32
	index  vecstore.Index
}

// NeighborState is the serializable form of a fitted neighbor embedding.
// Out-of-sample transforms only need the training vectors and their layout
// coordinates, so that is all it carries.
type NeighborState struct {
	K      int          `msgpack:"k"`
	Data   [][]float32  `msgpack:"data"`
	Coords [][3]float32 `msgpack:"coords"`
}

type edge struct {
	i, j int
	w    float64
}

// FitNeighborEmbed fits a 3D layout of the training set that preserves
// local neighborhood structure.
//
// The fit builds a k-nearest-neighbor graph, converts neighbor distances to
// edge weights with per-point smooth connectivity, initializes coordinates
// from a PCA projection and refines them with SGD: attraction along graph
// edges, sampled repulsion everywhere else. The context is checked between
// epochs; cancellation abandons the fit.
func FitNeighborEmbed(ctx context.Context, data [][]float32, cfg NeighborConfig) (*NeighborEmbed, error) {
	dim, err := checkData(data)
	if err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	n := len(data)
	k := cfg.K
	if k > n-1 {
		k = n - 1
	}

	owned := make([][]float32, n)
	for i, row := range data {
		cp := make([]float32, dim)
		copy(cp, row)
		owned[i] = cp
	}

	index := vecstore.NewMemoryWith(vecstore.EuclideanDistance)
	ids := make([]string, n)
	for i := range owned {
		ids[i] = strconv.Itoa(i)
	}
	if err := index.BatchInsert(ids, owned); err != nil {
		return nil, fmt.Errorf("manifold: index training set: %w", err)
	}

	neighbors, dists, err := knnGraph(index, owned, k)
	if err != nil {
		return nil, err
	}
	edges := graphEdges(neighbors, dists, k)

	coords := initialLayout(owned, cfg.Seed)

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xdeadbeef))
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		alpha := cfg.LearningRate * (1 - float64(epoch)/float64(cfg.Epochs))
		sgdEpoch(coords, edges, rng, alpha, cfg.NegativeSamples)
	}

	return &NeighborEmbed{
		dim:    dim,
		k:      k,
		data:   owned,
		coords: coords,
		index:  index,
	}, nil
}

// NewNeighborFromState reconstructs a neighbor embedding from its
// serialized state.
func NewNeighborFromState(s *NeighborState) (*NeighborEmbed, error) {
	if s == nil || len(s.Data) == 0 || len(s.Data) != len(s.Coords) {
		return nil, fmt.Errorf("manifold: invalid neighbor state")
	}
	dim, err := checkData(s.Data)
	if err != nil {
		return nil, err
	}
	k := s.K
	if k <= 0 || k > len(s.Data) {
		k = len(s.Data)
	}

	index := vecstore.NewMemoryWith(vecstore.EuclideanDistance)
	ids := make([]string, len(s.Data))
	for i := range s.Data {
		ids[i] = strconv.Itoa(i)
	}
	if err := index.BatchInsert(ids, s.Data); err != nil {
		return nil, fmt.Errorf("manifold: index training set: %w", err)
	}

	return &NeighborEmbed{
		dim:    dim,
		k:      k,
		data:   s.Data,
		coords: s.Coords,
		index:  index,
	}, nil
}

// State returns the serializable form of the embedding. The returned slices
// share memory with the embedding.
func (e *NeighborEmbed) State() *NeighborState {
	return &NeighborState{K: e.k, Data: e.data, Coords: e.coords}
}

// Transform embeds an unseen vector by inverse-distance-weighted averaging
// of its nearest training points' coordinates. A vector matching a training
// point returns that point's coordinate exactly.
func (e *NeighborEmbed) Transform(v []float32) [3]float32 {
	var out [3]float32
	if len(v) != e.dim {
		return out
	}
	topK := e.k
	if topK > len(e.data) {
		topK = len(e.data)
	}
	matches, err := e.index.Search(v, topK)
	if err != nil || len(matches) == 0 {
		return out
	}

	if matches[0].Distance < 1e-6 {
		if id, err := strconv.Atoi(matches[0].ID); err == nil {
			return e.coords[id]
		}
	}

	var total float64
	var acc [3]float64
	for _, m := range matches {
		id, err := strconv.Atoi(m.ID)
		if err != nil {
			continue
		}
		w := 1.0 / (float64(m.Distance) + 1e-6)
		total += w
		for axis := 0; axis < 3; axis++ {
			acc[axis] += w * float64(e.coords[id][axis])
		}
	}
	if total == 0 {
		return out
	}
	for axis := 0; axis < 3; axis++ {
		out[axis] = float32(acc[axis] / total)
	}
	return out
}

// Dim returns the expected input dimension.
func (e *NeighborEmbed) Dim() int { return e.dim }

// Name returns "neighbor".
func (e *NeighborEmbed) Name() string { return "neighbor" }

// knnGraph finds the k nearest neighbors of every point, excluding the
// point itself.
func knnGraph(index vecstore.Index, data [][]float32, k int) ([][]int, [][]float64, error) {
	n := len(data)
	neighbors := make([][]int, n)
	dists := make([][]float64, n)
	for i, row := range data {
		matches, err := index.Search(row, k+1)
		if err != nil {
			return nil, nil, fmt.Errorf("manifold: neighbor search: %w", err)
		}
		for _, m := range matches {
			id, err := strconv.Atoi(m.ID)
			if err != nil || id == i {
				continue
			}
			neighbors[i] = append(neighbors[i], id)
			dists[i] = append(dists[i], float64(m.Distance))
			if len(neighbors[i]) == k {
				break
			}
		}
	}
	return neighbors, dists, nil
}

// graphEdges converts directed neighbor distances into undirected weighted
// edges. Per point, distances become membership weights via smooth local
// connectivity: the nearest neighbor gets weight 1 and farther neighbors
// decay with a per-point scale calibrated so the total weight is log2(k).
// Directed weights are then fuzzy-unioned: w = wij + wji - wij*wji.
func graphEdges(neighbors [][]int, dists [][]float64, k int) []edge {
	type pair struct{ lo, hi int }
	directed := make(map[pair][2]float64)

	for i := range neighbors {
		if len(neighbors[i]) == 0 {
			continue
		}
		rho := dists[i][0]
		sigma := connectivityScale(dists[i], rho, float64(k))
		for idx, j := range neighbors[i] {
			d := dists[i][idx] - rho
			if d < 0 {
				d = 0
			}
			w := math.Exp(-d / sigma)

			p := pair{i, j}
			slot := 0
			if j < i {
				p = pair{j, i}
				slot = 1
			}
			ws := directed[p]
			if w > ws[slot] {
				ws[slot] = w
			}
			directed[p] = ws
		}
	}

	edges := make([]edge, 0, len(directed))
	for p, ws := range directed {
		w := ws[0] + ws[1] - ws[0]*ws[1]
		if w <= 0 {
			continue
		}
		edges = append(edges, edge{i: p.lo, j: p.hi, w: w})
	}
	// Map iteration order is random; sort for reproducible layouts.
	sort.Slice(edges, func(a, b int) bool {
		if edges[a].i != edges[b].i {
			return edges[a].i < edges[b].i
		}
		return edges[a].j < edges[b].j
	})
	return edges
}

// connectivityScale binary-searches the distance scale so the summed
// neighbor weights hit log2(k).
func connectivityScale(dists []float64, rho, k float64) float64 {
	target := math.Log2(k)
	if target <= 0 {
		target = 1
	}
	lo, hi := 1e-6, 1e3
	for iter := 0; iter < 64; iter++ {
		mid := (lo + hi) / 2
		var sum float64
		for _, d := range dists {
			x := d - rho
			if x < 0 {
				x = 0
			}
			sum += math.Exp(-x / mid)
		}
		if sum > target {
			hi = mid
		} else {
			lo = mid
		}
	}
	return (lo + hi) / 2
}

// initialLayout seeds coordinates from a PCA projection scaled to a +-10
// extent, falling back to small random jitter for degenerate data.
func initialLayout(data [][]float32, seed uint64) [][3]float32 {
	n := len(data)
	coords := make([][3]float32, n)

	pca, err := FitPCA(data)
	if err == nil {
		var maxAbs float32
		for i, row := range data {
			coords[i] = pca.Transform(row)
			for _, v := range coords[i] {
				if v < 0 {
					v = -v
				}
				if v > maxAbs {
					maxAbs = v
				}
			}
		}
		if maxAbs > 0 {
			scale := 10 / maxAbs
			for i := range coords {
				for axis := 0; axis < 3; axis++ {
					coords[i][axis] *= scale
				}
			}
			return coords
		}
	}

	rng := rand.New(rand.NewPCG(seed, seed^0xbadc0ffe))
	for i := range coords {
		for axis := 0; axis < 3; axis++ {
			coords[i][axis] = float32(rng.Float64()*20 - 10)
		}
	}
	return coords
}

// sgdEpoch runs one pass of attraction along edges and sampled repulsion.
func sgdEpoch(coords [][3]float32, edges []edge, rng *rand.Rand, alpha float64, negSamples int) {
	n := len(coords)
	for _, ed := range edges {
		yi, yj := &coords[ed.i], &coords[ed.j]

		d2 := sqDist3(*yi, *yj)
		if d2 > 0 {
			grad := -2 * curveA * curveB * math.Pow(d2, curveB-1) / (1 + curveA*math.Pow(d2, curveB))
			grad *= ed.w
			for axis := 0; axis < 3; axis++ {
				g := clipGrad(grad * float64(yi[axis]-yj[axis]))
				yi[axis] += float32(g * alpha)
				yj[axis] -= float32(g * alpha)
			}
		}

		for s := 0; s < negSamples; s++ {
			t := rng.IntN(n)
			if t == ed.i {
				continue
			}
			yt := &coords[t]
			d2 := sqDist3(*yi, *yt)
			grad := 2 * curveB / ((0.001 + d2) * (1 + curveA*math.Pow(d2, curveB)))
			for axis := 0; axis < 3; axis++ {
				g := clipGrad(grad * float64(yi[axis]-yt[axis]))
				yi[axis] += float32(g * alpha)
			}
		}
	}
}

func sqDist3(a, b [3]float32) float64 {
	var sum float64
	for axis := 0; axis < 3; axis++ {
		d := float64(a[axis]) - float64(b[axis])
		sum += d * d
	}
	return sum
}

func clipGrad(g float64) float64 {
	if g > gradClip {
		return gradClip
	}
	if g < -gradClip {
		return -gradClip
	}
	return g
}
