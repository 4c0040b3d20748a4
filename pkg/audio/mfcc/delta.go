package mfcc

// deltas computes regression deltas of a [T][M] coefficient matrix. The
// regression width shrinks with the number of available frames (9, then 5,
// then 3); with fewer than 3 frames a zero matrix of the same shape is
// returned so downstream consumers never fail on short windows.
func deltas(coeffs [][]float32) [][]float32 {
	t := len(coeffs)
	if t == 0 {
		return nil
	}
	width := 0
	switch {
	case t >= 9:
		width = 9
	case t >= 5:
		width = 5
	case t >= 3:
		width = 3
	}

	m := len(coeffs[0])
	out := make([][]float32, t)
	if width == 0 {
		for i := range out {
			out[i] = make([]float32, m)
		}
		return out
	}

	half := (width - 1) / 2
	norm := 0.0
	for n := 1; n <= half; n++ {
		norm += 2 * float64(n) * float64(n)
	}

	at := func(i, j int) float64 {
		// replicate edges
		if i < 0 {
			i = 0
		}
		if i >= t {
			i = t - 1
		}
		return float64(coeffs[i][j])
	}

	for i := 0; i < t; i++ {
		row := make([]float32, m)
		for j := 0; j < m; j++ {
			acc := 0.0
			for n := 1; n <= half; n++ {
				acc += float64(n) * (at(i+n, j) - at(i-n, j))
			}
			row[j] = float32(acc / norm)
		}
		out[i] = row
	}
	return out
}
