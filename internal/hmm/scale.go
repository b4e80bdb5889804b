package hmm

import "math"

// Standardize z-scores each column of the matrix in place-safe fashion: a
// new matrix is returned and the input is never modified. Columns with zero
// variance map to all zeros rather than dividing by zero.
func Standardize(matrix TrainingMatrix) TrainingMatrix {
	if len(matrix) == 0 {
		return nil
	}
	n := len(matrix)
	dim := len(matrix[0])

	means := make([]float64, dim)
	stds := make([]float64, dim)
	for d := 0; d < dim; d++ {
		var sum float64
		for _, row := range matrix {
			sum += row[d]
		}
		means[d] = sum / float64(n)

		var sq float64
		for _, row := range matrix {
			diff := row[d] - means[d]
			sq += diff * diff
		}
		stds[d] = math.Sqrt(sq / float64(n))
	}

	out := makeGrid(n, dim)
	for t, row := range matrix {
		for d := 0; d < dim; d++ {
			if stds[d] == 0 {
				out[t][d] = 0
				continue
			}
			out[t][d] = (row[d] - means[d]) / stds[d]
		}
	}
	return out
}
