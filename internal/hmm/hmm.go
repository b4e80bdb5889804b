// Package hmm implements unsupervised behavioral-state discovery over
// ordered network-flow feature sequences. A Gaussian hidden Markov model
// with diagonal covariance is fitted by expectation-maximization; model
// order can be selected automatically with a BIC sweep.
package hmm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

// FeatureVector is one flow's fixed-length numeric summary.
type FeatureVector = []float64

// TrainingMatrix is an ordered sequence of feature vectors. Order matters:
// the model includes state-transition structure over the sequence.
type TrainingMatrix = [][]float64

var (
	ErrEmptyMatrix       = errors.New("hmm: training matrix is empty")
	ErrDimensionMismatch = errors.New("hmm: feature vectors have inconsistent dimensionality")
	ErrInvalidStateCount = errors.New("hmm: requested state count must be positive")
	ErrDiverged          = errors.New("Training diverged")
)

// Config holds trainer configuration.
type Config struct {
	// MaxIterations caps the EM loop.
	MaxIterations int
	// Tolerance is the relative log-likelihood improvement below which
	// training is considered converged.
	Tolerance float64
	// CovarianceFloor keeps diagonal covariance entries strictly positive.
	CovarianceFloor float64
	// MaxAutoStates is the absolute ceiling for automatic order selection.
	MaxAutoStates int
}

// DefaultConfig returns default trainer configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxIterations:   100,
		Tolerance:       1e-4,
		CovarianceFloor: 1e-6,
		MaxAutoStates:   15,
	}
}

// Model fits Gaussian HMMs to training matrices. A Model is stateless across
// calls and safe for concurrent use; every Fit call owns its own parameters.
type Model struct {
	cfg *Config
}

// New creates a Model with the given configuration.
func New(cfg *Config) *Model {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Model{cfg: cfg}
}

// params holds the model parameters re-estimated on every EM iteration.
type params struct {
	k, dim  int
	means   [][]float64
	vars    [][]float64 // diagonal covariance per state
	logTr   [][]float64 // log transition matrix, rows sum to 1 in prob space
	logInit []float64   // log initial-state distribution
}

// Validate checks the matrix invariants: non-empty and rectangular.
func Validate(matrix TrainingMatrix) error {
	if len(matrix) == 0 {
		return ErrEmptyMatrix
	}
	dim := len(matrix[0])
	if dim == 0 {
		return ErrDimensionMismatch
	}
	for _, row := range matrix {
		if len(row) != dim {
			return ErrDimensionMismatch
		}
	}
	return nil
}

// Fit trains a k-state model on the matrix and returns per-row hard state
// assignments with convergence metadata. The context is checked between EM
// iterations so long trainings can be abandoned.
func (m *Model) Fit(ctx context.Context, matrix TrainingMatrix, k int) (*models.TrainingResult, error) {
	return m.fit(ctx, matrix, k, nil)
}

// fit is Fit with an optional per-iteration progress callback in [0,1].
func (m *Model) fit(ctx context.Context, matrix TrainingMatrix, k int, progress func(frac float64)) (*models.TrainingResult, error) {
	if err := Validate(matrix); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, ErrInvalidStateCount
	}

	n := len(matrix)
	p := initParams(matrix, k, m.cfg.CovarianceFloor)

	var (
		prevLogL  = math.Inf(-1)
		logL      float64
		gamma     [][]float64
		converged bool
		iter      int
	)

	for iter = 1; iter <= m.cfg.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logB := emissionLogDensities(matrix, p)
		logAlpha, ll := forward(logB, p)
		if math.IsNaN(ll) || math.IsInf(ll, 1) {
			return nil, ErrDiverged
		}
		logBeta := backward(logB, p)

		gamma = posteriors(logAlpha, logBeta, ll)
		reestimate(matrix, logB, logAlpha, logBeta, gamma, ll, p, m.cfg.CovarianceFloor)
		logL = ll

		if progress != nil {
			progress(float64(iter) / float64(m.cfg.MaxIterations))
		}

		// Relative improvement against the previous iteration's likelihood.
		if !math.IsInf(prevLogL, -1) {
			improvement := logL - prevLogL
			if improvement < 0 {
				improvement = -improvement
			}
			scale := math.Abs(prevLogL)
			if scale < 1 {
				scale = 1
			}
			if improvement/scale < m.cfg.Tolerance {
				converged = true
				break
			}
		}
		prevLogL = logL
	}
	if iter > m.cfg.MaxIterations {
		iter = m.cfg.MaxIterations
	}

	states := make([]int, n)
	for t := 0; t < n; t++ {
		best := 0
		for i := 1; i < k; i++ {
			if gamma[t][i] > gamma[t][best] {
				best = i
			}
		}
		states[t] = best
	}

	return &models.TrainingResult{
		States:        states,
		NStates:       k,
		Converged:     converged,
		Iterations:    iter,
		LogLikelihood: logL,
	}, nil
}

// initParams seeds the model deterministically: state means from evenly
// spaced per-dimension order statistics, covariances from the global
// per-dimension variance floored at the configured epsilon, uniform initial
// distribution, and a self-biased transition matrix.
func initParams(matrix TrainingMatrix, k int, floor float64) *params {
	n := len(matrix)
	dim := len(matrix[0])

	p := &params{
		k:       k,
		dim:     dim,
		means:   makeGrid(k, dim),
		vars:    makeGrid(k, dim),
		logTr:   makeGrid(k, k),
		logInit: make([]float64, k),
	}

	// Per-dimension sorted values for quantile seeding.
	col := make([]float64, n)
	for d := 0; d < dim; d++ {
		for t, row := range matrix {
			col[t] = row[d]
		}
		sort.Float64s(col)
		for i := 0; i < k; i++ {
			pos := (i + 1) * n / (k + 1)
			if pos >= n {
				pos = n - 1
			}
			p.means[i][d] = col[pos]
		}
	}

	// Global per-dimension variance, floored.
	for d := 0; d < dim; d++ {
		var sum, sumSq float64
		for _, row := range matrix {
			sum += row[d]
			sumSq += row[d] * row[d]
		}
		mean := sum / float64(n)
		v := sumSq/float64(n) - mean*mean
		if v < floor {
			v = floor
		}
		for i := 0; i < k; i++ {
			p.vars[i][d] = v
		}
	}

	logUniform := -math.Log(float64(k))
	for i := 0; i < k; i++ {
		p.logInit[i] = logUniform
	}

	// Mild self-transition bias stabilizes early iterations on sequences
	// with long same-state runs.
	if k == 1 {
		p.logTr[0][0] = 0
	} else {
		self := 0.8
		other := (1 - self) / float64(k-1)
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				if i == j {
					p.logTr[i][j] = math.Log(self)
				} else {
					p.logTr[i][j] = math.Log(other)
				}
			}
		}
	}

	return p
}

// emissionLogDensities returns logB[t][i] = log N(x_t; mean_i, var_i) under
// the diagonal Gaussian emission model.
func emissionLogDensities(matrix TrainingMatrix, p *params) [][]float64 {
	n := len(matrix)
	logB := makeGrid(n, p.k)

	// Per-state constants: -0.5 * sum_d log(2*pi*var_d).
	consts := make([]float64, p.k)
	for i := 0; i < p.k; i++ {
		var c float64
		for d := 0; d < p.dim; d++ {
			c += math.Log(2 * math.Pi * p.vars[i][d])
		}
		consts[i] = -0.5 * c
	}

	for t, row := range matrix {
		for i := 0; i < p.k; i++ {
			var quad float64
			for d := 0; d < p.dim; d++ {
				diff := row[d] - p.means[i][d]
				quad += diff * diff / p.vars[i][d]
			}
			logB[t][i] = consts[i] - 0.5*quad
		}
	}
	return logB
}

// forward runs the log-space forward pass and returns the per-timestep
// forward variables and the total sequence log-likelihood.
func forward(logB [][]float64, p *params) (logAlpha [][]float64, logL float64) {
	n := len(logB)
	logAlpha = makeGrid(n, p.k)

	for i := 0; i < p.k; i++ {
		logAlpha[0][i] = p.logInit[i] + logB[0][i]
	}
	acc := make([]float64, p.k)
	for t := 1; t < n; t++ {
		for j := 0; j < p.k; j++ {
			for i := 0; i < p.k; i++ {
				acc[i] = logAlpha[t-1][i] + p.logTr[i][j]
			}
			logAlpha[t][j] = logSumExp(acc) + logB[t][j]
		}
	}
	return logAlpha, logSumExp(logAlpha[n-1])
}

// backward runs the log-space backward pass.
func backward(logB [][]float64, p *params) [][]float64 {
	n := len(logB)
	logBeta := makeGrid(n, p.k)

	acc := make([]float64, p.k)
	for t := n - 2; t >= 0; t-- {
		for i := 0; i < p.k; i++ {
			for j := 0; j < p.k; j++ {
				acc[j] = p.logTr[i][j] + logB[t+1][j] + logBeta[t+1][j]
			}
			logBeta[t][i] = logSumExp(acc)
		}
	}
	return logBeta
}

// posteriors computes gamma[t][i] = P(state_t = i | sequence).
func posteriors(logAlpha, logBeta [][]float64, logL float64) [][]float64 {
	n := len(logAlpha)
	k := len(logAlpha[0])
	gamma := makeGrid(n, k)
	for t := 0; t < n; t++ {
		for i := 0; i < k; i++ {
			gamma[t][i] = math.Exp(logAlpha[t][i] + logBeta[t][i] - logL)
		}
	}
	return gamma
}

// reestimate performs the M-step: responsibility-weighted means, floored
// diagonal covariances, transition matrix, and initial distribution.
func reestimate(matrix TrainingMatrix, logB, logAlpha, logBeta, gamma [][]float64, logL float64, p *params, floor float64) {
	n := len(matrix)

	// Initial distribution from the first timestep's responsibilities.
	for i := 0; i < p.k; i++ {
		g := gamma[0][i]
		if g < 1e-300 {
			g = 1e-300
		}
		p.logInit[i] = math.Log(g)
	}

	// Transition matrix from expected transition counts.
	if n > 1 && p.k > 1 {
		for i := 0; i < p.k; i++ {
			xiRow := make([]float64, p.k)
			var rowSum float64
			for j := 0; j < p.k; j++ {
				var sum float64
				for t := 0; t < n-1; t++ {
					sum += math.Exp(logAlpha[t][i] + p.logTr[i][j] + logB[t+1][j] + logBeta[t+1][j] - logL)
				}
				xiRow[j] = sum
				rowSum += sum
			}
			if rowSum <= 0 {
				// State never occupied before the last step: keep uniform.
				for j := 0; j < p.k; j++ {
					p.logTr[i][j] = -math.Log(float64(p.k))
				}
				continue
			}
			for j := 0; j < p.k; j++ {
				pr := xiRow[j] / rowSum
				if pr < 1e-300 {
					pr = 1e-300
				}
				p.logTr[i][j] = math.Log(pr)
			}
		}
	}

	// Emission means and variances.
	for i := 0; i < p.k; i++ {
		var weight float64
		for t := 0; t < n; t++ {
			weight += gamma[t][i]
		}
		if weight <= 0 {
			// Unoccupied state: leave emission parameters unchanged so the
			// state can be re-acquired on a later iteration.
			continue
		}
		for d := 0; d < p.dim; d++ {
			var mean float64
			for t := 0; t < n; t++ {
				mean += gamma[t][i] * matrix[t][d]
			}
			mean /= weight

			var v float64
			for t := 0; t < n; t++ {
				diff := matrix[t][d] - mean
				v += gamma[t][i] * diff * diff
			}
			v /= weight
			if v < floor {
				v = floor
			}
			p.means[i][d] = mean
			p.vars[i][d] = v
		}
	}
}

// logSumExp computes log(sum(exp(xs))) without underflow.
func logSumExp(xs []float64) float64 {
	maxV := xs[0]
	for _, x := range xs[1:] {
		if x > maxV {
			maxV = x
		}
	}
	if math.IsInf(maxV, -1) {
		return maxV
	}
	var sum float64
	for _, x := range xs {
		sum += math.Exp(x - maxV)
	}
	return maxV + math.Log(sum)
}

func makeGrid(rows, cols int) [][]float64 {
	g := make([][]float64, rows)
	for i := range g {
		g[i] = make([]float64, cols)
	}
	return g
}

// copyMatrix deep-copies a training matrix so concurrent calls never share
// input storage.
func copyMatrix(matrix TrainingMatrix) TrainingMatrix {
	out := make(TrainingMatrix, len(matrix))
	for i, row := range matrix {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// describeShape is used in error messages and logs.
func describeShape(matrix TrainingMatrix) string {
	if len(matrix) == 0 {
		return "0x0"
	}
	return fmt.Sprintf("%dx%d", len(matrix), len(matrix[0]))
}
