package hmm

import (
	"context"
	"math"

	"github.com/SecurityRonin/nfchat-sub001/internal/logging"
	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

// SelectAndFit sweeps candidate state counts from 2 up to
// min(kMax, floor(sqrt(n)), MaxAutoStates), fits a model at each, and
// returns the fit with the lowest Bayesian Information Criterion. Ties go to
// the smaller state count; candidate fits that fail are skipped. If every
// candidate fails, the last error is returned.
func (m *Model) SelectAndFit(ctx context.Context, matrix TrainingMatrix, kMax int) (*models.TrainingResult, error) {
	return m.selectAndFit(ctx, matrix, kMax, nil)
}

// selectAndFit is SelectAndFit with an optional progress callback reporting
// the fraction of candidate state counts evaluated so far.
func (m *Model) selectAndFit(ctx context.Context, matrix TrainingMatrix, kMax int, progress func(frac float64)) (*models.TrainingResult, error) {
	if err := Validate(matrix); err != nil {
		return nil, err
	}

	n := len(matrix)
	dim := len(matrix[0])

	upper := kMax
	if upper <= 0 || upper > m.cfg.MaxAutoStates {
		upper = m.cfg.MaxAutoStates
	}
	if byRows := int(math.Floor(math.Sqrt(float64(n)))); byRows < upper {
		upper = byRows
	}
	if upper < 2 {
		upper = 2
	}

	log := logging.TrainerLogger()

	var (
		best    *models.TrainingResult
		bestBIC = math.Inf(1)
		lastErr error
	)
	total := upper - 1
	for k := 2; k <= upper; k++ {
		result, err := m.Fit(ctx, matrix, k)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			log.Debug("candidate fit failed", "states", k, "error", err)
			lastErr = err
		} else {
			bic := bicScore(result.LogLikelihood, k, dim, n)
			log.Debug("candidate fit scored", "states", k, "bic", bic, "logLikelihood", result.LogLikelihood)
			if bic < bestBIC {
				bestBIC = bic
				best = result
			}
		}
		if progress != nil {
			progress(float64(k-1) / float64(total))
		}
	}

	if best == nil {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, ErrDiverged
	}
	return best, nil
}

// bicScore computes BIC = -2*logL + p*log(n) where p counts the free
// parameters of a k-state diagonal-Gaussian HMM over d dimensions:
// (k-1) initial probabilities, k*(k-1) transition probabilities, and
// 2*k*d emission parameters (means plus variances).
func bicScore(logL float64, k, d, n int) float64 {
	p := float64((k - 1) + k*(k-1) + 2*k*d)
	return -2*logL + p*math.Log(float64(n))
}
