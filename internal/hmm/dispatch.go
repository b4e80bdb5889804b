package hmm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/SecurityRonin/nfchat-sub001/internal/logging"
	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

// Progress phases reported over the lifetime of a training call.
const (
	PhaseScaling  = "scaling"
	PhaseTraining = "training"
)

// Message kinds exchanged between the dispatcher and its worker.
const (
	kindTrain    = "train"
	kindProgress = "progress"
	kindResult   = "result"
	kindError    = "error"
)

// jobMessage is the single job description handed to a background worker.
type jobMessage struct {
	Kind            string         `json:"kind"`
	JobID           string         `json:"jobId"`
	Matrix          TrainingMatrix `json:"matrix"`
	RequestedStates int            `json:"requestedStates"`
}

// ProgressMessage is an informational progress notification. It never
// affects how the call resolves.
type ProgressMessage struct {
	Kind    string  `json:"kind"`
	Percent float64 `json:"percent"`
	Phase   string  `json:"phase"`
}

// resultMessage is the successful terminal notification for one call.
type resultMessage struct {
	Kind string `json:"kind"`
	*models.TrainingResult
}

// errorMessage is the failing terminal notification for one call.
type errorMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// workerMessage is the in-process union relayed from worker to dispatcher.
// cause keeps the original error value so sentinel checks survive the relay.
type workerMessage struct {
	progress *ProgressMessage
	result   *resultMessage
	err      *errorMessage
	cause    error
}

// ProgressFunc observes progress notifications for a single training call.
type ProgressFunc func(ProgressMessage)

// Trainer dispatches training calls. By default each call runs in a
// dedicated background goroutine; the Inline option runs the identical
// computation in the caller's goroutine with the same progress checkpoints.
// A Trainer is safe for concurrent use: each call owns its own worker and
// its own copy of the input matrix.
type Trainer struct {
	model  *Model
	log    *logging.Logger
	inline bool

	// Test seams. observeJob sees the job message before dispatch,
	// onTeardown fires when a worker is torn down, and runFn replaces the
	// computation itself.
	observeJob func(jobMessage)
	onTeardown func()
	runFn      func(ctx context.Context, matrix TrainingMatrix, requestedStates int, emit ProgressFunc) (*models.TrainingResult, error)
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// Inline selects the synchronous strategy.
func Inline() TrainerOption {
	return func(t *Trainer) { t.inline = true }
}

// NewTrainer creates a Trainer around the given model. A nil model gets the
// default configuration.
func NewTrainer(model *Model, opts ...TrainerOption) *Trainer {
	if model == nil {
		model = New(nil)
	}
	t := &Trainer{
		model: model,
		log:   logging.DispatchLogger(),
	}
	t.runFn = t.run
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Train fits a model to the matrix and returns per-row state assignments.
// requestedStates = 0 routes to automatic order selection; a positive value
// requests that exact state count. Invalid input is rejected before any
// worker is created. Exactly one terminal outcome occurs per call, after
// every progress notification for that call has been observed.
func (t *Trainer) Train(ctx context.Context, matrix TrainingMatrix, requestedStates int, onProgress ProgressFunc) (*models.TrainingResult, error) {
	if err := Validate(matrix); err != nil {
		return nil, err
	}
	if requestedStates < 0 {
		return nil, ErrInvalidStateCount
	}

	job := jobMessage{
		Kind:            kindTrain,
		JobID:           uuid.NewString(),
		Matrix:          copyMatrix(matrix),
		RequestedStates: requestedStates,
	}
	if t.observeJob != nil {
		t.observeJob(job)
	}

	t.log.Debug("dispatching training job",
		"jobId", job.JobID,
		"shape", describeShape(matrix),
		"requestedStates", requestedStates,
		"inline", t.inline)

	if t.inline {
		return t.runFn(ctx, job.Matrix, job.RequestedStates, onProgress)
	}
	return t.trainBackground(ctx, job, onProgress)
}

// trainBackground runs the job in a dedicated goroutine and blocks the
// caller until the worker's terminal notification.
func (t *Trainer) trainBackground(ctx context.Context, job jobMessage, onProgress ProgressFunc) (*models.TrainingResult, error) {
	jobCh := make(chan jobMessage, 1)
	msgCh := make(chan workerMessage)

	go t.worker(ctx, jobCh, msgCh)

	jobCh <- job
	close(jobCh)

	var (
		result   *models.TrainingResult
		terminal error
	)
	for msg := range msgCh {
		switch {
		case msg.progress != nil:
			if onProgress != nil {
				onProgress(*msg.progress)
			}
		case msg.result != nil:
			result = msg.result.TrainingResult
		case msg.err != nil:
			if msg.cause != nil {
				terminal = msg.cause
			} else {
				terminal = errors.New(msg.err.Message)
			}
		}
	}

	if terminal != nil {
		t.log.Error("training job failed", "jobId", job.JobID, "error", terminal)
		return nil, terminal
	}
	if result == nil {
		// Worker exited without a terminal message; treat as a fault.
		return nil, fmt.Errorf("training job %s produced no result", job.JobID)
	}
	t.log.Info("training job completed",
		"jobId", job.JobID,
		"states", result.NStates,
		"iterations", result.Iterations,
		"converged", result.Converged)
	return result, nil
}

// worker consumes one job, emits progress and exactly one terminal message,
// and tears itself down exactly once on success, computation error, or
// panic. Deferred teardown is registered before the recover handler so a
// panic's error message is sent before the channel closes.
func (t *Trainer) worker(ctx context.Context, jobCh <-chan jobMessage, msgCh chan<- workerMessage) {
	defer func() {
		if t.onTeardown != nil {
			t.onTeardown()
		}
		close(msgCh)
	}()
	defer func() {
		if r := recover(); r != nil {
			msgCh <- workerMessage{err: &errorMessage{Kind: kindError, Message: fmt.Sprint(r)}}
		}
	}()

	for job := range jobCh {
		emit := func(p ProgressMessage) {
			msgCh <- workerMessage{progress: &p}
		}
		result, err := t.runFn(ctx, job.Matrix, job.RequestedStates, emit)
		if err != nil {
			msgCh <- workerMessage{
				err:   &errorMessage{Kind: kindError, Message: err.Error()},
				cause: err,
			}
			continue
		}
		msgCh <- workerMessage{result: &resultMessage{Kind: kindResult, TrainingResult: result}}
	}
}

// run is the computation shared by both strategies: standardize the matrix
// in the scaling phase, then fit or select in the training phase.
func (t *Trainer) run(ctx context.Context, matrix TrainingMatrix, requestedStates int, emit ProgressFunc) (*models.TrainingResult, error) {
	report := func(percent float64, phase string) {
		if emit != nil {
			emit(ProgressMessage{Kind: kindProgress, Percent: percent, Phase: phase})
		}
	}

	report(0, PhaseScaling)
	scaled := Standardize(matrix)
	report(10, PhaseScaling)

	onFrac := func(frac float64) {
		report(10+90*frac, PhaseTraining)
	}

	if requestedStates == 0 {
		return t.model.selectAndFit(ctx, scaled, t.model.cfg.MaxAutoStates, onFrac)
	}
	return t.model.fit(ctx, scaled, requestedStates, onFrac)
}
