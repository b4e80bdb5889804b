package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SecurityRonin/nfchat-sub001/internal/config"
	"github.com/SecurityRonin/nfchat-sub001/internal/events"
	"github.com/SecurityRonin/nfchat-sub001/internal/hmm"
	"github.com/SecurityRonin/nfchat-sub001/internal/ingest"
	"github.com/SecurityRonin/nfchat-sub001/internal/interpret"
	"github.com/SecurityRonin/nfchat-sub001/internal/logging"
	"github.com/SecurityRonin/nfchat-sub001/internal/metrics"
	"github.com/SecurityRonin/nfchat-sub001/internal/models"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Discover behavioral states in a flow dataset",
	Long: `Load flows from a NetFlow CSV export or a PCAP capture, fit a Gaussian
hidden Markov model over the flow sequence, and write a report with state
assignments, per-state profiles, narratives, and tactic suggestions.

With --states 0 (the default) the state count is chosen automatically by a
BIC sweep.`,
	RunE: runAnalyze,
}

var analyzeOpts struct {
	input       string
	states      int
	output      string
	inline      bool
	sessions    bool
	metricsAddr string
}

func init() {
	flags := analyzeCmd.Flags()
	flags.StringVarP(&analyzeOpts.input, "input", "i", "", "flow CSV or PCAP file (required)")
	flags.IntVarP(&analyzeOpts.states, "states", "s", 0, "state count; 0 selects automatically")
	flags.StringVarP(&analyzeOpts.output, "output", "o", "", "report file (default stdout)")
	flags.BoolVar(&analyzeOpts.inline, "inline", false, "train in the calling goroutine")
	flags.BoolVar(&analyzeOpts.sessions, "sessions", false, "group flows into per-source sessions before training")
	flags.StringVar(&analyzeOpts.metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address")

	analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.Default().WithComponent("analyze")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flows, err := loadFlows(ctx, analyzeOpts.input)
	if err != nil {
		return err
	}

	if analyzeOpts.sessions {
		builder := &ingest.SessionBuilder{
			GapMs:     cfg.Ingest.SessionGapMs,
			MinLength: cfg.Ingest.MinSessionLength,
		}
		sessions := builder.Build(flows)
		if len(sessions) == 0 {
			return fmt.Errorf("no sessions of at least %d flows in %s", cfg.Ingest.MinSessionLength, analyzeOpts.input)
		}
		log.Info("grouped flows into sessions", "sessions", len(sessions))
		flows = ingest.Flatten(sessions)
	}

	matrix := ingest.Extract(flows)
	fingerprint := ingest.Fingerprint(matrix)
	log.Info("extracted feature matrix", logging.Matrix(len(matrix), ingest.FeatureCount), "fingerprint", fingerprint[:16])

	m := metrics.New()
	m.FlowsIngested.Add(float64(len(flows)))

	metricsAddr := analyzeOpts.metricsAddr
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}
	if metricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, metricsAddr); err != nil {
				log.Warn("metrics endpoint failed", logging.Err(err))
			}
		}()
	}

	bus := events.NewBus()
	bus.Subscribe(events.EventTrainingProgress, func(e *events.Event) {
		if d, ok := e.Data.(*events.ProgressData); ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "\r%-10s %5.1f%%", d.Phase, d.Percent)
		}
	})
	bus.Subscribe(events.EventTrainingCompleted, func(*events.Event) {
		fmt.Fprintln(cmd.ErrOrStderr())
	})
	bus.Subscribe(events.EventTrainingFailed, func(*events.Event) {
		fmt.Fprintln(cmd.ErrOrStderr())
	})

	model := hmm.New(&hmm.Config{
		MaxIterations:   cfg.Training.MaxIterations,
		Tolerance:       cfg.Training.Tolerance,
		CovarianceFloor: cfg.Training.CovarianceFloor,
		MaxAutoStates:   cfg.Training.MaxAutoStates,
	})
	var opts []hmm.TrainerOption
	if analyzeOpts.inline {
		opts = append(opts, hmm.Inline())
	}
	trainer := hmm.NewTrainer(model, opts...)

	started := time.Now()
	result, err := trainer.Train(ctx, matrix, analyzeOpts.states, func(p hmm.ProgressMessage) {
		bus.EmitProgress("", p.Percent, p.Phase)
	})
	m.ObserveTraining(result, err, time.Since(started))
	if err != nil {
		bus.EmitFailed(err)
		return fmt.Errorf("training failed: %w", err)
	}
	bus.EmitCompleted(result)
	log.Info("training complete",
		"states", result.NStates,
		"iterations", result.Iterations,
		"converged", result.Converged,
		"logLikelihood", result.LogLikelihood,
		logging.Duration("elapsed", time.Since(started)))

	profiles, err := interpret.Profile(flows, result.States, result.NStates)
	if err != nil {
		return err
	}
	summaries := interpret.MapAll(profiles)

	report := &models.Report{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Input:       analyzeOpts.input,
		Fingerprint: fingerprint,
		FlowCount:   len(flows),
		Result:      result,
		States:      orderedSummaries(summaries),
	}
	return writeReport(report, analyzeOpts.output)
}

// loadFlows picks the loader from the file extension: .pcap/.pcapng/.cap go
// through the packet aggregator, everything else is read as CSV.
func loadFlows(ctx context.Context, path string) ([]models.Flow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pcap", ".pcapng", ".cap":
		return ingest.LoadPCAP(ctx, path)
	default:
		return ingest.LoadCSV(path)
	}
}

func orderedSummaries(byState map[int]models.StateSummary) []models.StateSummary {
	ids := make([]int, 0, len(byState))
	for id := range byState {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]models.StateSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, byState[id])
	}
	return out
}

func writeReport(report *models.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
