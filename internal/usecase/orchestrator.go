package usecase

import (
	"context"
	"fmt"
	"log/slog"
)

// OrchestratorDeps wires every pipeline stage plus the shared gateway.
type OrchestratorDeps struct {
	Ingestor    *Ingestor
	Summarizer  *Summarizer
	FactChecker *FactChecker
	Commentator *Commentator
	Formatter   *Formatter
	Publisher   *Publisher
	Streamer    *Streamer

	// Gateway is released exactly once at the end of every run, whether or
	// not a stage failed.
	Gateway interface{ Close() }
	Logger  *slog.Logger
}

// Orchestrator sequences the pipeline stages. Two variants share a common
// prefix: the scheduled digest and the low-latency live stream.
type Orchestrator struct {
	deps   OrchestratorDeps
	logger *slog.Logger
}

// NewOrchestrator constructs the pipeline driver.
func NewOrchestrator(deps OrchestratorDeps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{deps: deps, logger: logger}
}

type stage struct {
	name string
	run  func(context.Context) error
}

// RunDigest executes ingest, the derivation chain, newsletter assembly,
// and subscriber delivery, strictly in sequence.
func (o *Orchestrator) RunDigest(ctx context.Context) error {
	defer o.release()

	return o.runStages(ctx, []stage{
		{"ingest", o.ingest},
		{"summarize", o.deps.Summarizer.Run},
		{"factcheck", o.deps.FactChecker.Run},
		{"commentary", o.deps.Commentator.Run},
		{"format", o.deps.Formatter.Run},
		{"publish", o.deps.Publisher.Run},
	})
}

// RunStream executes the live-stream variant: ingest, summarize,
// fact-check, stream.
func (o *Orchestrator) RunStream(ctx context.Context) error {
	defer o.release()

	return o.runStages(ctx, []stage{
		{"ingest", o.ingest},
		{"summarize", o.deps.Summarizer.Run},
		{"factcheck", o.deps.FactChecker.Run},
		{"stream", o.deps.Streamer.Run},
	})
}

func (o *Orchestrator) runStages(ctx context.Context, stages []stage) error {
	for _, st := range stages {
		o.logger.Info("stage starting", "stage", st.name)
		if err := st.run(ctx); err != nil {
			return fmt.Errorf("stage %s: %w", st.name, err)
		}
	}
	return nil
}

func (o *Orchestrator) ingest(ctx context.Context) error {
	_, err := o.deps.Ingestor.Run(ctx)
	return err
}

func (o *Orchestrator) release() {
	if o.deps.Gateway != nil {
		o.deps.Gateway.Close()
	}
}
