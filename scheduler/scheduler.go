package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/vinayakanadinni99/ETL-Finance/model"
	"github.com/vinayakanadinni99/ETL-Finance/pipeline"
)

// DefaultSpec runs the pipeline once a day at midnight.
const DefaultSpec = "@daily"

// Runner is one pipeline run; *pipeline.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context) (*pipeline.Report, error)
}

// Scheduler triggers the pipeline on a cron schedule. Runs never overlap: a trigger
// that fires while the previous run is still going is skipped, and missed triggers
// are not caught up.
type Scheduler struct {
	Cron   *cron.Cron
	Spec   string
	runner Runner
	logger *slog.Logger
}

func New(runner Runner, logger *slog.Logger, spec string) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	s := &Scheduler{
		Cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		Spec:   spec,
		runner: runner,
		logger: logger,
	}

	if _, err := s.Cron.AddFunc(spec, s.runJob); err != nil {
		return nil, fmt.Errorf("register pipeline job %q: %w", spec, err)
	}
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("Scheduler started", "spec", s.Spec)
}

// Stop stops the scheduler. The returned context is done once a run in progress has finished.
func (s *Scheduler) Stop() context.Context {
	ctx := s.Cron.Stop()
	s.logger.Info("Scheduler stopped")
	return ctx
}

// RunNow executes the pipeline immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (*pipeline.Report, error) {
	s.logger.Info("Running pipeline")
	report, err := s.runner.Run(ctx)
	if err != nil {
		// left for the next trigger
		s.logger.Error("Pipeline run failed", "kind", model.KindOf(err).String(), "error", err)
		return report, err
	}
	s.logger.Info("Pipeline run succeeded", "rows_loaded", report.RowsLoaded, "anomalies", len(report.Anomalies))
	return report, nil
}

func (s *Scheduler) runJob() {
	s.RunNow(context.Background())
}
