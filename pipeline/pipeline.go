package pipeline

//go:generate mockgen -source=pipeline.go -destination=mock_pipeline_test.go -package=pipeline Extractor,Store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/vinayakanadinni99/ETL-Finance/model"
	"github.com/vinayakanadinni99/ETL-Finance/transform"
	"github.com/vinayakanadinni99/ETL-Finance/utils"
)

// Step names, in the order they run.
const (
	StepCreateTable = "create_table"
	StepExtract     = "extract_time_series"
	StepTransform   = "transform_time_series"
	StepLoad        = "load_time_series"
)

var stepOrder = []string{StepCreateTable, StepExtract, StepTransform, StepLoad}

// Extractor fetches the raw provider payload for one symbol.
type Extractor interface {
	GetDailyTimeSeries(ctx context.Context, symbol, outputSize string) ([]byte, error)
}

// Store provisions the time series table and upserts rows into it.
type Store interface {
	CreateTable(ctx context.Context) error
	Upsert(ctx context.Context, rows []model.Row) (int, error)
}

type Options struct {
	Symbol     string
	OutputSize string
	// DryRun skips create_table and load_time_series and writes the rows as CSV to Output.
	DryRun       bool
	Output       io.Writer
	TimeProvider utils.TimeProvider
}

type StepResult struct {
	Name     string
	Duration time.Duration
	Skipped  bool
	Err      error
}

type Report struct {
	Symbol        string
	StartedAt     time.Time
	RowsExtracted int
	RowsLoaded    int
	Anomalies     []string
	Steps         []StepResult
}

// Pipeline runs create_table -> extract_time_series -> transform_time_series ->
// load_time_series for a single symbol. Each step only runs after its predecessor
// succeeded.
type Pipeline struct {
	extractor Extractor
	store     Store
	logger    *slog.Logger
	opts      Options
}

func New(extractor Extractor, store Store, logger *slog.Logger, opts Options) (*Pipeline, error) {
	if extractor == nil {
		return nil, errors.New("pipeline requires an extractor")
	}
	if store == nil && !opts.DryRun {
		return nil, errors.New("pipeline requires a store unless running dry")
	}
	if opts.Symbol == "" {
		return nil, errors.New("pipeline requires a symbol")
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = utils.RealTimeProvider{}
	}
	if opts.DryRun && opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Pipeline{
		extractor: extractor,
		store:     store,
		logger:    logger.With("symbol", opts.Symbol),
		opts:      opts,
	}, nil
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	return append([]string(nil), stepOrder...)
}

// Run executes the steps once. The returned report is never nil; on failure it
// holds the results of the steps that ran, the last one carrying the error.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		Symbol:    p.opts.Symbol,
		StartedAt: p.opts.TimeProvider.Now(),
	}
	p.logger.Info("Starting pipeline run", "output_size", p.opts.OutputSize, "dry_run", p.opts.DryRun)

	err := p.runStep(ctx, report, StepCreateTable, p.opts.DryRun, func(ctx context.Context) error {
		return p.store.CreateTable(ctx)
	})
	if err != nil {
		return report, err
	}

	var body []byte
	err = p.runStep(ctx, report, StepExtract, false, func(ctx context.Context) error {
		var err error
		body, err = p.extractor.GetDailyTimeSeries(ctx, p.opts.Symbol, p.opts.OutputSize)
		return err
	})
	if err != nil {
		return report, err
	}

	var rows []model.Row
	err = p.runStep(ctx, report, StepTransform, false, func(context.Context) error {
		var err error
		rows, err = transform.NormalizeJSON(body)
		return err
	})
	if err != nil {
		return report, err
	}
	report.RowsExtracted = len(rows)
	p.reportAnomalies(report, rows)

	if p.opts.DryRun {
		csv, err := transform.RowsToCSV(rows)
		if err != nil {
			return report, fmt.Errorf("error rendering dry run output: %w", err)
		}
		if _, err := p.opts.Output.Write(csv); err != nil {
			return report, fmt.Errorf("error writing dry run output: %w", err)
		}
	}

	err = p.runStep(ctx, report, StepLoad, p.opts.DryRun, func(ctx context.Context) error {
		n, err := p.store.Upsert(ctx, rows)
		report.RowsLoaded = n
		return err
	})
	if err != nil {
		return report, err
	}

	p.logger.Info("Pipeline run finished",
		"rows_extracted", report.RowsExtracted,
		"rows_loaded", report.RowsLoaded,
		"anomalies", len(report.Anomalies),
	)
	return report, nil
}

// runStep executes fn as the named step, recording its result. A panic inside fn is
// turned into the step's error.
func (p *Pipeline) runStep(ctx context.Context, report *Report, name string, skip bool, fn func(context.Context) error) error {
	if skip {
		report.Steps = append(report.Steps, StepResult{Name: name, Skipped: true})
		p.logger.Debug("Skipping step", "step", name)
		return nil
	}

	start := time.Now()
	err := ctx.Err()
	if err == nil {
		var pc panics.Catcher
		pc.Try(func() { err = fn(ctx) })
		if r := pc.Recovered(); r != nil {
			err = r.AsError()
		}
	}
	result := StepResult{Name: name, Duration: time.Since(start), Err: err}
	report.Steps = append(report.Steps, result)

	if err != nil {
		p.logger.Error("Step failed", "step", name, "kind", model.KindOf(err).String(), "error", err)
		return fmt.Errorf("step %s failed: %w", name, err)
	}
	p.logger.Info("Step finished", "step", name, "duration", result.Duration)
	return nil
}

func (p *Pipeline) reportAnomalies(report *Report, rows []model.Row) {
	for _, row := range rows {
		for _, a := range row.Anomalies() {
			msg := fmt.Sprintf("%s: %s", row.Key(), a)
			report.Anomalies = append(report.Anomalies, msg)
			p.logger.Warn("Row anomaly", "row", row.Key().String(), "anomaly", a)
		}
	}
}
