package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/leapstack-labs/wrangle/internal/source"
	"github.com/leapstack-labs/wrangle/pkg/pipeline"
	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/sampling"
	"github.com/leapstack-labs/wrangle/pkg/step"
)

// Result is the outcome of running a pipeline over a source.
type Result struct {
	Rows    []*row.Row
	Skipped []*step.Error // Row is the index among the rows read
	Dropped int
	Read    int // rows read after sampling
	Batches int
	Elapsed time.Duration
}

// Columns returns the column names of the result in first-seen order.
func (r *Result) Columns() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, rw := range r.Rows {
		for _, name := range rw.Names() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// RunOptions tune a single run.
type RunOptions struct {
	// Sampling overrides the engine's default sampling when non-nil.
	Sampling *sampling.Options
}

// Run samples src and executes p over batches as they are read, with at most
// the engine's concurrency in flight. The source is not closed.
func (e *Engine) Run(ctx context.Context, p *pipeline.Pipeline, src source.Source, opts RunOptions) (*Result, error) {
	start := time.Now()

	so := e.sampling
	if opts.Sampling != nil {
		so = *opts.Sampling
	}
	it, err := sampling.Apply[*row.Row](src, so)
	if err != nil {
		return nil, fmt.Errorf("failed to sample source: %w", err)
	}

	done := false
	next := func(ctx context.Context) ([]*row.Row, bool, error) {
		if done {
			return nil, false, nil
		}
		batch, err := source.ReadBatch(ctx, it, e.batchSize)
		if err != nil {
			return nil, false, err
		}
		if len(batch) < e.batchSize {
			done = true
			if err := src.Err(); err != nil {
				return nil, false, err
			}
		}
		return batch, len(batch) > 0, nil
	}

	reports, err := e.executor.ExecuteStream(ctx, p, next, e.concurrency)
	if err != nil {
		return nil, err
	}

	res := &Result{Batches: len(reports)}
	for _, rep := range reports {
		res.Rows = append(res.Rows, rep.Rows...)
		res.Dropped += rep.Dropped
		for _, se := range rep.Skipped {
			se.Row += res.Read
			res.Skipped = append(res.Skipped, se)
		}
		res.Read += rep.Input
	}
	res.Elapsed = time.Since(start)

	e.logger.Debug("run completed",
		"method", so.Method,
		"rows_read", res.Read,
		"rows_out", len(res.Rows),
		"skipped", len(res.Skipped),
		"dropped", res.Dropped,
		"batches", res.Batches,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// RunRecipe compiles text and runs it over src.
func (e *Engine) RunRecipe(ctx context.Context, text string, src source.Source, opts RunOptions) (*Result, error) {
	status := e.Compile(text)
	if !status.OK() {
		return nil, fmt.Errorf("failed to compile recipe: %w", status.Err())
	}
	return e.Run(ctx, status.Pipeline, src, opts)
}
