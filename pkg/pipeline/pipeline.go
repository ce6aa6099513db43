// Package pipeline runs compiled steps over batches of rows.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/step"
)

// Pipeline is an ordered, immutable list of steps. It holds no row state and
// may be shared across goroutines.
type Pipeline struct {
	steps []step.Step
}

// New creates a pipeline.
func New(steps ...step.Step) *Pipeline {
	cp := make([]step.Step, len(steps))
	copy(cp, steps)
	return &Pipeline{steps: cp}
}

// Len returns the number of steps.
func (p *Pipeline) Len() int { return len(p.steps) }

// Steps returns a copy of the steps in order.
func (p *Pipeline) Steps() []step.Step {
	cp := make([]step.Step, len(p.steps))
	copy(cp, p.steps)
	return cp
}

// Report is the outcome of executing one batch.
type Report struct {
	Input   int // rows in the batch
	Rows    []*row.Row
	Skipped []*step.Error // row failures absorbed by SkipRow steps
	Dropped int           // rows removed by filtering steps
}

// Executor applies pipelines to batches.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an executor. A nil logger discards output.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{logger: logger}
}

// Execute runs p over rows and returns the transformed batch. A failure in a
// FailBatch step aborts the batch with a *step.Error and no rows.
func (e *Executor) Execute(p *Pipeline, rows []*row.Row) ([]*row.Row, error) {
	rep, err := e.ExecuteReport(p, rows)
	if err != nil {
		return nil, err
	}
	return rep.Rows, nil
}

// entry tracks a row and its index in the input batch.
type entry struct {
	index int
	row   *row.Row
}

// ExecuteReport runs p over rows, threading the output of each step into the
// next, and reports rows skipped under SkipRow policies.
func (e *Executor) ExecuteReport(p *Pipeline, rows []*row.Row) (*Report, error) {
	cur := make([]entry, len(rows))
	for i, r := range rows {
		cur[i] = entry{index: i, row: r}
	}

	rep := &Report{Input: len(rows)}
	for _, s := range p.steps {
		info := s.Info()
		next := make([]entry, 0, len(cur))
		skipped := 0

		for _, en := range cur {
			in := en.row
			if info.Policy == step.SkipRow {
				in = en.row.Clone()
			}

			out, err := s.Transform(in)
			if err != nil {
				se := step.Wrap(info, en.index, err)
				if info.Policy != step.SkipRow {
					e.logger.Debug("step failed", "directive", info.Directive, "line", info.Line, "row", en.index, "error", err.Error())
					return nil, se
				}
				rep.Skipped = append(rep.Skipped, se)
				next = append(next, en)
				skipped++
				continue
			}
			if out == nil {
				rep.Dropped++
				continue
			}
			next = append(next, entry{index: en.index, row: out})
		}

		e.logger.Debug("step executed",
			"directive", info.Directive,
			"line", info.Line,
			"rows_in", len(cur),
			"rows_out", len(next),
			"skipped", skipped,
		)
		cur = next
	}

	rep.Rows = make([]*row.Row, len(cur))
	for i, en := range cur {
		rep.Rows[i] = en.row
	}
	return rep, nil
}

// ExecuteBatches runs p over independent batches with at most limit batches
// in flight. Reports are returned in batch order. The first failing batch
// cancels the rest.
func (e *Executor) ExecuteBatches(ctx context.Context, p *Pipeline, batches [][]*row.Row, limit int) ([]*Report, error) {
	i := 0
	next := func(context.Context) ([]*row.Row, bool, error) {
		if i == len(batches) {
			return nil, false, nil
		}
		i++
		return batches[i-1], true, nil
	}
	return e.ExecuteStream(ctx, p, next, limit)
}

// BatchFunc returns the next batch to execute. It reports false once there
// are no more batches.
type BatchFunc func(ctx context.Context) ([]*row.Row, bool, error)

// ExecuteStream pulls batches from next and runs p over each one as soon as
// it is read, with at most limit batches in flight. Pulling waits while the
// limit is reached, so only limit+1 input batches are held at a time.
// Reports are returned in batch order. The first failing batch cancels the
// rest and stops pulling.
func (e *Executor) ExecuteStream(ctx context.Context, p *Pipeline, next BatchFunc, limit int) ([]*Report, error) {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	// Slots are appended here and filled by the goroutines.
	type slot struct{ report *Report }
	var slots []*slot
	var readErr error

	for {
		batch, ok, err := next(gctx)
		if err != nil {
			readErr = err
			break
		}
		if !ok {
			break
		}

		i, out := len(slots), &slot{}
		slots = append(slots, out)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rep, err := e.ExecuteReport(p, batch)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			out.report = rep
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if readErr != nil {
		return nil, readErr
	}

	reports := make([]*Report, len(slots))
	for i, s := range slots {
		reports[i] = s.report
	}
	e.logger.Debug("batches executed", "batches", len(reports), "steps", p.Len())
	return reports, nil
}
