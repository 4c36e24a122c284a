// Package runner composes one report pipeline per command: the fan-out
// streamer feeding a bounded channel, the single analyzer goroutine
// draining it, and a signal handler sharing the same lifecycle.
package runner

import (
	"context"
	"log/slog"
	"syscall"
	"time"

	"github.com/oklog/run"

	"github.com/clickaudit/clickaudit/internal/analyzer"
	"github.com/clickaudit/clickaudit/internal/clickhouse"
)

// streamBuffer bounds the pipeline channel so a slow consumer applies
// backpressure to every node instead of buffering rows without limit.
const streamBuffer = 128

// Streamer is the node fan-out surface the pipelines run on.
type Streamer interface {
	StreamQueryStats(ctx context.Context, filter clickhouse.QueryLogFilter, out chan<- clickhouse.QueryStats) error
	StreamQueryStatsByFingerprint(ctx context.Context, fingerprint uint64, filter clickhouse.QueryLogFilter, out chan<- clickhouse.QueryStats) error
	StreamQueryTotals(ctx context.Context, filter clickhouse.QueryLogFilter, out chan<- clickhouse.QueryTotals) error
	StreamErrorStats(ctx context.Context, filter clickhouse.ErrorsFilter, out chan<- clickhouse.ErrorStats) error
}

type Runner struct {
	streamer Streamer
	logger   *slog.Logger
}

func New(streamer Streamer, logger *slog.Logger) *Runner {
	return &Runner{streamer: streamer, logger: logger}
}

// TopQueries streams grouped query_log statistics from every node and
// returns the limit heaviest groups by sortBy.
func (r *Runner) TopQueries(ctx context.Context, filter clickhouse.QueryLogFilter, limit int, sortBy analyzer.SortBy) ([]clickhouse.QueryStats, error) {
	top, err := runPipeline(ctx, r.logger, "queries",
		func(ctx context.Context, out chan<- clickhouse.QueryStats) error {
			return r.streamer.StreamQueryStats(ctx, filter, out)
		},
		func(rows <-chan clickhouse.QueryStats) []clickhouse.QueryStats {
			return analyzer.TopQueries(rows, limit, sortBy)
		},
	)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, clickhouse.ErrNoResults
	}
	return top, nil
}

// InspectQuery merges the per-node rows of a single fingerprint into one
// detailed record.
func (r *Runner) InspectQuery(ctx context.Context, fingerprint uint64, filter clickhouse.QueryLogFilter) (clickhouse.QueryStats, error) {
	merged, err := runPipeline(ctx, r.logger, "inspect",
		func(ctx context.Context, out chan<- clickhouse.QueryStats) error {
			return r.streamer.StreamQueryStatsByFingerprint(ctx, fingerprint, filter, out)
		},
		func(rows <-chan clickhouse.QueryStats) []clickhouse.QueryStats {
			return analyzer.TopQueries(rows, 1, analyzer.SortByTotalImpact)
		},
	)
	if err != nil {
		return clickhouse.QueryStats{}, err
	}
	if len(merged) == 0 {
		return clickhouse.QueryStats{}, clickhouse.ErrNoResults
	}
	return merged[0], nil
}

// TotalQueries folds every node's ungrouped aggregate into one
// cluster-wide total. An empty window yields zero totals, not an error.
func (r *Runner) TotalQueries(ctx context.Context, filter clickhouse.QueryLogFilter) (clickhouse.QueryTotals, error) {
	return runPipeline(ctx, r.logger, "total",
		func(ctx context.Context, out chan<- clickhouse.QueryTotals) error {
			return r.streamer.StreamQueryTotals(ctx, filter, out)
		},
		analyzer.TotalQueries,
	)
}

// TopErrors streams per-code error counters from every node and returns
// the limit most frequent ones.
func (r *Runner) TopErrors(ctx context.Context, filter clickhouse.ErrorsFilter, limit int) ([]clickhouse.ErrorStats, error) {
	top, err := runPipeline(ctx, r.logger, "errors",
		func(ctx context.Context, out chan<- clickhouse.ErrorStats) error {
			return r.streamer.StreamErrorStats(ctx, filter, out)
		},
		func(rows <-chan clickhouse.ErrorStats) []clickhouse.ErrorStats {
			return analyzer.TopErrors(rows, limit)
		},
	)
	if err != nil {
		return nil, err
	}
	if len(top) == 0 {
		return nil, clickhouse.ErrNoResults
	}
	return top, nil
}

// runPipeline wires the three actors and runs them to completion. The
// stream actor owns the channel and closes it when every node is done,
// which releases the drain actor; the first error interrupts the rest
// and is what the caller sees. Rows drained before the failure stay
// merged into the result.
func runPipeline[T, R any](
	ctx context.Context,
	logger *slog.Logger,
	op string,
	stream func(ctx context.Context, out chan<- T) error,
	drain func(rows <-chan T) R,
) (R, error) {
	rows := make(chan T, streamBuffer)
	start := time.Now()

	var (
		g      run.Group
		result R
	)

	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			defer close(rows)
			return stream(ctx, rows)
		}, func(error) {
			cancel()
		})
	}

	{
		g.Add(func() error {
			result = drain(rows)
			return nil
		}, func(error) {})
	}

	{
		g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	}

	if err := g.Run(); err != nil {
		return result, err
	}

	logger.Debug("pipeline.done", "op", op, "elapsed", time.Since(start))
	return result, nil
}
