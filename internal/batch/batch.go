package batch

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/ZanzyTHEbar/synastry-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/synastry"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/types"
)

// Observer is told about every candidate that scored
type Observer func(mode string, in synastry.Input, item types.BatchItem)

// Runner scores one subject against many candidates with bounded
// parallelism. The analyzer is read-only, so evaluations share it.
type Runner struct {
	analyzer    *synastry.Analyzer
	concurrency int
	observe     Observer
}

// NewRunner creates a runner; concurrency below one means one
func NewRunner(analyzer *synastry.Analyzer, concurrency int, observe Observer) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{analyzer: analyzer, concurrency: concurrency, observe: observe}
}

// Run evaluates every candidate with the subject on the left. A failing
// candidate yields an item with Error set and does not stop the others.
// Only ctx cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, subject synastry.Party, candidates []types.Candidate, mode string) ([]types.BatchItem, error) {
	if mode == "" {
		mode = types.ModeReport
	}

	items := make([]types.BatchItem, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, cand := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			in := synastry.Input{Left: subject, Right: cand.Party}
			items[i] = r.evaluate(cand.ID, in, mode)
			if r.observe != nil && items[i].Error == nil {
				r.observe(mode, in, items[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.NewTimeoutError("batch evaluation interrupted", err)
	}

	Sort(items)
	return items, nil
}

func (r *Runner) evaluate(id string, in synastry.Input, mode string) types.BatchItem {
	item := types.BatchItem{ID: id}

	switch mode {
	case types.ModeDirectional:
		res, err := r.analyzer.Directional(in)
		if err != nil {
			return failed(item, err)
		}
		item.Percent = res.Percent
		item.Directional = &res
	default:
		rep, err := r.analyzer.Report(in)
		if err != nil {
			return failed(item, err)
		}
		item.Percent = rep.Percent
		item.Report = &rep
	}
	return item
}

func failed(item types.BatchItem, err error) types.BatchItem {
	body := apperrors.ToAppError(err).Response().Error
	item.Error = &body
	return item
}

// Sort orders items by descending percent, ties by id, failures last in
// their original order
func Sort(items []types.BatchItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if (a.Error == nil) != (b.Error == nil) {
			return a.Error == nil
		}
		if a.Error != nil {
			return false
		}
		if a.Percent != b.Percent {
			return a.Percent > b.Percent
		}
		return a.ID < b.ID
	})
}

// Failed counts items that carry an error
func Failed(items []types.BatchItem) int {
	n := 0
	for _, it := range items {
		if it.Error != nil {
			n++
		}
	}
	return n
}
