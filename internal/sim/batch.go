package sim

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Job builds and runs one independent simulation.
type Job func(ctx context.Context) (*Result, error)

// RunAll runs jobs on at most workers goroutines (unbounded when workers
// is not positive). Results and errors are indexed like jobs; a failing job
// does not stop the others.
func RunAll(ctx context.Context, jobs []Job, workers int) ([]*Result, []error) {
	results := make([]*Result, len(jobs))
	errs := make([]error, len(jobs))

	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			res, err := job(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("job %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, errs
}
