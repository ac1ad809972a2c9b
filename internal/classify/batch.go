package classify

import (
	"context"
	"runtime"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/middle-housing/internal/model"
)

// ClassifyAll classifies rows in parallel and returns one classification per
// row in input order. Rows are split into contiguous chunks, one per worker;
// workers <= 0 uses GOMAXPROCS. The only error is context cancellation.
func (c *Classifier) ClassifyAll(ctx context.Context, rows []model.Row, cols model.ColumnMap, workers int) ([]model.Classification, error) {
	results := make([]model.Classification, len(rows))
	if len(rows) == 0 {
		return results, nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chunk := (len(rows) + workers - 1) / workers

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if gCtx.Err() != nil {
					return eris.Wrap(gCtx.Err(), "classify: batch cancelled")
				}
				results[i] = c.ClassifyRow(rows[i], cols)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
