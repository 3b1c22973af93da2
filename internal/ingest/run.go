package ingest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/errors"
)

// RunOptions configure a concurrent build.
type RunOptions struct {
	BuildOptions
	Workers int // <= 0 means 1
}

// Run builds rows concurrently and returns results in row order. Building is
// pure, so workers share nothing but the results slice, each writing its own
// index. Cancelling ctx stops scheduling and returns a CANCELLED error.
func Run(ctx context.Context, rows []Row, opts RunOptions) ([]Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}

	results := make([]Result, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, row := range rows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = Build(row, opts.BuildOptions)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.NewCancelled("ingest")
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("ingest")
	}
	return results, nil
}
