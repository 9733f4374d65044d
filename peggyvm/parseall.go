package peggyvm

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ParseAll matches every input against p concurrently and returns the
// results in input order. Each worker owns its own Machine; the Program is
// shared. The first runtime error or context cancellation stops the
// remaining parses and is returned.
func ParseAll(ctx context.Context, p *Program, inputs [][]byte, opts ExecOptions) ([]Result, error) {
	results := make([]Result, len(inputs))
	if len(inputs) == 0 {
		return results, nil
	}

	workers := opts.Workers
	if workers <= 0 || workers > len(inputs) {
		workers = len(inputs)
	}

	g, ctx := errgroup.WithContext(ctx)
	next := make(chan int)

	g.Go(func() error {
		defer close(next)
		for i := range inputs {
			select {
			case next <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			var m *Machine
			for i := range next {
				if m == nil {
					m = p.Exec(inputs[i], opts)
				} else {
					m.Reset(inputs[i])
				}
				if err := m.RunContext(ctx); err != nil {
					return err
				}
				results[i] = m.Result()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debugf("parsed %d inputs with %d workers", len(inputs), workers)
	return results, nil
}
