package runtime

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RenderFunc drives the render context until the user quits, the producer has finished
// with it, or ctx ends
type RenderFunc func(ctx context.Context, s *Session) error

// Service is a companion task such as the HTTP server or an ingest reader. It must return
// when ctx ends.
type Service func(ctx context.Context) error

// Run executes the producer, the render context and the services together. The render
// context returning ends the run. A producer or service failure cancels everything else
// and is returned; errors from tasks stopped by that cancellation are ignored.
func (s *Session) Run(ctx context.Context, render RenderFunc, services ...Service) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Produce(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return render(gctx, s)
	})
	for _, svc := range services {
		g.Go(func() error {
			if err := svc(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
