package service

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const DefaultConcurrency = 5

// Executor runs indexed tasks with at most limit of them in flight.
type Executor struct {
	limit int
}

func NewExecutor(limit int) *Executor {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Executor{limit: limit}
}

func (e *Executor) Limit() int { return e.limit }

// Run starts task(ctx, i) for i in [0, n) in index order, each exactly once.
// The first task error cancels the context handed to the others and stops
// admission; so does cancellation of ctx. Run waits for every started task
// before returning. It returns the first task error, else the context error
// that stopped admission, else nil.
func (e *Executor) Run(ctx context.Context, n int, task func(ctx context.Context, i int) error) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	sem := semaphore.NewWeighted(int64(e.limit))
	var g errgroup.Group

	var (
		once     sync.Once
		firstErr error
		admitErr error
	)
	for i := 0; i < n; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			admitErr = err
			break
		}
		i := i
		g.Go(func() error {
			err := task(ctx, i)
			if err != nil {
				// cancel before releasing the slot so nothing more is admitted
				once.Do(func() {
					firstErr = err
					cancel(err)
				})
			}
			sem.Release(1)
			return err
		})
	}

	_ = g.Wait()
	if firstErr != nil {
		return firstErr
	}
	if admitErr != nil {
		return admitErr
	}
	return ctx.Err()
}
