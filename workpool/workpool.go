package workpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/kbukum/xpdflow/errors"
)

// ProgressFunc is called on the gathering goroutine after each successful
// task with the number of completed tasks and the batch size.
type ProgressFunc func(done, total int)

type options struct {
	name     string
	progress ProgressFunc
}

// Option configures a Run call.
type Option func(*options)

// WithName sets the task label used in WORKER_FAILED errors.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// DefaultWorkers returns the pool size used when n <= 0.
func DefaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

type result[R any] struct {
	val R
	err error
}

// Run applies fn to every task using at most n concurrent workers and
// returns the results in completion order.
func Run[T, R any](ctx context.Context, n int, tasks []T, fn func(context.Context, T) (R, error), opts ...Option) ([]R, error) {
	o := options{name: "task"}
	for _, opt := range opts {
		opt(&o)
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	if n <= 0 {
		n = DefaultWorkers()
	}
	if n > len(tasks) {
		n = len(tasks)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan int)
	out := make(chan result[R], n)
	var wg sync.WaitGroup

	// Producer: hand out task indices until done or cancelled
	go func() {
		defer close(in)
		for i := range tasks {
			select {
			case in <- i:
			case <-workerCtx.Done():
				return
			}
		}
	}()

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range in {
				if workerCtx.Err() != nil {
					continue
				}
				out <- invoke(workerCtx, o.name, i, tasks[i], fn)
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make([]R, 0, len(tasks))
	var firstErr error
	for r := range out {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
				cancel()
			}
			continue
		}
		if firstErr != nil {
			continue
		}
		results = append(results, r.val)
		if o.progress != nil {
			o.progress(len(results), len(tasks))
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if len(results) < len(tasks) {
		return nil, errors.Canceled(o.name, ctx.Err())
	}
	return results, nil
}

func invoke[T, R any](ctx context.Context, name string, i int, task T, fn func(context.Context, T) (R, error)) (res result[R]) {
	label := fmt.Sprintf("%s[%d]", name, i)
	defer func() {
		if r := recover(); r != nil {
			res = result[R]{err: errors.WorkerFailed(label, fmt.Errorf("panic: %v", r))}
		}
	}()
	val, err := fn(ctx, task)
	if err != nil {
		return result[R]{err: errors.WorkerFailed(label, err)}
	}
	return result[R]{val: val}
}
