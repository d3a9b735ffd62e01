package stream

import (
	"context"
	"sync"
)

// Collector records every value of a stream. It is safe to read from other
// goroutines while the graph emits.
type Collector[T any] struct {
	mu     sync.Mutex
	values []T
	stream *Stream[T]
}

// Collect subscribes a Collector to src.
func Collect[T any](src *Stream[T]) *Collector[T] {
	c := &Collector[T]{}
	c.stream = Sink(src, func(_ context.Context, v T) error {
		c.mu.Lock()
		c.values = append(c.values, v)
		c.mu.Unlock()
		return nil
	}).Named(src.Name() + ".collect")
	return c
}

// Values returns a copy of everything collected so far.
func (c *Collector[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.values...)
}

// Len returns the number of collected values.
func (c *Collector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// Last returns the most recently collected value.
func (c *Collector[T]) Last() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if len(c.values) == 0 {
		return zero, false
	}
	return c.values[len(c.values)-1], true
}

// Reset drops collected values.
func (c *Collector[T]) Reset() {
	c.mu.Lock()
	c.values = nil
	c.mu.Unlock()
}

// Stream returns the collecting node.
func (c *Collector[T]) Stream() *Stream[T] { return c.stream }
