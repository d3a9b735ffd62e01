package stream

import (
	"context"

	"github.com/google/uuid"

	"github.com/kbukum/xpdflow/errors"
)

// Upstream is any stream regardless of its element type. Untyped
// combinators such as CombineLatest take Upstreams.
type Upstream interface {
	Name() string
	base() *node
}

// Stream is a typed handle on a graph node.
type Stream[T any] struct {
	n *node
}

// New creates a source stream that values are emitted into.
func New[T any](g *Graph, name string) *Stream[T] {
	n := g.newNode(name, func(_ context.Context, _ int, v any, emit func(any)) error {
		emit(v)
		return nil
	})
	n.source = true
	return &Stream[T]{n: n}
}

func (s *Stream[T]) base() *node { return s.n }

// Name returns the node name.
func (s *Stream[T]) Name() string { return s.n.name }

// ID returns the node identity.
func (s *Stream[T]) ID() uuid.UUID { return s.n.id }

// Graph returns the owning graph.
func (s *Stream[T]) Graph() *Graph { return s.n.graph }

// Named renames the node and returns s.
func (s *Stream[T]) Named(name string) *Stream[T] {
	s.n.name = name
	return s
}

// Emit pushes v to every subscriber and runs the downstream cascade to
// completion.
func (s *Stream[T]) Emit(ctx context.Context, v T) error {
	return s.n.graph.run(ctx, s.n, v)
}

// Last returns the most recent value this stream produced.
func (s *Stream[T]) Last() (T, bool) {
	var zero T
	v, ok := s.n.getLast()
	if !ok {
		return zero, false
	}
	return v.(T), true
}

// Destroyed reports whether s was detached by Destroy.
func (s *Stream[T]) Destroyed() bool {
	s.n.graph.mu.Lock()
	defer s.n.graph.mu.Unlock()
	return s.n.destroyed
}

// Subscribers returns the number of attached subscriber edges.
func (s *Stream[T]) Subscribers() int {
	s.n.graph.mu.Lock()
	defer s.n.graph.mu.Unlock()
	return len(s.n.subs)
}

// Destroy detaches u from its upstreams and tears down every subscriber edge
// reachable from it.
func Destroy(u Upstream) {
	u.base().detach()
}

// Connect forwards every value of src into dst. dst must be a source stream
// of the same graph.
func Connect[T any](src, dst *Stream[T]) error {
	if !dst.n.source {
		return errors.Wiring(dst.Name(), "connect target must be a source stream")
	}
	if src.n.graph != dst.n.graph {
		return errors.Wiring(dst.Name(), "connect across graphs")
	}
	src.n.subscribe(dst.n, 0)
	return nil
}

func bases(us []Upstream) []*node {
	out := make([]*node, len(us))
	for i, u := range us {
		out[i] = u.base()
	}
	return out
}
