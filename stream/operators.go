package stream

import "context"

// Map applies fn to every value of src.
func Map[I, O any](src *Stream[I], fn func(context.Context, I) (O, error)) *Stream[O] {
	n := src.n.graph.newNode(src.Name()+".map", func(ctx context.Context, _ int, v any, emit func(any)) error {
		out, err := fn(ctx, v.(I))
		if err != nil {
			return err
		}
		emit(out)
		return nil
	}, src.n)
	return &Stream[O]{n: n}
}

// Filter forwards values of src for which pred returns true. pred is called
// at dispatch time, so it may read live configuration.
func Filter[T any](src *Stream[T], pred func(T) bool) *Stream[T] {
	n := src.n.graph.newNode(src.Name()+".filter", func(_ context.Context, _ int, v any, emit func(any)) error {
		if pred(v.(T)) {
			emit(v)
		}
		return nil
	}, src.n)
	return &Stream[T]{n: n}
}

// Sink calls fn for every value of src and forwards the value unchanged.
func Sink[T any](src *Stream[T], fn func(context.Context, T) error) *Stream[T] {
	n := src.n.graph.newNode(src.Name()+".sink", func(ctx context.Context, _ int, v any, emit func(any)) error {
		if err := fn(ctx, v.(T)); err != nil {
			return err
		}
		emit(v)
		return nil
	}, src.n)
	return &Stream[T]{n: n}
}

// Union forwards every value from any of the given streams in arrival order.
func Union[T any](first *Stream[T], rest ...*Stream[T]) *Stream[T] {
	ups := make([]*node, 0, len(rest)+1)
	ups = append(ups, first.n)
	for _, s := range rest {
		ups = append(ups, s.n)
	}
	n := first.n.graph.newNode(first.Name()+".union", func(_ context.Context, _ int, v any, emit func(any)) error {
		emit(v)
		return nil
	}, ups...)
	return &Stream[T]{n: n}
}

// Accumulate folds values of src into a running state and emits every new
// state. Any value on a reset stream restores init without emitting.
func Accumulate[T, S any](src *Stream[T], init S, fn func(S, T) (S, error), reset ...Upstream) *Stream[S] {
	state := init
	ups := append([]*node{src.n}, bases(reset)...)
	n := src.n.graph.newNode(src.Name()+".accumulate", func(_ context.Context, port int, v any, emit func(any)) error {
		if port > 0 {
			state = init
			return nil
		}
		next, err := fn(state, v.(T))
		if err != nil {
			return err
		}
		state = next
		emit(state)
		return nil
	}, ups...)
	return &Stream[S]{n: n}
}

// Unique drops a value equal to the one immediately before it.
func Unique[T any](src *Stream[T], eq func(a, b T) bool) *Stream[T] {
	var prev T
	seen := false
	n := src.n.graph.newNode(src.Name()+".unique", func(_ context.Context, _ int, v any, emit func(any)) error {
		cur := v.(T)
		if seen && eq(prev, cur) {
			return nil
		}
		prev, seen = cur, true
		emit(v)
		return nil
	}, src.n)
	return &Stream[T]{n: n}
}
