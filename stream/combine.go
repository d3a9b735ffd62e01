package stream

import (
	"context"
	"strings"
)

// Tuple holds one value per input of an untyped combinator, in input order.
type Tuple []any

// At returns element i of t as a T.
func At[T any](t Tuple, i int) T {
	return t[i].(T)
}

// Pair is the output of two-input combinators.
type Pair[A, B any] struct {
	A A
	B B
}

// Triple is the output of three-input combinators.
type Triple[A, B, C any] struct {
	A A
	B B
	C C
}

// Quad is the output of four-input combinators.
type Quad[A, B, C, D any] struct {
	A A
	B B
	C C
	D D
}

// Trigger selects which inputs of a typed combine fire emissions.
type Trigger uint8

const (
	OnA   Trigger = 1 << 0
	OnB   Trigger = 1 << 1
	OnC   Trigger = 1 << 2
	OnD   Trigger = 1 << 3
	OnAny Trigger = 0xff
)

type latest struct {
	vals []any
	has  []bool
	n    int
}

func newLatest(size int) *latest {
	return &latest{vals: make([]any, size), has: make([]bool, size)}
}

func (l *latest) set(port int, v any) {
	if !l.has[port] {
		l.has[port] = true
		l.n++
	}
	l.vals[port] = v
}

func (l *latest) full() bool { return l.n == len(l.vals) }

func (l *latest) snapshot() Tuple {
	return append(Tuple(nil), l.vals...)
}

func joinNames(us []*node) string {
	names := make([]string, len(us))
	for i, u := range us {
		names[i] = u.name
	}
	return strings.Join(names, ",")
}

// combineLatest caches the newest value of every input and emits a snapshot
// when a trigger input fires and every input has produced at least once.
func combineLatest(g *Graph, ups []*node, trigger func(port int) bool) *node {
	state := newLatest(len(ups))
	return g.newNode("combine_latest("+joinNames(ups)+")", func(_ context.Context, port int, v any, emit func(any)) error {
		state.set(port, v)
		if trigger(port) && state.full() {
			emit(state.snapshot())
		}
		return nil
	}, ups...)
}

// CombineLatest emits (triggers..., passives...) whenever any trigger input
// fires, once every input has a value. Emissions before that are dropped.
func CombineLatest(triggers []Upstream, passives ...Upstream) *Stream[Tuple] {
	ups := append(bases(triggers), bases(passives)...)
	nTrig := len(triggers)
	n := combineLatest(ups[0].graph, ups, func(port int) bool { return port < nTrig })
	return &Stream[Tuple]{n: n}
}

func triggerMask(on Trigger) func(int) bool {
	return func(port int) bool { return on&(1<<port) != 0 }
}

// Combine is the typed two-input combine-latest.
func Combine[A, B any](a *Stream[A], b *Stream[B], on Trigger) *Stream[Pair[A, B]] {
	src := combineLatest(a.n.graph, []*node{a.n, b.n}, triggerMask(on))
	return Map(&Stream[Tuple]{n: src}, func(_ context.Context, t Tuple) (Pair[A, B], error) {
		return Pair[A, B]{A: At[A](t, 0), B: At[B](t, 1)}, nil
	}).Named(src.name)
}

// Combine3 is the typed three-input combine-latest.
func Combine3[A, B, C any](a *Stream[A], b *Stream[B], c *Stream[C], on Trigger) *Stream[Triple[A, B, C]] {
	src := combineLatest(a.n.graph, []*node{a.n, b.n, c.n}, triggerMask(on))
	return Map(&Stream[Tuple]{n: src}, func(_ context.Context, t Tuple) (Triple[A, B, C], error) {
		return Triple[A, B, C]{A: At[A](t, 0), B: At[B](t, 1), C: At[C](t, 2)}, nil
	}).Named(src.name)
}

// Combine4 is the typed four-input combine-latest.
func Combine4[A, B, C, D any](a *Stream[A], b *Stream[B], c *Stream[C], d *Stream[D], on Trigger) *Stream[Quad[A, B, C, D]] {
	src := combineLatest(a.n.graph, []*node{a.n, b.n, c.n, d.n}, triggerMask(on))
	return Map(&Stream[Tuple]{n: src}, func(_ context.Context, t Tuple) (Quad[A, B, C, D], error) {
		return Quad[A, B, C, D]{A: At[A](t, 0), B: At[B](t, 1), C: At[C](t, 2), D: At[D](t, 3)}, nil
	}).Named(src.name)
}

// ZipLatest pairs every value of primary with the latest value of other.
// primary is lossless: its values wait in a buffer until other has produced,
// then all buffered values flush in order. other is lossy and never triggers
// an emission on its own unless primary values are waiting.
func ZipLatest[A, B any](primary *Stream[A], other *Stream[B]) *Stream[Pair[A, B]] {
	return zipLatest(primary, other, nil)
}

// ZipLatestOr is ZipLatest with fallback standing in for other until other
// first fires, so primary values never wait.
func ZipLatestOr[A, B any](primary *Stream[A], other *Stream[B], fallback B) *Stream[Pair[A, B]] {
	return zipLatest(primary, other, &fallback)
}

func zipLatest[A, B any](primary *Stream[A], other *Stream[B], fallback *B) *Stream[Pair[A, B]] {
	var (
		buffer []A
		last   B
		has    bool
	)
	if fallback != nil {
		last, has = *fallback, true
	}
	n := primary.n.graph.newNode("zip_latest("+primary.Name()+","+other.Name()+")", func(_ context.Context, port int, v any, emit func(any)) error {
		if port == 0 {
			buffer = append(buffer, v.(A))
		} else {
			last, has = v.(B), true
		}
		if !has {
			return nil
		}
		pending := buffer
		buffer = nil
		for _, a := range pending {
			emit(Pair[A, B]{A: a, B: last})
		}
		return nil
	}, primary.n, other.n)
	return &Stream[Pair[A, B]]{n: n}
}

// Zip pairs the i-th value of a with the i-th value of b.
func Zip[A, B any](a *Stream[A], b *Stream[B]) *Stream[Pair[A, B]] {
	var qa []A
	var qb []B
	n := a.n.graph.newNode("zip("+a.Name()+","+b.Name()+")", func(_ context.Context, port int, v any, emit func(any)) error {
		if port == 0 {
			qa = append(qa, v.(A))
		} else {
			qb = append(qb, v.(B))
		}
		for len(qa) > 0 && len(qb) > 0 {
			emit(Pair[A, B]{A: qa[0], B: qb[0]})
			qa, qb = qa[1:], qb[1:]
		}
		return nil
	}, a.n, b.n)
	return &Stream[Pair[A, B]]{n: n}
}
