package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/xpdflow/errors"
)

// Graph owns a set of nodes and runs emit cascades over them.
type Graph struct {
	id    uuid.UUID
	name  string
	hooks []Hook

	mu    sync.Mutex
	nodes []*node
}

// Option configures a Graph.
type Option func(*Graph)

// WithName sets a human-readable graph name.
func WithName(name string) Option {
	return func(g *Graph) { g.name = name }
}

// WithHooks installs hooks that observe every node execution.
func WithHooks(hooks ...Hook) Option {
	return func(g *Graph) { g.hooks = append(g.hooks, hooks...) }
}

// NewGraph creates an empty graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{id: uuid.New(), name: "graph"}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ID returns the graph identity.
func (g *Graph) ID() uuid.UUID { return g.id }

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Len returns the number of live nodes.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, nd := range g.nodes {
		if !nd.destroyed {
			n++
		}
	}
	return n
}

// Destroy detaches every subscriber edge in the graph.
func (g *Graph) Destroy() {
	g.mu.Lock()
	nodes := append([]*node(nil), g.nodes...)
	g.mu.Unlock()
	for _, n := range nodes {
		n.detach()
	}
}

// recvFunc handles a value arriving on one input port of a node. It calls
// emit zero or more times; each emitted value is delivered to subscribers in
// order, depth first.
type recvFunc func(ctx context.Context, port int, v any, emit func(any)) error

type edge struct {
	to   *node
	port int
}

type node struct {
	id    uuid.UUID
	name  string
	graph *Graph
	recv  recvFunc

	// source nodes accept external Emit calls and Connect targets.
	source bool

	upstreams []*node
	subs      []edge
	destroyed bool

	lastMu  sync.RWMutex
	last    any
	hasLast bool
}

func (g *Graph) newNode(name string, recv recvFunc, upstreams ...*node) *node {
	n := &node{id: uuid.New(), name: name, graph: g, recv: recv}
	g.mu.Lock()
	g.nodes = append(g.nodes, n)
	g.mu.Unlock()
	for port, up := range upstreams {
		up.subscribe(n, port)
	}
	return n
}

func (n *node) subscribe(to *node, port int) {
	n.graph.mu.Lock()
	defer n.graph.mu.Unlock()
	n.subs = append(n.subs, edge{to: to, port: port})
	to.upstreams = append(to.upstreams, n)
}

func (n *node) setLast(v any) {
	n.lastMu.Lock()
	n.last, n.hasLast = v, true
	n.lastMu.Unlock()
}

func (n *node) getLast() (any, bool) {
	n.lastMu.RLock()
	defer n.lastMu.RUnlock()
	return n.last, n.hasLast
}

// detach destroys n and everything reachable downstream of it, and removes
// n from its upstreams' subscriber lists.
func (n *node) detach() {
	g := n.graph
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, up := range n.upstreams {
		kept := up.subs[:0]
		for _, e := range up.subs {
			if e.to != n {
				kept = append(kept, e)
			}
		}
		up.subs = kept
	}

	seen := map[*node]bool{}
	work := []*node{n}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		for _, e := range cur.subs {
			work = append(work, e.to)
		}
		cur.subs = nil
		cur.destroyed = true
	}
}

type task struct {
	n    *node
	port int
	v    any
}

// push schedules delivery of v from n to its subscribers so that the first
// subscriber is popped first.
func (g *Graph) push(stack []task, n *node, v any) []task {
	g.mu.Lock()
	subs := n.subs
	g.mu.Unlock()
	for i := len(subs) - 1; i >= 0; i-- {
		stack = append(stack, task{n: subs[i].to, port: subs[i].port, v: v})
	}
	return stack
}

// run delivers v as the output of n and drains the resulting cascade.
func (g *Graph) run(ctx context.Context, n *node, v any) error {
	n.setLast(v)
	stack := g.push(nil, n, v)

	var outs []any
	collect := func(o any) { outs = append(outs, o) }

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return errors.Canceled("emit", err)
		}
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		outs = outs[:0]
		if err := g.exec(ctx, t, collect); err != nil {
			return err
		}
		for _, o := range outs {
			t.n.setLast(o)
		}
		for i := len(outs) - 1; i >= 0; i-- {
			stack = g.push(stack, t.n, outs[i])
		}
	}
	return nil
}

func (g *Graph) exec(ctx context.Context, t task, emit func(any)) (err error) {
	hctx := ctx
	for _, h := range g.hooks {
		hctx = h.Before(hctx, t.n.name)
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = wrapNodeError(t.n.name, err)
		}
		d := time.Since(start)
		for i := len(g.hooks) - 1; i >= 0; i-- {
			g.hooks[i].After(hctx, t.n.name, d, err)
		}
	}()

	return t.n.recv(hctx, t.port, t.v, emit)
}

// wrapNodeError tags err with the failing node unless a nested emit already
// did.
func wrapNodeError(name string, err error) error {
	if appErr, ok := errors.AsAppError(err); ok {
		switch appErr.Code {
		case errors.ErrCodeNodeFailed, errors.ErrCodeCanceled:
			return err
		}
	}
	return errors.NodeFailed(name, err)
}
