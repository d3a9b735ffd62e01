package link

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/observability"
	"github.com/kbukum/xpdflow/stream"
)

// Assembler validates chunk declarations and builds them into a graph.
type Assembler struct {
	chunks []Chunk
	log    *logger.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the assembler logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Assembler) { a.log = l }
}

// NewAssembler creates an empty Assembler.
func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{log: logger.Get("link")}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Add appends chunks in registration order.
func (a *Assembler) Add(chunks ...Chunk) *Assembler {
	a.chunks = append(a.chunks, chunks...)
	return a
}

// Order validates the declarations and returns chunk names in build order.
func (a *Assembler) Order() ([]string, error) {
	order, err := a.plan()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(order))
	for i, idx := range order {
		names[i] = a.chunks[idx].Name
	}
	return names, nil
}

// Assemble builds every chunk into g and returns the resulting namespace.
func (a *Assembler) Assemble(ctx context.Context, g *stream.Graph) (*Namespace, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanAssembling)
	defer span.End()

	order, err := a.plan()
	if err != nil {
		observability.SetSpanError(ctx, err)
		return nil, err
	}

	ns := newNamespace(g)
	names := make([]string, 0, len(order))
	for _, idx := range order {
		c := &a.chunks[idx]
		scope := newScope(c, ns)
		if c.Build != nil {
			if err := c.Build(scope); err != nil {
				if appErr, ok := errors.AsAppError(err); ok && appErr.Code == errors.ErrCodeWiring {
					return nil, err
				}
				return nil, errors.Wiring(c.Name, "build failed").WithCause(err)
			}
		}
		if missing := scope.missing(); len(missing) > 0 {
			return nil, errors.Wiring(c.Name, "did not provide "+strings.Join(missing, ", "))
		}
		names = append(names, c.Name)
	}

	observability.SetSpanAttribute(ctx, observability.AttrChunks, len(names))
	a.log.WithContext(ctx).Debug("pipeline assembled", logger.Fields(
		logger.FieldChunk, strings.Join(names, ","),
		"ports", len(ns.order),
	))
	return ns, nil
}

// plan checks names, producers, types and cycles and returns chunk indices
// in a topological order that keeps registration order among independent
// chunks.
func (a *Assembler) plan() ([]int, error) {
	seen := make(map[string]bool, len(a.chunks))
	producer := make(map[string]int)
	for i, c := range a.chunks {
		if seen[c.Name] {
			return nil, errors.Wiring(c.Name, "duplicate chunk")
		}
		seen[c.Name] = true
		for _, p := range c.Outputs {
			if j, ok := producer[p.Name]; ok {
				return nil, errors.Wiring(p.Name, fmt.Sprintf("produced by both %s and %s", a.chunks[j].Name, c.Name))
			}
			producer[p.Name] = i
		}
	}

	deps := make([]map[int]bool, len(a.chunks))
	dependents := make([][]int, len(a.chunks))
	for i, c := range a.chunks {
		deps[i] = make(map[int]bool)
		for _, in := range c.Inputs {
			j, ok := producer[in.Name]
			if !ok {
				return nil, errors.Wiring(in.Name, fmt.Sprintf("unresolved input of %s", c.Name))
			}
			if out := outputInfo(a.chunks[j], in.Name); out.Type != in.Type {
				return nil, errors.Wiring(in.Name, fmt.Sprintf("%s expects %v, %s produces %v", c.Name, in.Type, a.chunks[j].Name, out.Type))
			}
			if j == i {
				return nil, errors.Wiring(c.Name, "consumes its own output "+in.Name)
			}
			if !deps[i][j] {
				deps[i][j] = true
				dependents[j] = append(dependents[j], i)
			}
		}
	}

	// Kahn's algorithm, always taking the earliest registered ready chunk.
	inDegree := make([]int, len(a.chunks))
	for i := range a.chunks {
		inDegree[i] = len(deps[i])
	}
	done := make([]bool, len(a.chunks))
	order := make([]int, 0, len(a.chunks))
	for len(order) < len(a.chunks) {
		next := -1
		for i := range a.chunks {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			var stuck []string
			for i, c := range a.chunks {
				if !done[i] {
					stuck = append(stuck, c.Name)
				}
			}
			return nil, errors.Wiring(strings.Join(stuck, ","), "dependency cycle")
		}
		done[next] = true
		order = append(order, next)
		for _, d := range dependents[next] {
			inDegree[d]--
		}
	}
	return order, nil
}

func outputInfo(c Chunk, name string) PortInfo {
	for _, p := range c.Outputs {
		if p.Name == name {
			return p
		}
	}
	return PortInfo{}
}
