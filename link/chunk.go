package link

import (
	"fmt"

	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/stream"
)

// Chunk is a named group of nodes with declared input and output ports.
type Chunk struct {
	Name    string
	Inputs  []PortInfo
	Outputs []PortInfo
	Build   func(s *Scope) error
}

// Scope is the view of the namespace a chunk gets while building. Only
// declared inputs can be read and only declared outputs can be published.
type Scope struct {
	chunk     *Chunk
	ns        *Namespace
	inputs    map[string]PortInfo
	outputs   map[string]PortInfo
	published map[string]bool
}

func newScope(c *Chunk, ns *Namespace) *Scope {
	s := &Scope{
		chunk:     c,
		ns:        ns,
		inputs:    make(map[string]PortInfo, len(c.Inputs)),
		outputs:   make(map[string]PortInfo, len(c.Outputs)),
		published: make(map[string]bool, len(c.Outputs)),
	}
	for _, p := range c.Inputs {
		s.inputs[p.Name] = p
	}
	for _, p := range c.Outputs {
		s.outputs[p.Name] = p
	}
	return s
}

// Chunk returns the name of the chunk being built.
func (s *Scope) Chunk() string { return s.chunk.Name }

// Graph returns the graph to create nodes in.
func (s *Scope) Graph() *stream.Graph { return s.ns.graph }

// Input returns the stream of a declared input port.
func Input[T any](s *Scope, port Port[T]) (*stream.Stream[T], error) {
	if _, ok := s.inputs[port.Name]; !ok {
		return nil, errors.Wiring(port.Name, fmt.Sprintf("not declared as an input of %s", s.chunk.Name))
	}
	return Lookup(s.ns, port)
}

// Provide publishes st under a declared output port.
func Provide[T any](s *Scope, port Port[T], st *stream.Stream[T]) error {
	decl, ok := s.outputs[port.Name]
	if !ok {
		return errors.Wiring(port.Name, fmt.Sprintf("not declared as an output of %s", s.chunk.Name))
	}
	if decl.Type != port.Info().Type {
		return errors.Wiring(port.Name, fmt.Sprintf("declared as %v, provided as %v", decl.Type, port.Info().Type))
	}
	if err := s.ns.put(s.chunk.Name, decl, st); err != nil {
		return err
	}
	s.published[port.Name] = true
	return nil
}

// missing returns declared outputs that Build did not publish.
func (s *Scope) missing() []string {
	var out []string
	for _, p := range s.chunk.Outputs {
		if !s.published[p.Name] {
			out = append(out, p.Name)
		}
	}
	return out
}
