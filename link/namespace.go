package link

import (
	"fmt"
	"reflect"

	"github.com/kbukum/xpdflow/errors"
	"github.com/kbukum/xpdflow/stream"
)

type entry struct {
	stream stream.Upstream
	typ    reflect.Type
	chunk  string
}

// Namespace maps port names to the streams that produce them.
type Namespace struct {
	graph   *stream.Graph
	entries map[string]entry
	order   []string
}

func newNamespace(g *stream.Graph) *Namespace {
	return &Namespace{graph: g, entries: make(map[string]entry)}
}

// Graph returns the graph the namespace's streams belong to.
func (ns *Namespace) Graph() *stream.Graph { return ns.graph }

// Names returns port names in publication order.
func (ns *Namespace) Names() []string {
	return append([]string(nil), ns.order...)
}

// Has reports whether name was published.
func (ns *Namespace) Has(name string) bool {
	_, ok := ns.entries[name]
	return ok
}

// Producer returns the chunk that published name.
func (ns *Namespace) Producer(name string) (string, bool) {
	e, ok := ns.entries[name]
	return e.chunk, ok
}

// Get returns the untyped stream published under name.
func (ns *Namespace) Get(name string) (stream.Upstream, bool) {
	e, ok := ns.entries[name]
	return e.stream, ok
}

func (ns *Namespace) put(chunk string, info PortInfo, s stream.Upstream) error {
	if prev, ok := ns.entries[info.Name]; ok {
		return errors.Wiring(info.Name, fmt.Sprintf("published by both %s and %s", prev.chunk, chunk))
	}
	ns.entries[info.Name] = entry{stream: s, typ: info.Type, chunk: chunk}
	ns.order = append(ns.order, info.Name)
	return nil
}

// Lookup returns the stream published under port.
func Lookup[T any](ns *Namespace, port Port[T]) (*stream.Stream[T], error) {
	e, ok := ns.entries[port.Name]
	if !ok {
		return nil, errors.Wiring(port.Name, "port not found")
	}
	s, ok := e.stream.(*stream.Stream[T])
	if !ok {
		return nil, errors.Wiring(port.Name, fmt.Sprintf("is %v, not %v", e.typ, port.Info().Type))
	}
	return s, nil
}

// MustLookup is Lookup for ports that are known to exist, such as those of
// a successfully assembled pipeline. It panics on error.
func MustLookup[T any](ns *Namespace, port Port[T]) *stream.Stream[T] {
	s, err := Lookup(ns, port)
	if err != nil {
		panic(err)
	}
	return s
}
