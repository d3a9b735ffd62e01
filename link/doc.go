// Package link assembles a stream graph from chunks.
//
// A Chunk declares the typed ports it consumes and the ports it produces,
// and a Build function that wires its nodes. The Assembler checks every
// declaration before building anything: each input must be produced by
// exactly one chunk with the same element type, and chunk dependencies must
// be acyclic. Violations are WIRING errors at construction time.
//
// Chunks are built in dependency order (stable in registration order) and
// publish their outputs into a Namespace, where later chunks and callers
// look streams up by port:
//
//	ns, err := link.NewAssembler().Add(sources, correction, integration).Assemble(ctx, g)
//	mean, err := link.Lookup(ns, ports.Mean)
//
// Definitions name a set of chunks in YAML, may include other definitions,
// and are resolved against a Registry of chunks.
package link
