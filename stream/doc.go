// Package stream is a push-based reactive graph.
//
// A Graph owns nodes. Source nodes are created with New; every other node is
// created by an operator (Map, Filter, Union, CombineLatest, ZipLatest,
// Accumulate, ...) that subscribes it to its upstreams. Emit delivers a value
// to a node's subscribers in subscription order and returns only after the
// whole downstream subtree has run.
//
// Delivery is depth first: the first subscriber's subtree completes before
// the second subscriber sees the value. The scheduler keeps an explicit LIFO
// work stack on the emitting goroutine instead of recursing, and checks the
// context between steps, so a long cascade can be cancelled.
//
// A failing callback aborts the cascade: pending deliveries are dropped and
// Emit returns the error wrapped as a NODE_FAILED AppError naming the node.
// A Graph is not safe for concurrent Emit calls; callbacks may Emit
// re-entrantly.
//
//	g := stream.NewGraph()
//	raw := stream.New[*frame.Frame](g, "raw")
//	dark := stream.New[*frame.Frame](g, "dark")
//	corrected := stream.Map(stream.Combine(raw, dark, stream.OnA),
//		func(_ context.Context, p stream.Pair[*frame.Frame, *frame.Frame]) (*frame.Frame, error) {
//			return frame.Sub(p.A, p.B)
//		}).Named("dark_corrected")
package stream
