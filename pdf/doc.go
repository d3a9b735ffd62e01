// Package pdf is the structure-function collaborator: it turns an
// integrated profile I(Q) into S(Q), F(Q) or the pair distribution G(r).
//
// Transformer is the service contract. Noop stands in when no transform
// backend is installed. Simple is a coarse reference transform without
// composition-dependent corrections, useful for commissioning and tests.
// Middleware adds logging, tracing and metrics around any Transformer:
//
//	t := pdf.Chain(
//	    pdf.WithLogging(log),
//	    pdf.WithTracing("xpdflow"),
//	    pdf.WithMetrics(metrics),
//	)(pdf.NewSimple())
package pdf
