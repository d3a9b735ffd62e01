// Package frame holds the two array types that flow through the reduction
// graph: Frame, a row-major 2-D detector image of float64 pixels, and Mask,
// a boolean array aligned 1:1 with a frame where false excludes a pixel from
// downstream statistics.
//
// A scalar frame (Scalar) has the zero Shape and broadcasts against any
// frame in arithmetic. Pipelines use it to seed dark and background inputs
// before the first detector frame arrives.
package frame
