// Package geometry is the detector-geometry collaborator of the reduction
// pipeline.
//
// A Geometry answers per-shape queries: radial pixel distance, momentum
// transfer Q in inverse angstroms, the local Q resolution of each pixel and
// the polarization factor. Flat is a reference implementation for an
// untilted flat-panel detector described by pyFAI-style Params (lengths in
// metres).
//
// Geometry can come from two places. A Loader builds it from stored Params,
// usually read from a .poni file found with FindCalibration. A Calibrator
// derives it from a calibrant image on the fly.
package geometry
