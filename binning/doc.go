// Package binning partitions detector pixels into radial rings and computes
// per-ring statistics.
//
// Building a Partition is the expensive step: it evaluates the full-frame
// geometry maps, derives bin edges sized to the detector's native Q
// resolution and sorts pixel indices so each ring is contiguous. Binding a
// Partition to a mask is cheap and yields a Binner:
//
//	p, _ := binning.FromGeometry(geo, shape)
//	b, _ := p.Bind(mask)
//	mean, _ := b.Evaluate(img, binning.Mean)
//
// Cache keeps partitions keyed by a hash of the geometry content and the
// image shape so a recalibration with an unchanged shape still rebuilds.
package binning
