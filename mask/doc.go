// Package mask builds pixel masks for detector frames.
//
// A mask is the intersection of independent partial masks: an optional prior
// mask, an edge margin, lower and upper value thresholds, and a sigma-clipping
// outlier mask computed ring by ring over a binning.Partition. Outlier
// statistics only see pixels that survived the earlier stages.
//
// Two clipping methods exist. Median makes a single pass per ring and flags
// pixels with |v - median| / std > alpha. Mean removes the single worst pixel
// of a ring and recomputes until every remaining pixel is within alpha, the
// spread is zero, or one pixel is left. Rings are independent, so Engine runs
// one workpool task per non-empty ring.
package mask
