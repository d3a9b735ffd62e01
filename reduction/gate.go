package reduction

import (
	"context"
	"sync"

	"github.com/kbukum/xpdflow/binning"
	"github.com/kbukum/xpdflow/frame"
	"github.com/kbukum/xpdflow/logger"
	"github.com/kbukum/xpdflow/mask"
	"github.com/kbukum/xpdflow/settings"
)

// Reason explains why the gate recomputed or reused a mask.
type Reason string

const (
	ReasonAuto           Reason = "auto"
	ReasonNone           Reason = "none"
	ReasonFirstFrame     Reason = "first_frame"
	ReasonNoCachedMask   Reason = "no_cached_mask"
	ReasonGeometryChange Reason = "geometry_changed"
	ReasonOptionsChange  Reason = "options_changed"
	ReasonReset          Reason = "reset"
	ReasonCached         Reason = "cached"
)

// Gate decides per frame how the mask is produced, from the mode read out
// of the Runtime at dispatch time:
//
//	auto   compute a fresh mask
//	first  compute on counter 1 and reuse the result for the rest of the series
//	none   keep every pixel
//
// In first mode the cached mask is also recomputed when none is cached,
// when the partition changed, when the mask options changed, or after
// Runtime.ResetMask.
type Gate struct {
	rt     *settings.Runtime
	engine *mask.Engine
	log    *logger.Logger

	mu         sync.Mutex
	cached     *frame.Mask
	partition  *binning.Partition
	generation uint64
	resets     uint64
}

// NewGate creates a gate reading rt and computing masks with engine.
func NewGate(rt *settings.Runtime, engine *mask.Engine) *Gate {
	return &Gate{rt: rt, engine: engine, log: logger.Get("gate")}
}

// Decide reports whether the frame with counter should get a freshly
// computed mask, and why. It does not change the gate.
func (g *Gate) Decide(counter int, p *binning.Partition, snap settings.Snapshot) (bool, Reason) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decide(counter, p, snap)
}

func (g *Gate) decide(counter int, p *binning.Partition, snap settings.Snapshot) (bool, Reason) {
	switch snap.MaskMode {
	case settings.ModeNone:
		return false, ReasonNone
	case settings.ModeFirst:
		switch {
		case counter == 1:
			return true, ReasonFirstFrame
		case g.cached == nil:
			return true, ReasonNoCachedMask
		case g.partition != p:
			return true, ReasonGeometryChange
		case g.generation != snap.Generation:
			return true, ReasonOptionsChange
		case g.resets != snap.Resets:
			return true, ReasonReset
		}
		return false, ReasonCached
	}
	return true, ReasonAuto
}

// Apply produces the mask for img.
func (g *Gate) Apply(ctx context.Context, img *frame.Frame, p *binning.Partition, counter int) (*frame.Mask, error) {
	snap := g.rt.Snapshot()

	g.mu.Lock()
	defer g.mu.Unlock()

	recompute, reason := g.decide(counter, p, snap)
	log := g.log.WithContext(ctx)
	fields := logger.Fields(logger.FieldMaskMode, string(snap.MaskMode), logger.FieldFrame, counter, "reason", string(reason))

	if !recompute {
		if reason == ReasonNone {
			return frame.Ones(img.Shape), nil
		}
		log.Debug("reusing cached mask", fields)
		return g.cached.Clone(), nil
	}
	if reason == ReasonNoCachedMask {
		log.Warn("first-mode frame without a cached mask", fields)
	}

	m, err := g.engine.Mask(ctx, img, p, snap.Mask, snap.Prior)
	if err != nil {
		return nil, err
	}
	if snap.MaskMode == settings.ModeFirst {
		g.cached = m.Clone()
		g.partition = p
		g.generation = snap.Generation
		g.resets = snap.Resets
		log.Debug("mask cached", fields)
	}
	return m, nil
}

// Cached returns a copy of the mask held for first mode, or nil.
func (g *Gate) Cached() *frame.Mask {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cached == nil {
		return nil
	}
	return g.cached.Clone()
}

// Clear drops the cached mask.
func (g *Gate) Clear() {
	g.mu.Lock()
	g.cached, g.partition = nil, nil
	g.mu.Unlock()
}
