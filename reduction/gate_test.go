package reduction

import (
	"context"
	"testing"

	"github.com/kbukum/xpdflow/binning"
	"github.com/kbukum/xpdflow/frame"
	"github.com/kbukum/xpdflow/mask"
	"github.com/kbukum/xpdflow/settings"
)

func TestGate_Decide(t *testing.T) {
	p1, p2 := &binning.Partition{}, &binning.Partition{}
	primed := func() *Gate {
		g := NewGate(settings.Default(), mask.NewEngine())
		g.cached = frame.Ones(frame.Shape{Rows: 2, Cols: 2})
		g.partition, g.generation, g.resets = p1, 1, 2
		return g
	}
	first := func(gen, resets uint64) settings.Snapshot {
		return settings.Snapshot{MaskMode: settings.ModeFirst, Generation: gen, Resets: resets}
	}

	tests := []struct {
		name      string
		gate      *Gate
		counter   int
		partition *binning.Partition
		snap      settings.Snapshot
		recompute bool
		reason    Reason
	}{
		{"none", primed(), 1, p1, settings.Snapshot{MaskMode: settings.ModeNone}, false, ReasonNone},
		{"auto", primed(), 7, p1, settings.Snapshot{MaskMode: settings.ModeAuto}, true, ReasonAuto},
		{"first frame", primed(), 1, p1, first(1, 2), true, ReasonFirstFrame},
		{"nothing cached", NewGate(settings.Default(), mask.NewEngine()), 3, p1, first(0, 0), true, ReasonNoCachedMask},
		{"cached", primed(), 3, p1, first(1, 2), false, ReasonCached},
		{"geometry changed", primed(), 3, p2, first(1, 2), true, ReasonGeometryChange},
		{"options changed", primed(), 3, p1, first(2, 2), true, ReasonOptionsChange},
		{"reset", primed(), 3, p1, first(1, 3), true, ReasonReset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recompute, reason := tt.gate.Decide(tt.counter, tt.partition, tt.snap)
			if recompute != tt.recompute || reason != tt.reason {
				t.Fatalf("want (%v, %s), got (%v, %s)", tt.recompute, tt.reason, recompute, reason)
			}
		})
	}
}

func TestGate_ClearDropsCache(t *testing.T) {
	g := NewGate(settings.Default(), mask.NewEngine())
	g.cached = frame.Ones(frame.Shape{Rows: 1, Cols: 3})
	g.partition = &binning.Partition{}

	c := g.Cached()
	c.Bits[0] = false
	if !g.cached.Bits[0] {
		t.Fatal("Cached returned the held mask instead of a copy")
	}

	g.Clear()
	if g.Cached() != nil {
		t.Fatal("cache not cleared")
	}
	if recompute, reason := g.Decide(2, nil, settings.Snapshot{MaskMode: settings.ModeFirst}); !recompute || reason != ReasonNoCachedMask {
		t.Fatalf("unexpected decision after clear: %v %s", recompute, reason)
	}
}

func TestGate_ApplyUsesSnapshotPrior(t *testing.T) {
	shape := frame.Shape{Rows: 2, Cols: 2}
	rt := settings.Default()
	if err := rt.SetMaskMode(settings.ModeFirst); err != nil {
		t.Fatalf("SetMaskMode failed: %v", err)
	}
	if err := rt.SetMaskOptions(mask.Options{Method: mask.MethodMedian}); err != nil {
		t.Fatalf("SetMaskOptions failed: %v", err)
	}
	prior := frame.Ones(shape)
	prior.Exclude(3)
	rt.SetPriorMask(prior)

	p, err := binning.NewPartition(frame.Filled(shape, 0.5), []float64{0, 1})
	if err != nil {
		t.Fatalf("NewPartition failed: %v", err)
	}
	g := NewGate(rt, mask.NewEngine())
	m, err := g.Apply(context.Background(), frame.Filled(shape, 1), p, 1)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if ex := m.Excluded(); len(ex) != 1 || ex[0] != 3 {
		t.Fatalf("expected the prior pixel excluded, got %v", ex)
	}

	snap := rt.Snapshot()
	if g.generation != snap.Generation {
		t.Fatalf("cached under generation %d, runtime is at %d", g.generation, snap.Generation)
	}
	if recompute, reason := g.Decide(2, p, snap); recompute || reason != ReasonCached {
		t.Fatalf("expected the cached mask to be reused, got (%v, %s)", recompute, reason)
	}
}

