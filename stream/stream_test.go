package stream

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/kbukum/xpdflow/errors"
)

func identity[T any](_ context.Context, v T) (T, error) { return v, nil }

func TestEmit_DepthFirstSubscriptionOrder(t *testing.T) {
	g := NewGraph()
	src := New[int](g, "src")
	var order []string
	record := func(name string) func(context.Context, int) (int, error) {
		return func(_ context.Context, v int) (int, error) {
			order = append(order, name)
			return v, nil
		}
	}

	b := Map(src, record("b"))
	Map(b, record("b.child"))
	Map(src, record("c"))

	if err := src.Emit(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"b", "b.child", "c"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("want %v, got %v", want, order)
	}
}

func TestCombineLatest_SuppressedUntilPassivesFire(t *testing.T) {
	for _, m := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("passives=%d", m), func(t *testing.T) {
			ctx := context.Background()
			g := NewGraph()
			trig := New[int](g, "trigger")
			passives := make([]*Stream[int], m)
			ups := make([]Upstream, m)
			for i := range passives {
				passives[i] = New[int](g, fmt.Sprintf("p%d", i))
				ups[i] = passives[i]
			}
			out := Collect(CombineLatest([]Upstream{trig}, ups...))

			for i := 0; i < m; i++ {
				_ = trig.Emit(ctx, -1)
				if out.Len() != 0 {
					t.Fatalf("emitted before passive %d fired", i)
				}
				_ = passives[i].Emit(ctx, 100+i)
			}
			if out.Len() != 0 {
				t.Fatalf("passive emissions must not trigger output, got %d", out.Len())
			}

			for k := 1; k <= 3; k++ {
				_ = trig.Emit(ctx, k)
				if out.Len() != k {
					t.Fatalf("trigger %d: expected %d outputs, got %d", k, k, out.Len())
				}
			}
			if m > 0 {
				_ = passives[0].Emit(ctx, 999)
				_ = trig.Emit(ctx, 4)
			} else {
				_ = trig.Emit(ctx, 4)
			}

			last, _ := out.Last()
			if At[int](last, 0) != 4 {
				t.Fatalf("expected trigger value 4 first, got %v", last)
			}
			if m > 0 && At[int](last, 1) != 999 {
				t.Fatalf("expected latest passive 999, got %v", last)
			}
			for i := 2; i <= m; i++ {
				if At[int](last, i) != 100+i-1 {
					t.Fatalf("passive %d: expected %d, got %v", i-1, 100+i-1, last[i])
				}
			}
		})
	}
}

func TestCombine_TypedTriggers(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()
	a := New[string](g, "a")
	b := New[int](g, "b")
	onA := Collect(Combine(a, b, OnA))
	onAny := Collect(Combine(a, b, OnAny))

	_ = a.Emit(ctx, "x")
	_ = b.Emit(ctx, 1)
	_ = b.Emit(ctx, 2)
	_ = a.Emit(ctx, "y")

	if got := onA.Values(); len(got) != 1 || got[0] != (Pair[string, int]{"y", 2}) {
		t.Fatalf("unexpected OnA output %v", got)
	}
	if got := onAny.Len(); got != 3 {
		t.Fatalf("expected 3 OnAny outputs, got %d", got)
	}
}

func TestCombine3And4(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()
	a, b, c, d := New[int](g, "a"), New[int](g, "b"), New[int](g, "c"), New[int](g, "d")
	three := Collect(Combine3(a, b, c, OnA))
	four := Collect(Combine4(a, b, c, d, OnA|OnD))

	_ = b.Emit(ctx, 2)
	_ = c.Emit(ctx, 3)
	_ = d.Emit(ctx, 4)
	_ = a.Emit(ctx, 1)
	_ = d.Emit(ctx, 5)

	if got := three.Values(); len(got) != 1 || got[0] != (Triple[int, int, int]{1, 2, 3}) {
		t.Fatalf("unexpected triple output %v", got)
	}
	if got := four.Values(); len(got) != 2 || got[1] != (Quad[int, int, int, int]{1, 2, 3, 5}) {
		t.Fatalf("unexpected quad output %v", got)
	}
}

func TestFilter_ReadsLiveState(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()
	src := New[int](g, "src")
	enabled := false
	out := Collect(Filter(src, func(int) bool { return enabled }))

	_ = src.Emit(ctx, 1)
	enabled = true
	_ = src.Emit(ctx, 2)

	if got := out.Values(); !reflect.DeepEqual(got, []int{2}) {
		t.Fatalf("expected [2], got %v", got)
	}
}

func TestUnion(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()
	a, b := New[int](g, "a"), New[int](g, "b")
	out := Collect(Union(a, b))
	_ = a.Emit(ctx, 1)
	_ = b.Emit(ctx, 2)
	_ = a.Emit(ctx, 3)
	if got := out.Values(); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Fatalf("unexpected union output %v", got)
	}
}

func TestZipLatest_BuffersPrimary(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()
	primary := New[int](g, "primary")
	other := New[string](g, "other")
	out := Collect(ZipLatest(primary, other))

	_ = primary.Emit(ctx, 1)
	_ = primary.Emit(ctx, 2)
	if out.Len() != 0 {
		t.Fatalf("expected buffering, got %v", out.Values())
	}
	_ = other.Emit(ctx, "a")
	_ = other.Emit(ctx, "b")
	_ = primary.Emit(ctx, 3)

	want := []Pair[int, string]{{1, "a"}, {2, "a"}, {3, "b"}}
	if got := out.Values(); !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestZipLatestOr_UsesFallback(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()
	primary := New[int](g, "primary")
	counter := New[int](g, "counter")
	out := Collect(ZipLatestOr(primary, counter, 0))

	_ = primary.Emit(ctx, 10)
	_ = counter.Emit(ctx, 1)
	_ = primary.Emit(ctx, 11)

	want := []Pair[int, int]{{10, 0}, {11, 1}}
	if got := out.Values(); !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestZip(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()
	a, b := New[int](g, "a"), New[int](g, "b")
	out := Collect(Zip(a, b))
	_ = a.Emit(ctx, 1)
	_ = a.Emit(ctx, 2)
	_ = b.Emit(ctx, 10)
	_ = b.Emit(ctx, 20)
	_ = b.Emit(ctx, 30)
	want := []Pair[int, int]{{1, 10}, {2, 20}}
	if got := out.Values(); !reflect.DeepEqual(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestAccumulate_WithReset(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()
	src := New[int](g, "src")
	reset := New[struct{}](g, "reset")
	out := Collect(Accumulate(src, 0, func(acc, v int) (int, error) { return acc + v, nil }, reset))

	_ = src.Emit(ctx, 1)
	_ = src.Emit(ctx, 2)
	_ = reset.Emit(ctx, struct{}{})
	_ = src.Emit(ctx, 5)

	if got := out.Values(); !reflect.DeepEqual(got, []int{1, 3, 5}) {
		t.Fatalf("unexpected sums %v", got)
	}
}

func TestUnique(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()
	src := New[int](g, "src")
	out := Collect(Unique(src, func(a, b int) bool { return a == b }))
	for _, v := range []int{1, 1, 2, 2, 1} {
		_ = src.Emit(ctx, v)
	}
	if got := out.Values(); !reflect.DeepEqual(got, []int{1, 2, 1}) {
		t.Fatalf("unexpected unique output %v", got)
	}
}

func TestEmit_ErrorAbortsCascade(t *testing.T) {
	g := NewGraph()
	src := New[int](g, "src")
	boom := stderrors.New("boom")
	Map(src, func(context.Context, int) (int, error) { return 0, boom }).Named("failing")
	after := Collect(Map(src, identity[int]))

	err := src.Emit(context.Background(), 1)
	if !stderrors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeNodeFailed || appErr.Details["node"] != "failing" {
		t.Fatalf("expected NODE_FAILED for node failing, got %v", err)
	}
	if after.Len() != 0 {
		t.Fatal("pending deliveries must be dropped after a failure")
	}
}

func TestEmit_PanicBecomesNodeError(t *testing.T) {
	g := NewGraph()
	src := New[int](g, "src")
	Map(src, func(context.Context, int) (int, error) { panic("bad index") }).Named("panicky")

	err := src.Emit(context.Background(), 1)
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeNodeFailed {
		t.Fatalf("expected NODE_FAILED, got %v", err)
	}
}

func TestEmit_Cancelled(t *testing.T) {
	g := NewGraph()
	src := New[int](g, "src")
	out := Collect(Map(src, identity[int]))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := src.Emit(ctx, 1)
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeCanceled {
		t.Fatalf("expected CANCELED, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatal("nothing should run after cancellation")
	}
}

func TestEmit_DeepChainDoesNotRecurse(t *testing.T) {
	g := NewGraph()
	src := New[int](g, "src")
	cur := src
	for i := 0; i < 20000; i++ {
		cur = Map(cur, func(_ context.Context, v int) (int, error) { return v + 1, nil })
	}
	out := Collect(cur)
	if err := src.Emit(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := out.Last(); v != 20000 {
		t.Fatalf("expected 20000, got %d", v)
	}
}

func TestEmit_Reentrant(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()
	src := New[int](g, "src")
	echo := New[int](g, "echo")
	echoed := Collect(echo)
	Sink(src, func(ctx context.Context, v int) error { return echo.Emit(ctx, v*10) })

	if err := src.Emit(ctx, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := echoed.Values(); !reflect.DeepEqual(got, []int{20}) {
		t.Fatalf("unexpected echo %v", got)
	}
}

func TestDestroy_DetachesReachableEdges(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()
	src := New[int](g, "src")
	mid := Map(src, identity[int])
	kept := Collect(Map(src, identity[int]))
	dropped := Collect(Map(mid, identity[int]))

	Destroy(mid)
	_ = src.Emit(ctx, 1)

	if dropped.Len() != 0 {
		t.Fatal("destroyed branch must not receive values")
	}
	if kept.Len() != 1 {
		t.Fatal("sibling branch must keep receiving values")
	}
	if !mid.Destroyed() || mid.Subscribers() != 0 {
		t.Fatal("destroyed node must have no subscribers")
	}
	if src.Subscribers() != 1 {
		t.Fatalf("expected one remaining subscriber on src, got %d", src.Subscribers())
	}
}

func TestGraphDestroy(t *testing.T) {
	g := NewGraph(WithName("test"))
	src := New[int](g, "src")
	out := Collect(Map(src, identity[int]))
	if g.Len() != 3 {
		t.Fatalf("expected 3 live nodes, got %d", g.Len())
	}
	g.Destroy()
	_ = src.Emit(context.Background(), 1)
	if out.Len() != 0 || g.Len() != 0 {
		t.Fatal("graph destroy must detach every node")
	}
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()
	a := New[int](g, "a")
	b := New[int](g, "b")
	out := Collect(b)

	if err := Connect(a, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = a.Emit(ctx, 7)
	if v, _ := out.Last(); v != 7 {
		t.Fatalf("expected forwarded 7, got %d", v)
	}

	if err := Connect(a, Map(a, identity[int])); err == nil {
		t.Fatal("expected error connecting into a derived stream")
	}
	if err := Connect(a, New[int](NewGraph(), "other")); err == nil {
		t.Fatal("expected error connecting across graphs")
	}
}

func TestLast(t *testing.T) {
	g := NewGraph()
	src := New[int](g, "src")
	doubled := Map(src, func(_ context.Context, v int) (int, error) { return v * 2, nil })
	if _, ok := doubled.Last(); ok {
		t.Fatal("expected no value before emit")
	}
	_ = src.Emit(context.Background(), 4)
	if v, ok := doubled.Last(); !ok || v != 8 {
		t.Fatalf("expected 8, got %v", v)
	}
}
