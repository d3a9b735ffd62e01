package workpool

import (
	"context"
	stderrors "errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/xpdflow/errors"
)

func square(_ context.Context, v int) (int, error) { return v * v, nil }

func TestRun_AllResults(t *testing.T) {
	tasks := []int{1, 2, 3, 4, 5, 6, 7}
	got, err := Run(context.Background(), 3, tasks, square)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sort.Ints(got)
	want := []int{1, 4, 9, 16, 25, 36, 49}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}

func TestRun_Empty(t *testing.T) {
	got, err := Run(context.Background(), 4, nil, square)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
}

func TestRun_BoundedConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	tasks := make([]int, 40)
	_, err := Run(context.Background(), 3, tasks, func(context.Context, int) (int, error) {
		cur := active.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return 0, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak.Load() > 3 {
		t.Fatalf("expected at most 3 concurrent tasks, saw %d", peak.Load())
	}
}

func TestRun_FirstErrorCancelsRest(t *testing.T) {
	boom := stderrors.New("boom")
	var ran atomic.Int32
	tasks := make([]int, 200)
	for i := range tasks {
		tasks[i] = i
	}
	_, err := Run(context.Background(), 1, tasks, func(_ context.Context, v int) (int, error) {
		ran.Add(1)
		if v == 0 {
			return 0, boom
		}
		return v, nil
	}, WithName("bin"))

	if !stderrors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeWorkerFailed || appErr.Details["task"] != "bin[0]" {
		t.Fatalf("expected WORKER_FAILED for bin[0], got %v", err)
	}
	if ran.Load() >= int32(len(tasks)) {
		t.Fatal("remaining tasks should have been cancelled")
	}
}

func TestRun_PanicBecomesWorkerFailed(t *testing.T) {
	_, err := Run(context.Background(), 2, []int{1, 2}, func(context.Context, int) (int, error) {
		panic("index out of range")
	})
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeWorkerFailed {
		t.Fatalf("expected WORKER_FAILED, got %v", err)
	}
}

func TestRun_Progress(t *testing.T) {
	var calls []int
	total := 0
	_, err := Run(context.Background(), 4, make([]int, 10), square, WithProgress(func(done, n int) {
		calls = append(calls, done)
		total = n
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(calls) != 10 || calls[9] != 10 || total != 10 {
		t.Fatalf("unexpected progress calls %v total %d", calls, total)
	}
}

func TestRun_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, 2, make([]int, 50), square)
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeCanceled {
		t.Fatalf("expected CANCELED, got %v", err)
	}
}
