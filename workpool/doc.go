// Package workpool runs a batch of independent tasks on a fixed number of
// goroutines and gathers their results as they complete.
//
// Run blocks until every task finished or the first task failed. Results
// come back in completion order, not submission order. On the first failure
// the remaining queued tasks are cancelled, tasks already running are
// drained, and the failure is returned as a WORKER_FAILED AppError:
//
//	flagged, err := workpool.Run(ctx, 8, bins, clipBin,
//	    workpool.WithName("outlier"),
//	    workpool.WithProgress(func(done, total int) { ... }),
//	)
package workpool
