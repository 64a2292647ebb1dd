// Package dlq provides intervention tooling for jobs that failed
// terminally: exhausted attempt budgets, permanent handler errors, or
// unroutable types.
//
// There is no separate dead-letter table. Failed jobs stay in the jobs
// table under StatusFailed with their payload, attempt counters, and
// last error intact, and [Service] operates on them in place:
//
//	svc := dlq.NewService(store, logger)
//
//	// Inspect.
//	failed, _ := svc.List(ctx, job.ListOpts{Queue: "payments", Limit: 50})
//
//	// Put one back on the queue as a fresh delivery.
//	fresh, _ := svc.Replay(ctx, failed[0].ID)
//
//	// Or everything in a queue, and clean up old corpses.
//	svc.ReplayAll(ctx, "payments")
//	svc.Purge(ctx, time.Now().AddDate(0, 0, -30))
//
// Replay does not resurrect the failed row: it enqueues a brand-new
// pending job with the same type, queue, and payload, a fresh ID, and a
// zeroed attempt counter, then deletes the original. A replayed job is a
// new delivery with the full retry budget, not a continuation of the old
// one.
package dlq
