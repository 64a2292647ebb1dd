// Package cron fires recurring jobs from code-registered schedules.
//
// Entries live in code, not in a table: every process registers the same
// set at startup and runs its own [Scheduler]. There is no leader
// election. For each due slot, every process computes the same fire time
// and enqueues the same job with the dedupe key "cron:<name>:<nanos>";
// the jobs table's uniqueness arbitration lets exactly one insert win
// and the losers skip silently. Coordination never leaves the jobs
// table.
//
// # Schedules
//
// [ParseSchedule] accepts standard 5-field cron expressions
// ("0 9 * * 1-5"), descriptors ("@hourly"), and intervals
// ("@every 30s"). Interval schedules fire on a fixed grid of multiples
// of the interval rather than counting from process start, so all
// processes agree on the slot times.
//
// # Registering
//
//	sched := cron.NewScheduler(eng.EnqueueRaw, logger)
//	err := sched.Add(cron.Entry{
//	    Name:     "daily-report",
//	    Schedule: "0 9 * * *",
//	    JobType:  "generate-report",
//	    Payload:  []byte(`{"format":"pdf"}`),
//	})
//
// or go through engine.RegisterCron, which also validates the job type
// against the queue classifier.
//
// # Missed slots
//
// A slot that passes while every process is down is not back-filled:
// on restart the first fire is the next slot after registration. A
// process that sleeps through several slots fires the oldest due one
// and skips the rest.
package cron
