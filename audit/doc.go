// Package audit is a Foreman extension that turns lifecycle events into
// a structured audit trail.
//
// Every job and cron lifecycle hook emits an [Event] through the
// [Recorder] interface. The extension assigns severities (info for
// normal operations, warning for retries, error for terminal failures)
// and rich metadata (job type, queue, elapsed time, errors). Recording
// failures are logged and swallowed so a slow or broken audit backend
// never blocks the job pipeline.
//
// # Default recorder
//
// With a nil Recorder the extension writes events to its slog.Logger
// through [LogRecorder], mapping event severity to log level:
//
//	eng.Use(audit.New(nil, audit.WithLogger(logger)))
//
// # Custom backends
//
// Bridge to any audit store with [RecorderFunc]:
//
//	audit.New(audit.RecorderFunc(func(ctx context.Context, evt *audit.Event) error {
//	    return trail.Append(ctx, evt.Action, evt.ResourceID, evt.Metadata)
//	}))
//
// # Selective filtering
//
//	audit.New(recorder,
//	    audit.WithActions(
//	        audit.ActionJobFailed,
//	        audit.ActionJobRetried,
//	    ),
//	)
package audit
