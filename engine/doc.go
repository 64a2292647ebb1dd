// Package engine wires all Foreman subsystems together and provides
// the primary application-level API for registering and enqueuing work.
//
// The engine package exists to break a fundamental import cycle: the root
// foreman package defines Entity and Config (imported by job, queue, cron,
// etc.) and therefore cannot import those packages back. Engine sits above
// all subsystem packages and below the application layer.
//
// # Building an Engine
//
//	o, err := foreman.New(
//	    foreman.WithStore(pgStore),
//	    foreman.WithConcurrency(20),
//	    foreman.WithQueues([]string{"default", "high", "bulk"}),
//	)
//
//	eng, err := engine.Build(o,
//	    engine.WithExtension(audit.New(recorder)),
//	    engine.WithMiddleware(myMiddleware),
//	    engine.WithBackoff(backoff.NewConstant(time.Second)),
//	    engine.WithMapping(queue.Mapping{"resize-image": queue.Bulk}),
//	)
//
// # Registering Work
//
//	sendEmail := job.NewDefinition("send-email", func(ctx context.Context, p EmailPayload) error {
//	    return mailer.Send(ctx, p.To, p.Subject)
//	})
//	engine.Register(eng, sendEmail)
//
//	eng.AddCron(cron.Entry{
//	    Name:     "nightly-digest",
//	    Schedule: "0 3 * * *",
//	    JobType:  "send-email",
//	})
//
// # Enqueuing Jobs
//
//	jobID, err := engine.Enqueue(ctx, eng, sendEmail, EmailPayload{To: "user@example.com"})
//
//	// With options
//	engine.Enqueue(ctx, eng, sendEmail, input,
//	    job.WithDelay(5*time.Minute),
//	    job.WithPriority(10),
//	)
//
// # Options
//
//   - [WithExtension] — register a lifecycle extension
//   - [WithMiddleware] — add a middleware to the execution chain
//   - [WithBackoff] — set the retry backoff strategy
//   - [WithFamilies] — replace the queue family set
//   - [WithMapping] — overlay the type→family mapping
//   - [WithCronTickInterval] — tune the cron scheduler cadence
//   - [WithTracerProvider] — set the OpenTelemetry tracer provider
//   - [WithMeterProvider] — set the OpenTelemetry meter provider
package engine
