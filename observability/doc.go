// Package observability provides the OpenTelemetry lifecycle-hook
// extension. MetricsExtension counts job enqueues, claims, completions,
// terminal failures, retries, and cron fires, attributed by queue and
// job type.
//
// For per-execution duration and tracing, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
