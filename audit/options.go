package audit

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithActions restricts the extension to emit only the listed actions.
// By default all actions are enabled. Unknown actions are silently
// ignored.
//
// Example:
//
//	audit.New(recorder,
//	    audit.WithActions(
//	        audit.ActionJobFailed,
//	        audit.ActionJobRetried,
//	    ),
//	)
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, a := range actions {
			e.enabled[a] = true
		}
	}
}

// WithLogger sets a custom logger for the extension. The default
// [LogRecorder] also writes through it.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}
