package audit

import (
	"context"
	"log/slog"
)

// Severity levels assigned to audit events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Outcome values assigned to audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is a structured audit record of one lifecycle transition.
type Event struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// Recorder is the interface audit backends implement. The extension
// defines it locally so callers can bridge to any trail store without
// this package importing one.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *Event) error
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// LogRecorder writes audit events to a slog.Logger, mapping event
// severity to log level. It is the Recorder the extension falls back to
// when constructed with nil.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a LogRecorder. A nil logger means slog.Default.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

// Record implements Recorder. The event action becomes the log message
// and the remaining fields become attributes.
func (r *LogRecorder) Record(ctx context.Context, event *Event) error {
	args := make([]any, 0, 2*(len(event.Metadata)+4))
	args = append(args,
		"resource", event.Resource,
		"resource_id", event.ResourceID,
		"outcome", event.Outcome,
	)
	if event.Reason != "" {
		args = append(args, "reason", event.Reason)
	}
	for k, v := range event.Metadata {
		args = append(args, k, v)
	}
	r.logger.Log(ctx, severityLevel(event.Severity), event.Action, args...)
	return nil
}

func severityLevel(severity string) slog.Level {
	switch severity {
	case SeverityError:
		return slog.LevelError
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
