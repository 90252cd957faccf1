// Package logging provides the component-scoped structured loggers used
// throughout the scheduler, following the pack's log/slog convention
// (e.g. wilke-GoWe's internal/logging) over ad hoc fmt.Println output.
package logging

import "log/slog"

// New returns slog.Default() scoped to component via a "component" field,
// the idiom used consistently across scheduler subsystems.
func New(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// From scopes an existing base logger (or slog.Default() if nil) to
// component, so an embedder's own *slog.Logger can be threaded through.
func From(base *slog.Logger, component string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("component", component)
}
