// Package logging assembles structured slog loggers shared by the lifecycle
// components.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so lifecycle code can automatically tag
// log lines with profile names, operation names, and run correlation IDs.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
