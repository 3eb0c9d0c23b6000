// Package logging builds the slog loggers used by the daemon and the CLI.
//
// It owns the console and JSON handlers, level parsing, output plumbing and
// the standard field keys. Components obtain a child logger through
// NewComponentLogger so every record carries a component name; warnings that
// need operator attention go through WarnWithContext so they always include
// an event type, a hint and the impact.
package logging
