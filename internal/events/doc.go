// Package events carries control loop observations to the outside world.
//
// The loop emits Events to a Sink and never formats log output itself.
// LogSink renders events as structured slog records; the history store
// persists them; Multi fans one stream out to several sinks.
package events
