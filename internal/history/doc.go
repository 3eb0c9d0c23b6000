// Package history journals control loop events to SQLite.
//
// The journal is observability only: the loop never reads it back. Routine
// tick summaries go to the samples table; everything else becomes a row in
// events. The CLI status command reads the latest run from here.
package history
