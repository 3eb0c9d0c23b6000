// Package logs reads the daemon's log files for the CLI.
//
// The daemon writes one file per run and points hddfancontrol.log at the
// current one. Follow re-resolves that pointer on every poll, so a follower
// moves on to the next run's file when the daemon restarts.
package logs
