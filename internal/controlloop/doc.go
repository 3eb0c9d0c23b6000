// Package controlloop runs the periodic fan control cycle.
//
// A Loop owns all runtime state for one Topology: drive power states,
// sensor failure counters, per-group controller state and the duty last
// applied to each fan. Every tick probes drives, reads the sensors of drives
// that are awake, asks control.Decide for each group's duty, writes the
// maximum duty of a fan's groups to that fan and checks its RPM. Device
// operations run on a bounded worker pool with a per-operation timeout, so a
// hung tool or sysfs read is abandoned instead of stalling the loop.
//
// Ticks start at a fixed interval and never overlap. The interval shortens
// for a while after a drive wakes and after a fan received a startup boost.
// Wake requests an immediate tick; RequestShutdown or context cancellation
// ends the loop after the current tick and applies the shutdown posture.
package controlloop
