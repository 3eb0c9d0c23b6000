// Package daemon runs the control loop as a single-instance service.
//
// Daemon takes an exclusive flock on the state directory lock file so two
// processes never drive the same PWM channels, then runs the control loop and
// the udev hotplug monitor as one oklog/run group: when either stops, the
// other is interrupted. The hotplug monitor wakes the loop whenever a
// configured drive is added, removed or changes, so a replaced or re-probed
// disk is picked up without waiting for the next poll.
package daemon
