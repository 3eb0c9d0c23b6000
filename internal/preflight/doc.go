// Package preflight provides readiness checks for the devices, tools and
// paths the fan controller depends on.
//
// These checks run in two contexts:
//   - The daemon logs RunAll results at startup so a missing tool or an
//     unwritable PWM file shows up before the first tick.
//   - The CLI "check" and "status" commands render the same results for the
//     operator.
//
// Checks never write to hardware and never wake a sleeping drive.
package preflight
