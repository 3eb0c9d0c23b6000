// Package control turns temperatures into fan duty cycles.
//
// Curve maps a temperature to a duty through ordered control points. Decide
// applies the hysteresis and safety rules for one fan group per tick; it is a
// pure function of its inputs so the control loop can own all mutable state.
package control
