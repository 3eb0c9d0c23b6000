package control

import (
	"errors"
	"fmt"
	"strings"

	"hddfancontrol/internal/hw"
)

// Interpolation selects how duties between control points are derived.
type Interpolation int

const (
	Linear Interpolation = iota
	Step
)

func (i Interpolation) String() string {
	if i == Step {
		return "step"
	}
	return "linear"
}

// ParseInterpolation maps a configuration value onto an Interpolation.
func ParseInterpolation(value string) (Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "linear":
		return Linear, nil
	case "step":
		return Step, nil
	default:
		return Linear, fmt.Errorf("unknown interpolation %q", value)
	}
}

// Point is one (temperature, duty) control point.
type Point struct {
	Temp hw.Temp
	Duty hw.Duty
}

// Curve is a validated threshold curve.
type Curve struct {
	points []Point
	mode   Interpolation
	min    hw.Duty
	max    hw.Duty
	margin hw.Temp
}

var (
	errNoPoints      = errors.New("curve needs at least one point")
	errTempOrder     = errors.New("curve temperatures must be strictly increasing")
	errDutyOrder     = errors.New("curve duties must be non-decreasing")
	errDutyRange     = errors.New("curve duties must be within 0-100")
	errBounds        = errors.New("min duty must not exceed max duty")
	errNegativeSlack = errors.New("hysteresis margin must not be negative")
)

// CurveSpec describes a curve before validation.
type CurveSpec struct {
	Points        []Point
	Interpolation Interpolation
	MinDuty       hw.Duty
	MaxDuty       hw.Duty
	// Hysteresis is a temperature margin applied when duty would decrease.
	Hysteresis hw.Temp
}

// NewCurve validates spec and returns the curve.
func NewCurve(spec CurveSpec) (*Curve, error) {
	if len(spec.Points) == 0 {
		return nil, errNoPoints
	}
	if !spec.MinDuty.Valid() || !spec.MaxDuty.Valid() {
		return nil, errDutyRange
	}
	if spec.MinDuty > spec.MaxDuty {
		return nil, errBounds
	}
	if spec.Hysteresis < 0 {
		return nil, errNegativeSlack
	}
	for i, p := range spec.Points {
		if !p.Duty.Valid() {
			return nil, fmt.Errorf("point %d: %w", i, errDutyRange)
		}
		if i == 0 {
			continue
		}
		prev := spec.Points[i-1]
		if p.Temp <= prev.Temp {
			return nil, fmt.Errorf("point %d (%s after %s): %w", i, p.Temp, prev.Temp, errTempOrder)
		}
		if p.Duty < prev.Duty {
			return nil, fmt.Errorf("point %d (%s after %s): %w", i, p.Duty, prev.Duty, errDutyOrder)
		}
	}
	points := make([]Point, len(spec.Points))
	copy(points, spec.Points)
	return &Curve{
		points: points,
		mode:   spec.Interpolation,
		min:    spec.MinDuty,
		max:    spec.MaxDuty,
		margin: spec.Hysteresis,
	}, nil
}

// Points returns a copy of the control points.
func (c *Curve) Points() []Point {
	out := make([]Point, len(c.points))
	copy(out, c.points)
	return out
}

// MinDuty returns the lower clamp.
func (c *Curve) MinDuty() hw.Duty { return c.min }

// MaxDuty returns the upper clamp, which is also the safety duty.
func (c *Curve) MaxDuty() hw.Duty { return c.max }

// Hysteresis returns the temperature margin used for decreases.
func (c *Curve) Hysteresis() hw.Temp { return c.margin }

// Duty evaluates the curve at t. The result is always within [MinDuty, MaxDuty]
// and never decreases as t increases.
func (c *Curve) Duty(t hw.Temp) hw.Duty {
	return c.raw(t).Clamp(c.min, c.max)
}

func (c *Curve) raw(t hw.Temp) hw.Duty {
	first := c.points[0]
	if t <= first.Temp {
		return first.Duty
	}
	last := c.points[len(c.points)-1]
	if t >= last.Temp {
		return last.Duty
	}
	for i := 1; i < len(c.points); i++ {
		hi := c.points[i]
		if t >= hi.Temp {
			continue
		}
		lo := c.points[i-1]
		if c.mode == Step {
			return lo.Duty
		}
		span := int64(hi.Temp - lo.Temp)
		rise := int64(hi.Duty - lo.Duty)
		offset := int64(t - lo.Temp)
		// round half up; all terms are non-negative
		return lo.Duty + hw.Duty((2*rise*offset+span)/(2*span))
	}
	return last.Duty
}
