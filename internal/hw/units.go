package hw

import (
	"fmt"
	"math"
	"strconv"
)

// Temp is a temperature in tenths of a degree Celsius.
type Temp int32

// Celsius converts a floating point Celsius value, rounding to the nearest tenth.
func Celsius(c float64) Temp {
	return Temp(math.Round(c * 10))
}

// Millidegrees converts a hwmon millidegree reading.
func Millidegrees(m int64) Temp {
	if m >= 0 {
		return Temp((m + 50) / 100)
	}
	return Temp((m - 50) / 100)
}

// Float returns the temperature in degrees Celsius.
func (t Temp) Float() float64 {
	return float64(t) / 10
}

func (t Temp) String() string {
	return strconv.FormatFloat(t.Float(), 'f', 1, 64) + "°C"
}

// Duty is a fan duty cycle in percent, 0 through 100.
type Duty int

const (
	MinDuty Duty = 0
	MaxDuty Duty = 100
)

// Clamp bounds d to [lo, hi].
func (d Duty) Clamp(lo, hi Duty) Duty {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// Valid reports whether d is within 0..100.
func (d Duty) Valid() bool {
	return d >= MinDuty && d <= MaxDuty
}

func (d Duty) String() string {
	return fmt.Sprintf("%d%%", int(d))
}
