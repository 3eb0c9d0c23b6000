// Package hwmon talks to the kernel hwmon sysfs interface: temperature
// inputs, PWM outputs and fan tachometers.
//
// Fan maps duty percentages onto raw 0-255 PWM values using the fan's
// measured start and stop thresholds, switches the channel to manual mode,
// spins stopped fans up with their start value and can put back the settings
// it found at open time. FindThresholds measures those thresholds.
package hwmon
