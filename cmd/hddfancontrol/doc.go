// Command hddfancontrol runs the fan control daemon and the operator
// commands around it: configuration checks, drive and history status, and
// PWM threshold discovery.
package main
