package robot

import (
	"errors"
	"fmt"
)

// ErrHardwareUnavailable is returned when an operation needs a servo,
// sensor, camera or motor driver that is not present. It is fatal to that
// single operation only.
var ErrHardwareUnavailable = errors.New("robot: hardware unavailable")

// HardwareError names the missing or failed component.
type HardwareError struct {
	// Component is "servo", "sensor", "motors" or "camera".
	Component string

	// Err is the underlying driver error, if any.
	Err error
}

// Error implements the error interface.
func (e *HardwareError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("robot: %s unavailable: %v", e.Component, e.Err)
	}
	return fmt.Sprintf("robot: %s unavailable", e.Component)
}

// Unwrap returns the underlying driver error.
func (e *HardwareError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrHardwareUnavailable.
func (e *HardwareError) Is(target error) bool {
	return target == ErrHardwareUnavailable
}

// Unavailable is a shorthand for &HardwareError{Component: component, Err: err}.
func Unavailable(component string, err error) error {
	return &HardwareError{Component: component, Err: err}
}
