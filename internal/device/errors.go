package device

import "errors"

// Domain errors for the device package.
var (
	// ErrDeviceNotFound is returned when a device ID is not registered.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrBusFailure is returned when the backlight session bus (or its
	// sysfs fallback) rejects a call.
	ErrBusFailure = errors.New("device: backlight bus failure")

	// ErrNoDevice is returned by a candidate that turned out not to be a
	// controllable display (e.g. an I2C bus with nothing answering DDC/CI).
	ErrNoDevice = errors.New("device: no display on candidate")
)
