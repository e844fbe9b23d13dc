package calibration

import "errors"

// ErrInvalidConfig is returned when a display configuration fails
// validation.
var ErrInvalidConfig = errors.New("calibration: invalid display configuration")
