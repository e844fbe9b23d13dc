// Package calibration maps logical brightness onto a display's physical
// range.
//
// Every display has a calibration band [Min, Max] expressed in percent of
// its hardware maximum, and a root-scaling exponent that bends the curve.
// A logical brightness of 0 lands on Min, 100 lands on Max, and values in
// between follow
//
//	physical = Min + (Max - Min) * (logical/100)^(1/RootScaling)
//
// ScaleDown applies the inverse so that reading back a value written by
// ScaleUp yields the original logical brightness.
package calibration
