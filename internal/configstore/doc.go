// Package configstore holds the live per-display configuration.
//
// The store publishes immutable snapshots through an atomic pointer.
// Readers call EffectiveFor on every operation and never block; a reload
// builds and validates a complete new snapshot, then swaps it in. A reload
// that fails validation leaves the previous snapshot in place, so the
// store always serves the last configuration that was known to be good.
//
// Configuration files use one table per display plus a "global" table:
//
//	[global]
//	root_scaling = 2.0
//	calibration = [0, 100]
//
//	[ddcci6]
//	calibration = 90        # scalar sets max only
//
//	[intel_backlight]
//	ddcci_sleep_multiplier = 1.5
//
// Fields a display table leaves out inherit the resolved global value.
package configstore
