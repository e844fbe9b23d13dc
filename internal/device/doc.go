// Package device models the displays calibright can drive.
//
// A Device is one of exactly two kinds:
//
//   - Monitor: an external display reached over DDC/CI on an I2C bus.
//   - Backlight: a built-in panel driven through the logind session bus
//     (with a sysfs fallback).
//
// The set is closed; the Device interface carries an unexported method so
// no other package can add a variant. Code that needs kind-specific
// behaviour switches on the concrete type.
//
// # Discovery
//
// Discoverers enumerate candidate devices without opening them. The
// Registry decides which candidates it wants (new, and matching the id
// filter), opens those, and reports what appeared and disappeared since
// the previous scan:
//
//	┌──────────────────┐   candidates   ┌──────────────┐   Diff   ┌────────┐
//	│ BacklightDiscov. │───────────────▶│              │─────────▶│ engine │
//	│ DDCDiscoverer    │───────────────▶│   Registry   │          └────────┘
//	└──────────────────┘                └──────────────┘
//
// Removed devices are handed back to the caller, which drains any work
// still queued for them before closing.
package device
