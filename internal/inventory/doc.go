// Package inventory persists which displays calibright has managed and an
// audit trail of calibration reloads.
//
// The Recorder subscribes to engine events and writes them to the
// repository on its own goroutine, so engine lanes never wait on SQLite.
// Brightness values are not stored.
package inventory
