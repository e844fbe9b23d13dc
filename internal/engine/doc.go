// Package engine coordinates brightness operations across displays.
//
// Each registered display gets a lane: a goroutine with a FIFO request
// queue that is the only code touching the device. A lane is either idle
// or running exactly one operation; requests for the same display queue
// behind it, while different displays proceed in parallel.
//
//	SetBrightness("ddcci6", 40) ──┐
//	GetBrightness("ddcci6")     ──┼──▶ lane ddcci6 ──▶ Monitor ──▶ I2C
//	                              │
//	SetBrightness("intel_bl", 70) ───▶ lane intel_bl ─▶ Backlight ─▶ logind
//
// Every operation snapshots the display's effective configuration when it
// starts, so a reload that lands mid-operation only affects later ones.
// Reloads go straight to the config store and never wait for a lane.
package engine
