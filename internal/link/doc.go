// Package link runs DDC/CI transactions over an exclusive I2C handle.
//
// Every logical operation is a sequence of attempts. One attempt writes a
// request, waits for the display to process it, then reads and decodes
// the reply:
//
//	write(request) -> sleep(BaseDelay * multiplier) -> read(reply) -> decode
//
// Failed attempts (I/O errors, bad checksums, malformed replies, timeouts)
// are retried up to the configured number of tries, with a constant delay
// and no backoff. When every try fails the caller gets an *ExhaustedError
// carrying the attempt count and the last cause.
//
// # Thread Safety
//
// A Driver is safe for concurrent use, but the handle underneath is only
// touched by one attempt at a time. Callers that need FIFO ordering across
// operations (the engine does) serialise above the driver.
package link
