package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/calibright/internal/calibration"
	"github.com/nerrad567/calibright/internal/ddcci"
)

// Timing constants for DDC/CI transactions.
const (
	// BaseDelay is the wait between writing a request and reading the
	// reply (VESA DDC/CI 1.1, section 4.3). Scaled by the sleep multiplier.
	BaseDelay = 40 * time.Millisecond

	// AttemptTimeoutFactor bounds a single attempt at this many base delays.
	AttemptTimeoutFactor = 25

	// MinAttemptTimeout is the floor for the per-attempt bound.
	MinAttemptTimeout = 250 * time.Millisecond
)

// Handle is an exclusive I2C connection to a display's DDC/CI channel.
type Handle interface {
	Write(p []byte) error
	Read(n int) ([]byte, error)
	Close() error
}

// Params are the per-operation link settings taken from the display's
// effective configuration.
type Params struct {
	SleepMultiplier float64
	MaxTries        int
}

// ParamsFrom extracts link settings from a display configuration.
func ParamsFrom(cfg calibration.DisplayConfig) Params {
	return Params{
		SleepMultiplier: cfg.DDCCISleepMultiplier,
		MaxTries:        cfg.DDCCIMaxTriesWriteRead,
	}
}

func (p Params) tries() int {
	if p.MaxTries < 1 {
		return 1
	}
	return p.MaxTries
}

func (p Params) delay() time.Duration {
	m := p.SleepMultiplier
	if m <= 0 {
		m = calibration.DefaultDDCCISleepMultiplier
	}
	return time.Duration(float64(BaseDelay) * m)
}

func (p Params) attemptTimeout() time.Duration {
	t := AttemptTimeoutFactor * p.delay()
	if t < MinAttemptTimeout {
		return MinAttemptTimeout
	}
	return t
}

// Stats holds operational counters for a driver.
type Stats struct {
	Transactions uint64
	Attempts     uint64
	Failures     uint64 // Transactions that exhausted every try
	Timeouts     uint64 // Attempts abandoned at the attempt bound
	LastActivity time.Time
}

// Driver runs DDC/CI operations on one handle.
type Driver struct {
	handle Handle

	// ioMu is held for the duration of an attempt, including attempts
	// abandoned after a timeout.
	ioMu   sync.Mutex
	closed atomic.Bool

	transactions atomic.Uint64
	attempts     atomic.Uint64
	failures     atomic.Uint64
	timeouts     atomic.Uint64
	lastActivity atomic.Int64
}

// NewDriver wraps h. The driver takes ownership and closes h on Close.
func NewDriver(h Handle) *Driver {
	return &Driver{handle: h}
}

// GetBrightness reads the current and maximum brightness.
func (d *Driver) GetBrightness(ctx context.Context, p Params) (current, maxValue uint16, err error) {
	reply, err := d.run(ctx, p, OpGet, func(actx context.Context) (ddcci.Reply, error) {
		return d.query(actx, p, ddcci.Brightness)
	})
	if err != nil {
		return 0, 0, err
	}
	return reply.Current, reply.Max, nil
}

// SetBrightness writes v and verifies it by reading the value back.
// A write that lands but fails verification cannot be undone; the next
// attempt simply writes again.
func (d *Driver) SetBrightness(ctx context.Context, p Params, v uint16) error {
	req := ddcci.EncodeSet(ddcci.Brightness, v)
	_, err := d.run(ctx, p, OpSet, func(actx context.Context) (ddcci.Reply, error) {
		if err := d.handle.Write(req); err != nil {
			return ddcci.Reply{}, fmt.Errorf("writing set request: %w", err)
		}
		if err := sleepCtx(actx, p.delay()); err != nil {
			return ddcci.Reply{}, err
		}
		r, err := d.query(actx, p, ddcci.Brightness)
		if err != nil {
			return ddcci.Reply{}, fmt.Errorf("verifying: %w", err)
		}
		if r.Current != v {
			return ddcci.Reply{}, fmt.Errorf("%w: wrote %d, read %d", ErrVerifyMismatch, v, r.Current)
		}
		return r, nil
	})
	return err
}

// Stats returns a snapshot of the driver counters.
func (d *Driver) Stats() Stats {
	s := Stats{
		Transactions: d.transactions.Load(),
		Attempts:     d.attempts.Load(),
		Failures:     d.failures.Load(),
		Timeouts:     d.timeouts.Load(),
	}
	if ns := d.lastActivity.Load(); ns > 0 {
		s.LastActivity = time.Unix(0, ns)
	}
	return s
}

// Close releases the handle. It waits for any attempt still holding it.
func (d *Driver) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.ioMu.Lock()
	defer d.ioMu.Unlock()
	return d.handle.Close()
}

// query performs one write/sleep/read/decode cycle for feature f.
// Must be called with ioMu held.
func (d *Driver) query(ctx context.Context, p Params, f ddcci.Feature) (ddcci.Reply, error) {
	if err := ctx.Err(); err != nil {
		return ddcci.Reply{}, err
	}
	if err := d.handle.Write(ddcci.EncodeGet(f)); err != nil {
		return ddcci.Reply{}, fmt.Errorf("writing get request: %w", err)
	}
	if err := sleepCtx(ctx, p.delay()); err != nil {
		return ddcci.Reply{}, err
	}
	b, err := d.handle.Read(ddcci.ReplyLen)
	if err != nil {
		return ddcci.Reply{}, fmt.Errorf("reading reply: %w", err)
	}
	return ddcci.DecodeFeatureReply(f, b)
}

// run drives the retry loop for one logical operation.
func (d *Driver) run(ctx context.Context, p Params, op Op, fn attemptFunc) (ddcci.Reply, error) {
	if d.closed.Load() {
		return ddcci.Reply{}, ErrClosed
	}

	d.transactions.Add(1)
	start := time.Now()
	tries := p.tries()
	timeout := p.attemptTimeout()

	var lastErr error
	attempts := 0
	finish := func(r ddcci.Reply, err error) (ddcci.Reply, error) {
		d.lastActivity.Store(time.Now().UnixNano())
		trace(ctx, Transaction{Op: op, Attempts: attempts, Duration: time.Since(start), Err: err})
		return r, err
	}

	for attempts < tries {
		if err := ctx.Err(); err != nil {
			return finish(ddcci.Reply{}, fmt.Errorf("%w: %w", ErrCancelled, err))
		}
		attempts++
		d.attempts.Add(1)

		r, err := d.attempt(ctx, timeout, fn)
		if err == nil {
			return finish(r, nil)
		}
		if errors.Is(err, ErrCancelled) {
			return finish(ddcci.Reply{}, err)
		}
		if errors.Is(err, ErrAttemptTimeout) {
			d.timeouts.Add(1)
		}
		lastErr = err
	}

	d.failures.Add(1)
	return finish(ddcci.Reply{}, &ExhaustedError{Attempts: attempts, LastCause: lastErr})
}

// attempt runs fn under the handle lock with a bounded lifetime. If the
// bound passes first the attempt is abandoned: its context is cancelled so
// it issues no further writes, and it keeps the lock until the blocked
// call returns.
func (d *Driver) attempt(ctx context.Context, timeout time.Duration, fn attemptFunc) (ddcci.Reply, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		d.ioMu.Lock()
		defer d.ioMu.Unlock()
		if err := actx.Err(); err != nil {
			done <- attemptResult{err: err}
			return
		}
		r, err := fn(actx)
		done <- attemptResult{reply: r, err: err}
	}()

	var res attemptResult
	select {
	case res = <-done:
	case <-actx.Done():
		select {
		case res = <-done:
		default:
			res.err = actx.Err()
		}
	}

	switch {
	case res.err == nil:
		return res.reply, nil
	case ctx.Err() != nil:
		return ddcci.Reply{}, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	case errors.Is(res.err, context.DeadlineExceeded):
		return ddcci.Reply{}, fmt.Errorf("%w after %s", ErrAttemptTimeout, timeout)
	default:
		return ddcci.Reply{}, res.err
	}
}

type attemptFunc func(context.Context) (ddcci.Reply, error)

type attemptResult struct {
	reply ddcci.Reply
	err   error
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
