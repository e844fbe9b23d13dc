package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/calibright/internal/configstore"
	"github.com/nerrad567/calibright/internal/device"
	"github.com/nerrad567/calibright/internal/link"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// opFunc runs on the lane goroutine with exclusive access to the device.
type opFunc func(ctx context.Context, l *lane) (float64, error)

type result struct {
	value float64
	err   error
}

type request struct {
	ctx   context.Context
	fn    opFunc
	reply chan result
}

// lane serialises every operation for one device.
type lane struct {
	dev    device.Device
	engine *Engine
	stats  *linkStats

	queue chan *request
	stop  *closeOnce // closed to ask the worker to drain and exit
	done  chan struct{}

	// ctx is cancelled when the lane stops, aborting the in-flight op.
	ctx    context.Context
	cancel context.CancelFunc

	// hwMax is the last hardware maximum read. Lane goroutine only.
	hwMax uint32
}

func newLane(e *Engine, dev device.Device, queueSize int) *lane {
	ctx, cancel := context.WithCancel(context.Background())
	return &lane{
		dev:    dev,
		engine: e,
		stats:  newLinkStats(),
		queue:  make(chan *request, queueSize),
		stop:   newCloseOnce(),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

// submit queues fn and waits for its result.
func (l *lane) submit(ctx context.Context, fn opFunc) (float64, error) {
	req := &request{ctx: ctx, fn: fn, reply: make(chan result, 1)}

	select {
	case l.queue <- req:
	case <-l.stop.Done():
		return 0, ErrLaneClosed
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %w", link.ErrCancelled, ctx.Err())
	}

	select {
	case r := <-req.reply:
		return r.value, r.err
	case <-l.done:
		select {
		case r := <-req.reply:
			return r.value, r.err
		default:
			return 0, ErrLaneClosed
		}
	case <-ctx.Done():
		// The worker skips the request if it has not started, or sees the
		// cancellation through its context if it has.
		return 0, fmt.Errorf("%w: %w", link.ErrCancelled, ctx.Err())
	}
}

func (l *lane) run() {
	defer close(l.done)
	for {
		select {
		case <-l.stop.Done():
			l.drain()
			return
		case req := <-l.queue:
			l.serve(req)
		}
	}
}

func (l *lane) serve(req *request) {
	select {
	case <-l.stop.Done():
		req.reply <- result{err: ErrLaneClosed}
		return
	default:
	}
	if err := req.ctx.Err(); err != nil {
		req.reply <- result{err: fmt.Errorf("%w: %w", link.ErrCancelled, err)}
		return
	}

	ctx, cancel := context.WithCancel(req.ctx)
	stop := context.AfterFunc(l.ctx, cancel)
	v, err := req.fn(ctx, l)
	stop()
	cancel()

	req.reply <- result{value: v, err: err}
}

func (l *lane) drain() {
	for {
		select {
		case req := <-l.queue:
			req.reply <- result{err: ErrLaneClosed}
		default:
			return
		}
	}
}

// close aborts the in-flight operation, fails queued requests and waits
// for the worker to exit.
func (l *lane) close() {
	l.stop.Close()
	l.cancel()
	<-l.done
}

// read fetches the device's raw level and remembers the hardware maximum.
func (l *lane) read(ctx context.Context, eff configstore.Effective) (device.Reading, error) {
	var r device.Reading
	err := l.observe(ctx, link.OpGet, func(ctx context.Context) error {
		var err error
		r, err = l.dev.Read(ctx, link.ParamsFrom(eff.Config))
		return err
	})
	if err != nil {
		return device.Reading{}, err
	}
	if r.Max > 0 {
		l.hwMax = r.Max
	}
	return r, nil
}

func (l *lane) write(ctx context.Context, eff configstore.Effective, raw uint32) error {
	return l.observe(ctx, link.OpSet, func(ctx context.Context) error {
		return l.dev.Write(ctx, link.ParamsFrom(eff.Config), raw)
	})
}

// observe times fn, records it in the lane stats and emits a
// link.transaction event. DDC/CI attempt counts come from the link trace;
// devices without one count as a single attempt.
func (l *lane) observe(ctx context.Context, op link.Op, fn func(context.Context) error) error {
	attempts := 0
	ctx = link.WithTrace(ctx, func(t link.Transaction) {
		attempts = t.Attempts
	})

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if attempts == 0 {
		attempts = 1
	}

	l.stats.record(attempts, elapsed, err)

	tx := &Transaction{Op: string(op), Attempts: attempts, Duration: elapsed, OK: err == nil}
	if err != nil {
		tx.Error = err.Error()
	}
	l.engine.emit(Event{Type: EventLinkTransaction, DisplayID: l.dev.ID(), Kind: l.dev.Kind(), Transaction: tx})
	return err
}
