package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/calibright/internal/calibration"
	"github.com/nerrad567/calibright/internal/device"
)

// GetAverage returns the mean logical brightness over ids.
//
// Displays are read concurrently. Failed displays are logged and left out
// of the mean; the call fails only when every display fails.
func (e *Engine) GetAverage(ctx context.Context, ids []device.ID) (float64, error) {
	if len(ids) == 0 {
		return 0, ErrNoDisplays
	}

	vals := make([]float64, len(ids))
	errs := make([]error, len(ids))
	e.fanOut(ids, func(i int, id device.ID) {
		vals[i], errs[i] = e.GetBrightness(ctx, id)
	})

	var sum float64
	n := 0
	for i := range ids {
		if errs[i] != nil {
			continue
		}
		sum += vals[i]
		n++
	}
	if err := e.acceptSingle("get", ids, errs); err != nil {
		return 0, err
	}
	return sum / float64(n), nil
}

// SetAll sets every display in ids to v concurrently. It succeeds if at
// least one display accepted the value.
func (e *Engine) SetAll(ctx context.Context, ids []device.ID, v float64) error {
	if math.IsNaN(v) {
		return ErrInvalidBrightness
	}
	if len(ids) == 0 {
		return ErrNoDisplays
	}

	errs := make([]error, len(ids))
	e.fanOut(ids, func(i int, id device.ID) {
		errs[i] = e.SetBrightness(ctx, id, v)
	})
	return e.acceptSingle("set", ids, errs)
}

// Adjust moves the average brightness of ids by delta and applies the
// result to every display. Returns the value that was set.
func (e *Engine) Adjust(ctx context.Context, ids []device.ID, delta float64) (float64, error) {
	if math.IsNaN(delta) {
		return 0, ErrInvalidBrightness
	}
	cur, err := e.GetAverage(ctx, ids)
	if err != nil {
		return 0, err
	}
	target := math.Max(calibration.MinPercent, math.Min(calibration.MaxPercent, cur+delta))
	if err := e.SetAll(ctx, ids, target); err != nil {
		return 0, err
	}
	return target, nil
}

// fanOut runs fn for every id with bounded concurrency. fn reports its
// own errors; fanOut never stops early.
func (e *Engine) fanOut(ids []device.ID, fn func(i int, id device.ID)) {
	var g errgroup.Group
	g.SetLimit(e.opts.FanOut)
	for i, id := range ids {
		g.Go(func() error {
			fn(i, id)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors
}

// acceptSingle logs per-display failures and returns an error only when
// nothing succeeded.
func (e *Engine) acceptSingle(op string, ids []device.ID, errs []error) error {
	var failed []error
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed = append(failed, err)
		e.logger.Warn("display operation failed", "op", op, "id", ids[i], "error", err)
	}
	if len(failed) == len(ids) {
		return fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(failed...))
	}
	return nil
}
