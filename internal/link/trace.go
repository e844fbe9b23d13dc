package link

import (
	"context"
	"time"
)

// Op identifies the kind of link operation.
type Op string

// Link operations.
const (
	OpGet Op = "get"
	OpSet Op = "set"
)

// Transaction describes a completed link operation.
type Transaction struct {
	Op       Op
	Attempts int
	Duration time.Duration
	Err      error
}

type traceKey struct{}

// WithTrace returns a context that reports every finished transaction to fn.
// fn runs on the caller's goroutine and must not block.
func WithTrace(ctx context.Context, fn func(Transaction)) context.Context {
	return context.WithValue(ctx, traceKey{}, fn)
}

func trace(ctx context.Context, t Transaction) {
	if fn, ok := ctx.Value(traceKey{}).(func(Transaction)); ok && fn != nil {
		fn(t)
	}
}
