// Package runner executes one function per target with bounded concurrency
// and isolates each target from the failures of the others.
package runner

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PanicError carries a value recovered from a target's function.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Pool runs work items with at most Workers in flight.
type Pool struct {
	Workers int
	Logger  *zap.Logger
}

// Run calls fn for every item and returns the results in item order. A
// panic in fn is recovered and turned into a result by onPanic; siblings
// keep running either way. With one worker, items run sequentially in order.
func Run[T, R any](ctx context.Context, p Pool, items []T, fn func(context.Context, T) R, onPanic func(T, *PanicError) R) []R {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]R, len(items))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, item := range items {
		g.Go(func() error {
			results[i] = call(ctx, logger, item, fn, onPanic)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func call[T, R any](ctx context.Context, logger *zap.Logger, item T, fn func(context.Context, T) R, onPanic func(T, *PanicError) R) (out R) {
	defer func() {
		if v := recover(); v != nil {
			perr := &PanicError{Value: v, Stack: debug.Stack()}
			logger.Error("target panicked", zap.Any("item", item), zap.Any("panic", v), zap.ByteString("stack", perr.Stack))
			out = onPanic(item, perr)
		}
	}()
	return fn(ctx, item)
}
