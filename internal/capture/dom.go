package capture

import (
	"context"
	"fmt"
	"time"

	"webqa/internal/browser"
)

const (
	stableDOMInterval = 100 * time.Millisecond
	stableDOMChecks   = 5
	stableDOMScript   = `() => document.documentElement ? document.documentElement.outerHTML.length : 0`
)

// waitForStableDOM polls the serialized document length until it is
// unchanged for stableDOMChecks consecutive polls, or timeout elapses.
func waitForStableDOM(ctx context.Context, page browser.Page, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(stableDOMInterval)
	defer ticker.Stop()

	last, stable := -1, 0
	for {
		v, err := page.Evaluate(ctx, stableDOMScript)
		if err != nil {
			return fmt.Errorf("measure DOM: %w", err)
		}
		n, ok := toInt(v)
		if !ok {
			return fmt.Errorf("measure DOM: unexpected result %T", v)
		}
		if n == last {
			stable++
			if stable >= stableDOMChecks {
				return nil
			}
		} else {
			last, stable = n, 0
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
