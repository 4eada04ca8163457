// Package matrix runs the fixed three-step smoke protocol against one browser
// engine: load the page, look for interactive elements, check the console.
package matrix

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"webqa/internal/browser"
	"webqa/internal/config"
	"webqa/internal/result"
	"webqa/internal/target"
)

// Step names, also used as report row labels.
const (
	StepLoad         = "Load page"
	StepInteractions = "Basic interactions"
	StepConsole      = "Console errors"
)

// InteractiveSelectors are counted by the interaction step.
var InteractiveSelectors = []string{"button", "a", "input"}

// consoleProbe only proves the page can still evaluate script; real console
// errors come from pages that implement browser.ConsoleReporter.
const consoleProbe = `() => document.readyState`

// Options configures an Engine.
type Options struct {
	Launch            browser.LaunchOptions
	WaitUntil         browser.WaitUntil
	NavigationTimeout time.Duration
	// SlowLoad is the load time above which the load step warns.
	SlowLoad time.Duration
}

// OptionsFromConfig derives matrix options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Launch: browser.LaunchOptions{
			Headless: cfg.Browser.Headless,
			Bin:      cfg.Browser.Bin,
			Flags:    cfg.Browser.Flags,
		},
		WaitUntil:         browser.ParseWaitUntil(cfg.Capture.WaitUntil),
		NavigationTimeout: cfg.GetNavigationTimeout(),
		SlowLoad:          cfg.GetSlowLoad(),
	}
}

// Engine runs the smoke protocol. It is safe for concurrent use; every Run
// owns its own browser session.
type Engine struct {
	launcher browser.Launcher
	opts     Options
	logger   *zap.Logger
}

// NewEngine creates an engine.
func NewEngine(l browser.Launcher, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SlowLoad <= 0 {
		opts.SlowLoad = 5 * time.Second
	}
	return &Engine{launcher: l, opts: opts, logger: logger}
}

// Run executes the protocol for one engine target. It never returns an
// error: launch and page failures become a result with Status Error and no
// steps.
func (e *Engine) Run(ctx context.Context, t target.Target, url string) result.BrowserRunResult {
	start := time.Now()
	r := &run{
		target: t,
		log:    e.logger.With(zap.String("engine", t.Name)),
		state:  statePending,
	}
	res := result.BrowserRunResult{Target: t}

	vp := browser.Viewport{Width: t.Width, Height: t.Height}
	err := browser.WithPage(ctx, e.launcher, t.Name, e.opts.Launch, vp, func(page browser.Page) error {
		res.Steps = e.steps(ctx, r, page, url)
		return nil
	})

	res.ElapsedMs = millis(time.Since(start))
	switch {
	case err != nil && r.state == statePending:
		res.Status = result.StatusError
		res.Error = err.Error()
		r.log.Warn("browser run errored", zap.Error(err))
		return res
	case err != nil:
		r.log.Warn("browser close failed", zap.Error(err))
	}
	res.Rollup()
	r.log.Info("browser run finished", zap.Stringer("status", res.Status), zap.Float64("elapsed_ms", res.ElapsedMs))
	return res
}

func (e *Engine) steps(ctx context.Context, r *run, page browser.Page, url string) []result.StepResult {
	r.to(stateLoading)
	load := e.loadStep(ctx, page, url)
	steps := []result.StepResult{load}
	if load.Status == result.StatusFail {
		r.to(stateLoadFailed)
		r.to(stateDone)
		return steps
	}
	r.to(stateLoaded)

	r.to(stateInteracting)
	steps = append(steps, interactionStep(ctx, page))

	r.to(stateConsoleCheck)
	steps = append(steps, consoleStep(ctx, page))

	r.to(stateDone)
	return steps
}

func (e *Engine) loadStep(ctx context.Context, page browser.Page, url string) result.StepResult {
	start := time.Now()
	resp, err := page.Goto(ctx, url, browser.GotoOptions{
		WaitUntil: e.opts.WaitUntil,
		Timeout:   e.opts.NavigationTimeout,
	})
	elapsed := time.Since(start)
	step := result.StepResult{Name: StepLoad, ElapsedMs: millis(elapsed)}

	switch {
	case browser.IsHTTPError(err):
		step.Status = result.StatusFail
		step.Message = fmt.Sprintf("HTTP %d", resp.Status)
		if resp.Status == 0 {
			step.Message = err.Error()
		}
	case err != nil:
		step.Status = result.StatusFail
		step.Message = err.Error()
	case elapsed > e.opts.SlowLoad:
		step.Status = result.StatusWarn
		step.Message = fmt.Sprintf("Loaded (slow: %.1fs)", elapsed.Seconds())
	default:
		step.Status = result.StatusPass
		step.Message = fmt.Sprintf("Loaded in %.1fs", elapsed.Seconds())
	}
	return step
}

func interactionStep(ctx context.Context, page browser.Page) result.StepResult {
	start := time.Now()
	step := result.StepResult{Name: StepInteractions}

	counts := make([]int, len(InteractiveSelectors))
	total := 0
	for i, sel := range InteractiveSelectors {
		n, err := page.LocatorCount(ctx, sel)
		if err != nil {
			step.Status = result.StatusFail
			step.Message = err.Error()
			step.ElapsedMs = millis(time.Since(start))
			return step
		}
		counts[i] = n
		total += n
	}

	step.ElapsedMs = millis(time.Since(start))
	if total == 0 {
		step.Status = result.StatusWarn
		step.Message = "No interactive elements found"
		return step
	}
	step.Status = result.StatusPass
	step.Message = fmt.Sprintf("Found %d buttons, %d links, %d inputs", counts[0], counts[1], counts[2])
	return step
}

func consoleStep(ctx context.Context, page browser.Page) result.StepResult {
	step := result.StepResult{Name: StepConsole}
	if _, err := page.Evaluate(ctx, consoleProbe); err != nil {
		step.Status = result.StatusWarn
		step.Message = fmt.Sprintf("Could not check console: %v", err)
		return step
	}
	if cr, ok := page.(browser.ConsoleReporter); ok {
		if errs := cr.ConsoleErrors(); len(errs) > 0 {
			step.Status = result.StatusWarn
			step.Message = fmt.Sprintf("%d console error(s): %s", len(errs), errs[0])
			return step
		}
	}
	step.Status = result.StatusPass
	step.Message = "No obvious console errors"
	return step
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
