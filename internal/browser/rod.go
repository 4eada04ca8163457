package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RodLauncher drives Chromium through the DevTools protocol. It launches a
// fresh browser process per session.
type RodLauncher struct {
	logger *zap.Logger
}

// NewRodLauncher creates a Chromium launcher.
func NewRodLauncher(logger *zap.Logger) *RodLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RodLauncher{logger: logger.Named("rod")}
}

// Launch starts Chromium. Only the chromium engine is supported.
func (r *RodLauncher) Launch(ctx context.Context, engine string, opts LaunchOptions) (Session, error) {
	if engine != "chromium" {
		return nil, fmt.Errorf("rod driver: %s: %w", engine, ErrUnsupportedEngine)
	}

	l := launcher.New().Context(ctx).Headless(opts.Headless)
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	for _, rawFlag := range opts.Flags {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	r.logger.Debug("chromium launched", zap.String("control_url", controlURL), zap.Bool("headless", opts.Headless))
	return &rodSession{browser: b, launcher: l, logger: r.logger}, nil
}

type rodSession struct {
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	logger   *zap.Logger
	closed   bool
}

func (s *rodSession) NewPage(ctx context.Context, vp Viewport) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}

	page, err := s.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	// SetViewport records the override on the page so full-page screenshots
	// restore it afterwards.
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}); err != nil {
		return nil, fmt.Errorf("set viewport %dx%d: %w", vp.Width, vp.Height, err)
	}

	p := &rodPage{page: page}
	p.startConsoleStream()
	return p, nil
}

func (s *rodSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	if err != nil {
		s.logger.Debug("browser close failed", zap.Error(err))
		return fmt.Errorf("close chromium: %w", err)
	}
	return nil
}

type rodPage struct {
	page *rod.Page

	mu      sync.Mutex
	console []string
}

// startConsoleStream records console errors and uncaught exceptions for the
// lifetime of the page.
func (p *rodPage) startConsoleStream() {
	go p.page.EachEvent(
		func(e *proto.RuntimeConsoleAPICalled) {
			if e.Type != proto.RuntimeConsoleAPICalledTypeError {
				return
			}
			p.recordConsole(stringifyConsoleArgs(e.Args))
		},
		func(e *proto.RuntimeExceptionThrown) {
			if e.ExceptionDetails == nil {
				return
			}
			msg := e.ExceptionDetails.Text
			if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
				msg = e.ExceptionDetails.Exception.Description
			}
			p.recordConsole(msg)
		},
	)()
}

func (p *rodPage) recordConsole(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.console = append(p.console, msg)
}

// ConsoleErrors returns the console errors seen since the page opened.
func (p *rodPage) ConsoleErrors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.console...)
}

func (p *rodPage) Goto(ctx context.Context, url string, opts GotoOptions) (Response, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	page := p.page.Context(ctx)

	var (
		mu   sync.Mutex
		resp Response
	)
	waitDocument := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
			return false
		}
		mu.Lock()
		resp = Response{Status: e.Response.Status, URL: e.Response.URL}
		mu.Unlock()
		return true
	})
	waitLifecycle := page.WaitNavigation(lifecycleEvent(opts.WaitUntil))

	if err := page.Navigate(url); err != nil {
		return Response{}, &NavigationError{URL: url, Err: navErr(ctx, err)}
	}
	waitLifecycle()
	if strings.HasPrefix(url, "http") {
		waitDocument()
	}
	if err := ctx.Err(); err != nil {
		return Response{}, &NavigationError{URL: url, Err: err}
	}

	mu.Lock()
	defer mu.Unlock()
	if resp.Status >= 400 {
		return resp, &NavigationError{URL: url, Status: resp.Status}
	}
	return resp, nil
}

func (p *rodPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return p.page.Context(ctx).Screenshot(fullPage, nil)
}

func (p *rodPage) LocatorCount(ctx context.Context, selector string) (int, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return 0, fmt.Errorf("query %q: %w", selector, err)
	}
	return len(els), nil
}

func (p *rodPage) Evaluate(ctx context.Context, js string) (any, error) {
	res, err := p.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.Value.Val(), nil
}

func lifecycleEvent(w WaitUntil) proto.PageLifecycleEventName {
	switch w {
	case WaitLoad:
		return proto.PageLifecycleEventNameLoad
	case WaitDOMContentLoaded:
		return proto.PageLifecycleEventNameDOMContentLoaded
	default:
		return proto.PageLifecycleEventNameNetworkIdle
	}
}

// navErr prefers the context error so callers can classify timeouts.
func navErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return multierr.Append(ctxErr, err)
	}
	return err
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
