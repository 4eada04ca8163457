package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// PlaywrightLauncher drives chromium, firefox and webkit through a shared
// Playwright driver process, started on first use.
type PlaywrightLauncher struct {
	logger *zap.Logger

	mu sync.Mutex
	pw *playwright.Playwright
}

// NewPlaywrightLauncher creates a launcher. No process starts until Launch.
func NewPlaywrightLauncher(logger *zap.Logger) *PlaywrightLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlaywrightLauncher{logger: logger.Named("playwright")}
}

func (l *PlaywrightLauncher) driver() (*playwright.Playwright, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pw != nil {
		return l.pw, nil
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("%w: start playwright: %v", ErrDriverUnavailable, err)
	}
	l.pw = pw
	return pw, nil
}

// Launch starts a browser of the given engine.
func (l *PlaywrightLauncher) Launch(ctx context.Context, engine string, opts LaunchOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := l.driver()
	if err != nil {
		return nil, err
	}

	var bt playwright.BrowserType
	switch engine {
	case "chromium":
		bt = pw.Chromium
	case "firefox":
		bt = pw.Firefox
	case "webkit":
		bt = pw.WebKit
	default:
		return nil, fmt.Errorf("playwright driver: %s: %w", engine, ErrUnsupportedEngine)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if len(opts.Flags) > 0 {
		launchOpts.Args = opts.Flags
	}
	b, err := bt.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", engine, err)
	}
	l.logger.Debug("browser launched", zap.String("engine", engine), zap.Bool("headless", opts.Headless))
	return &playwrightSession{browser: b}, nil
}

// Close stops the driver process.
func (l *PlaywrightLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pw == nil {
		return nil
	}
	err := l.pw.Stop()
	l.pw = nil
	return err
}

type playwrightSession struct {
	mu      sync.Mutex
	browser playwright.Browser
	context playwright.BrowserContext
	closed  bool
}

func (s *playwrightSession) NewPage(ctx context.Context, vp Viewport) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := s.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: vp.Width, Height: vp.Height},
	})
	if err != nil {
		return nil, fmt.Errorf("create context: %w", err)
	}
	s.context = bctx

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	p := &playwrightPage{page: page}
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		if msg.Type() == "error" {
			p.recordConsole(msg.Text())
		}
	})
	page.OnPageError(func(err error) {
		p.recordConsole(err.Error())
	})
	return p, nil
}

func (s *playwrightSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.context != nil {
		err = multierr.Append(err, s.context.Close())
	}
	err = multierr.Append(err, s.browser.Close())
	return err
}

type playwrightPage struct {
	page playwright.Page

	mu      sync.Mutex
	console []string
}

func (p *playwrightPage) recordConsole(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.console = append(p.console, msg)
}

// ConsoleErrors returns the console errors seen since the page opened.
func (p *playwrightPage) ConsoleErrors() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.console...)
}

func (p *playwrightPage) Goto(ctx context.Context, url string, opts GotoOptions) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, &NavigationError{URL: url, Err: err}
	}
	gotoOpts := playwright.PageGotoOptions{
		WaitUntil: waitUntilState(opts.WaitUntil),
	}
	if timeout := remaining(ctx, opts.Timeout); timeout > 0 {
		gotoOpts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}

	res, err := p.page.Goto(url, gotoOpts)
	if err != nil {
		if ctx.Err() != nil {
			err = multierr.Append(ctx.Err(), err)
		} else if errors.Is(err, playwright.ErrTimeout) {
			err = multierr.Append(context.DeadlineExceeded, err)
		}
		return Response{}, &NavigationError{URL: url, Err: err}
	}
	if res == nil {
		return Response{}, nil
	}

	resp := Response{Status: res.Status(), URL: res.URL()}
	if resp.Status >= 400 {
		return resp, &NavigationError{URL: url, Status: resp.Status}
	}
	return resp, nil
}

func (p *playwrightPage) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Type:     playwright.ScreenshotTypePng,
	})
}

func (p *playwrightPage) LocatorCount(ctx context.Context, selector string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.page.Locator(selector).Count()
	if err != nil {
		return 0, fmt.Errorf("query %q: %w", selector, err)
	}
	return n, nil
}

func (p *playwrightPage) Evaluate(ctx context.Context, js string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.page.Evaluate(js)
}

func waitUntilState(w WaitUntil) *playwright.WaitUntilState {
	switch w {
	case WaitLoad:
		return playwright.WaitUntilStateLoad
	case WaitDOMContentLoaded:
		return playwright.WaitUntilStateDomcontentloaded
	default:
		return playwright.WaitUntilStateNetworkidle
	}
}

// remaining bounds d by the context deadline, if any.
func remaining(ctx context.Context, d time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); d <= 0 || left < d {
			return left
		}
	}
	return d
}
