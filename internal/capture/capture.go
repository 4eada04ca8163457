// Package capture navigates a browser page to the application under test and
// takes full-page screenshots for each target.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"time"

	"go.uber.org/zap"

	"webqa/internal/browser"
	"webqa/internal/config"
	"webqa/internal/target"
)

// Artifact is one captured screenshot.
type Artifact struct {
	Target     target.Target
	Image      []byte // PNG
	Width      int
	Height     int
	CapturedAt time.Time
	Response   browser.Response
}

// Options configures a Service.
type Options struct {
	// Engine captures viewport targets; engine targets use their own name.
	Engine            string
	Launch            browser.LaunchOptions
	WaitUntil         browser.WaitUntil
	NavigationTimeout time.Duration
	MaxAttempts       int
	RetryDelay        time.Duration
	WaitForStableDOM  bool
	StableDOMTimeout  time.Duration
	FullPage          bool
}

// OptionsFromConfig derives capture options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Engine: cfg.Capture.Engine,
		Launch: browser.LaunchOptions{
			Headless: cfg.Browser.Headless,
			Bin:      cfg.Browser.Bin,
			Flags:    cfg.Browser.Flags,
		},
		WaitUntil:         browser.ParseWaitUntil(cfg.Capture.WaitUntil),
		NavigationTimeout: cfg.GetNavigationTimeout(),
		MaxAttempts:       cfg.GetMaxAttempts(),
		RetryDelay:        cfg.GetRetryDelay(),
		WaitForStableDOM:  cfg.Capture.WaitForStableDOM,
		StableDOMTimeout:  cfg.GetStableDOMTimeout(),
		FullPage:          true,
	}
}

// Service captures screenshots. It is safe for concurrent use; every
// Capture call owns its own browser session.
type Service struct {
	launcher browser.Launcher
	opts     Options
	logger   *zap.Logger
}

// NewService creates a capture service.
func NewService(l browser.Launcher, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Engine == "" {
		opts.Engine = "chromium"
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Service{launcher: l, opts: opts, logger: logger}
}

func (s *Service) engineFor(t target.Target) string {
	if t.Kind == target.KindBrowserEngine {
		return t.Name
	}
	return s.opts.Engine
}

// Capture screenshots url at the target's viewport. Any failure is returned
// as a *CaptureError; the browser session is closed on every path.
func (s *Service) Capture(ctx context.Context, t target.Target, url string) (*Artifact, error) {
	log := s.logger.With(zap.String("target", t.Name))
	vp := browser.Viewport{Width: t.Width, Height: t.Height}
	engine := s.engineFor(t)

	var (
		art    *Artifact
		reason = ReasonLaunch
	)
	err := browser.WithPage(ctx, s.launcher, engine, s.opts.Launch, vp, func(page browser.Page) error {
		reason = ReasonNavigation
		resp, err := s.navigate(ctx, log, page, url)
		if err != nil {
			return err
		}

		if s.opts.WaitForStableDOM {
			if err := waitForStableDOM(ctx, page, s.opts.StableDOMTimeout); err != nil {
				log.Warn("DOM did not stabilise, capturing anyway", zap.Error(err))
			}
		}

		reason = ReasonScreenshot
		shot, err := page.Screenshot(ctx, s.opts.FullPage)
		if err != nil {
			return err
		}
		cfg, err := png.DecodeConfig(bytes.NewReader(shot))
		if err != nil {
			return fmt.Errorf("decode screenshot: %w", err)
		}

		art = &Artifact{
			Target:     t,
			Image:      shot,
			Width:      cfg.Width,
			Height:     cfg.Height,
			CapturedAt: time.Now(),
			Response:   resp,
		}
		reason = ReasonClose
		return nil
	})
	if err != nil {
		if reason == ReasonClose && art != nil {
			log.Warn("browser close failed", zap.Error(err))
			return art, nil
		}
		log.Debug("capture failed", zap.String("reason", string(reason)), zap.Error(err))
		return nil, &CaptureError{Target: t, Reason: reason, Err: err}
	}

	log.Debug("captured", zap.Int("width", art.Width), zap.Int("height", art.Height))
	return art, nil
}

// navigate loads url, retrying failures up to MaxAttempts with RetryDelay
// between attempts. HTTP error statuses are not retried.
func (s *Service) navigate(ctx context.Context, log *zap.Logger, page browser.Page, url string) (browser.Response, error) {
	opts := browser.GotoOptions{WaitUntil: s.opts.WaitUntil, Timeout: s.opts.NavigationTimeout}

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		resp, err := page.Goto(ctx, url, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !browser.IsRetryableError(err) || attempt == s.opts.MaxAttempts {
			break
		}
		log.Warn("navigation failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", s.opts.MaxAttempts),
			zap.Error(err))
		if err := sleep(ctx, s.opts.RetryDelay); err != nil {
			return browser.Response{}, err
		}
	}
	return browser.Response{}, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
