// Package browser is the narrow automation surface webqa drives: launch an
// engine, open a page at a viewport, navigate, screenshot, count elements and
// evaluate script. Two drivers implement it, go-rod for Chromium over CDP and
// playwright-go for every engine.
package browser

import (
	"context"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// WaitUntil names the page lifecycle point a navigation waits for.
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
)

// ParseWaitUntil maps a config value onto a WaitUntil, defaulting to
// networkidle.
func ParseWaitUntil(s string) WaitUntil {
	switch WaitUntil(strings.ToLower(strings.TrimSpace(s))) {
	case WaitLoad:
		return WaitLoad
	case WaitDOMContentLoaded:
		return WaitDOMContentLoaded
	default:
		return WaitNetworkIdle
	}
}

// Viewport is the page size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// LaunchOptions configures a browser launch.
type LaunchOptions struct {
	Headless bool
	// Bin overrides the browser executable (rod driver only).
	Bin string
	// Flags are extra command-line switches, "--name=value" or "--name".
	Flags []string
}

// GotoOptions configures one navigation.
type GotoOptions struct {
	WaitUntil WaitUntil
	Timeout   time.Duration
}

// Response is the main-document response of a navigation. Status is zero
// when the driver saw no HTTP response (file:// or about: URLs).
type Response struct {
	Status int
	URL    string
}

// Launcher starts a browser engine.
type Launcher interface {
	Launch(ctx context.Context, engine string, opts LaunchOptions) (Session, error)
}

// Session is one launched browser. Close must be called on every path.
type Session interface {
	NewPage(ctx context.Context, vp Viewport) (Page, error)
	Close() error
}

// Page is a single tab. Evaluate takes a JavaScript function expression,
// e.g. "() => document.title", and returns its JSON value.
type Page interface {
	Goto(ctx context.Context, url string, opts GotoOptions) (Response, error)
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	LocatorCount(ctx context.Context, selector string) (int, error)
	Evaluate(ctx context.Context, js string) (any, error)
}

// ConsoleReporter is implemented by pages that listen for console errors
// from the moment they open.
type ConsoleReporter interface {
	ConsoleErrors() []string
}

// WithPage launches engine, opens a page at vp and runs fn. The session is
// closed on every exit path and a close failure is combined with fn's error.
func WithPage(ctx context.Context, l Launcher, engine string, opts LaunchOptions, vp Viewport, fn func(Page) error) (err error) {
	sess, err := l.Launch(ctx, engine, opts)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, sess.Close())
	}()

	page, err := sess.NewPage(ctx, vp)
	if err != nil {
		return err
	}
	return fn(page)
}
