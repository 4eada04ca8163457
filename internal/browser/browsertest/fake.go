// Package browsertest provides an in-memory browser for tests.
package browsertest

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"webqa/internal/browser"
)

// Script describes how a fake page behaves.
type Script struct {
	NewPageErr error

	// GotoErrs are returned by successive Goto calls; once exhausted Goto
	// succeeds with Response.
	GotoErrs  []error
	Response  browser.Response
	GotoDelay time.Duration
	GotoPanic any

	// Screenshot returns the bytes to capture for a viewport. Nil means a
	// white PNG of the viewport size.
	Screenshot    func(vp browser.Viewport) []byte
	ScreenshotErr error

	Counts   map[string]int
	CountErr error

	EvalResult any
	EvalErr    error
	// Eval overrides EvalResult/EvalErr when set.
	Eval func(js string) (any, error)

	Console []string
}

// Launcher is a fake browser.Launcher. Scripts are looked up by engine name,
// falling back to Default.
type Launcher struct {
	Default   Script
	Scripts   map[string]Script
	LaunchErr map[string]error

	mu        sync.Mutex
	launches  int
	closes    int
	gotoCalls int
	viewports []browser.Viewport
	urls      []string
}

var _ browser.Launcher = (*Launcher)(nil)

func (l *Launcher) script(engine string) Script {
	if s, ok := l.Scripts[engine]; ok {
		return s
	}
	return l.Default
}

// Launch implements browser.Launcher.
func (l *Launcher) Launch(ctx context.Context, engine string, _ browser.LaunchOptions) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.LaunchErr[engine]; err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.launches++
	l.mu.Unlock()
	return &session{l: l, script: l.script(engine)}, nil
}

// Launches reports how many sessions were started.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// Closes reports how many sessions were closed.
func (l *Launcher) Closes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closes
}

// GotoCalls reports how many navigations were attempted.
func (l *Launcher) GotoCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gotoCalls
}

// Viewports returns the viewports pages were opened at, in order.
func (l *Launcher) Viewports() []browser.Viewport {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.Viewport(nil), l.viewports...)
}

// URLs returns every URL navigated to, in order.
func (l *Launcher) URLs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.urls...)
}

type session struct {
	l      *Launcher
	script Script

	mu     sync.Mutex
	closed bool
}

func (s *session) NewPage(ctx context.Context, vp browser.Viewport) (browser.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, browser.ErrSessionClosed
	}
	if s.script.NewPageErr != nil {
		return nil, s.script.NewPageErr
	}
	s.l.mu.Lock()
	s.l.viewports = append(s.l.viewports, vp)
	s.l.mu.Unlock()
	return &page{l: s.l, script: s.script, vp: vp}, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.l.mu.Lock()
	s.l.closes++
	s.l.mu.Unlock()
	return nil
}

type page struct {
	l      *Launcher
	script Script
	vp     browser.Viewport

	mu      sync.Mutex
	attempt int
}

func (p *page) Goto(ctx context.Context, url string, opts browser.GotoOptions) (browser.Response, error) {
	p.l.mu.Lock()
	p.l.gotoCalls++
	p.l.urls = append(p.l.urls, url)
	p.l.mu.Unlock()

	if p.script.GotoPanic != nil {
		panic(p.script.GotoPanic)
	}
	if p.script.GotoDelay > 0 {
		timer := time.NewTimer(p.script.GotoDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return browser.Response{}, &browser.NavigationError{URL: url, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	p.mu.Lock()
	n := p.attempt
	p.attempt++
	p.mu.Unlock()
	if n < len(p.script.GotoErrs) && p.script.GotoErrs[n] != nil {
		return browser.Response{}, p.script.GotoErrs[n]
	}

	resp := p.script.Response
	if resp.URL == "" {
		resp.URL = url
	}
	if resp.Status >= 400 {
		return resp, &browser.NavigationError{URL: url, Status: resp.Status}
	}
	return resp, nil
}

func (p *page) Screenshot(ctx context.Context, _ bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.script.ScreenshotErr != nil {
		return nil, p.script.ScreenshotErr
	}
	if p.script.Screenshot != nil {
		return p.script.Screenshot(p.vp), nil
	}
	return SolidPNG(p.vp.Width, p.vp.Height, color.White), nil
}

func (p *page) LocatorCount(_ context.Context, selector string) (int, error) {
	if p.script.CountErr != nil {
		return 0, p.script.CountErr
	}
	return p.script.Counts[selector], nil
}

func (p *page) Evaluate(_ context.Context, js string) (any, error) {
	if p.script.Eval != nil {
		return p.script.Eval(js)
	}
	return p.script.EvalResult, p.script.EvalErr
}

func (p *page) ConsoleErrors() []string {
	return append([]string(nil), p.script.Console...)
}

// SolidPNG encodes a w x h PNG filled with c.
func SolidPNG(w, h int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
