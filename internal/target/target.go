// Package target resolves user-supplied viewport and browser-engine names into
// canonical, deduplicated Target records.
package target

import (
	"fmt"
	"strings"
)

// Kind distinguishes viewport targets from browser-engine targets.
type Kind string

const (
	KindViewport      Kind = "viewport"
	KindBrowserEngine Kind = "browser"
)

// Target is one named viewport size or browser engine under test.
// Identity is (Kind, Name) after alias resolution.
type Target struct {
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Key returns the canonical identity of the target.
func (t Target) Key() string {
	return string(t.Kind) + ":" + t.Name
}

// String formats the target for log lines.
func (t Target) String() string {
	if t.Width > 0 && t.Height > 0 {
		return fmt.Sprintf("%s (%dx%d)", t.Name, t.Width, t.Height)
	}
	return t.Name
}

// ArtifactName returns the file stem used for screenshots of this target,
// "{name}_{width}x{height}".
func (t Target) ArtifactName() string {
	return fmt.Sprintf("%s_%dx%d", t.Name, t.Width, t.Height)
}

// Viewport is a named browser window size.
type Viewport struct {
	Name   string
	Width  int
	Height int
}

// Viewports lists the supported viewports. The order is the expansion order of "all".
var Viewports = []Viewport{
	{Name: "desktop", Width: 1920, Height: 1080},
	{Name: "laptop", Width: 1366, Height: 768},
	{Name: "tablet", Width: 768, Height: 1024},
	{Name: "mobile", Width: 375, Height: 667},
	{Name: "mobile_landscape", Width: 667, Height: 375},
	{Name: "desktop_4k", Width: 3840, Height: 2160},
}

// Engines lists the supported browser engines, in "all" order.
var Engines = []string{"chromium", "firefox", "webkit"}

// Aliases maps alternative engine names onto canonical ones.
var Aliases = map[string]string{
	"chrome": "chromium",
	"ff":     "firefox",
	"safari": "webkit",
}

// DefaultViewport is used for engine targets, which have no size of their own.
const DefaultViewport = "desktop"

// LookupViewport returns the named viewport.
func LookupViewport(name string) (Viewport, bool) {
	for _, vp := range Viewports {
		if vp.Name == name {
			return vp, true
		}
	}
	return Viewport{}, false
}

// CanonicalEngine resolves aliases and reports whether the engine is supported.
func CanonicalEngine(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := Aliases[name]; ok {
		name = alias
	}
	for _, e := range Engines {
		if e == name {
			return e, true
		}
	}
	return name, false
}

// NewViewport builds a viewport target from the supported table.
func NewViewport(name string) (Target, bool) {
	vp, ok := LookupViewport(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return Target{}, false
	}
	return Target{Kind: KindViewport, Name: vp.Name, Width: vp.Width, Height: vp.Height}, true
}

// NewEngine builds a browser-engine target sized to the default viewport.
func NewEngine(name string) (Target, bool) {
	engine, ok := CanonicalEngine(name)
	if !ok {
		return Target{}, false
	}
	vp, _ := LookupViewport(DefaultViewport)
	return Target{Kind: KindBrowserEngine, Name: engine, Width: vp.Width, Height: vp.Height}, true
}
