package target

import (
	"fmt"
	"strings"
)

// UnknownTargetError records a requested name that is not in the supported set.
// It is reported as a warning; enumeration never fails because of it.
type UnknownTargetError struct {
	Kind Kind
	Name string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown %s: %s", e.Kind, e.Name)
}

// Enumerate resolves a comma-separated list (or the literal "all") into an
// ordered, deduplicated list of targets. Unknown names are returned as
// warnings and excluded. An empty result is valid; callers decide whether it
// is a configuration error.
func Enumerate(kind Kind, spec string) ([]Target, []*UnknownTargetError) {
	names := splitList(spec)
	for _, name := range names {
		if strings.EqualFold(name, "all") {
			return All(kind), nil
		}
	}

	var (
		targets  []Target
		warnings []*UnknownTargetError
		seen     = make(map[string]bool)
	)
	for _, name := range names {
		var (
			t  Target
			ok bool
		)
		switch kind {
		case KindViewport:
			t, ok = NewViewport(name)
		case KindBrowserEngine:
			t, ok = NewEngine(name)
		}
		if !ok {
			warnings = append(warnings, &UnknownTargetError{Kind: kind, Name: name})
			continue
		}
		if seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		targets = append(targets, t)
	}
	return targets, warnings
}

// All returns every supported target of the given kind in documented order.
func All(kind Kind) []Target {
	var out []Target
	switch kind {
	case KindViewport:
		for _, vp := range Viewports {
			t, _ := NewViewport(vp.Name)
			out = append(out, t)
		}
	case KindBrowserEngine:
		for _, e := range Engines {
			t, _ := NewEngine(e)
			out = append(out, t)
		}
	}
	return out
}

func splitList(spec string) []string {
	parts := strings.Split(spec, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
