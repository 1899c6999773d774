package jsonvalue

import (
	"net/url"
	"strings"
)

// MaxDepth bounds how deep FirstURL descends into nested arrays and objects.
const MaxDepth = 32

// FirstURL walks v depth-first in document order and returns the first string
// that is an absolute http or https URL.
func FirstURL(v *Value) (string, bool) {
	w := walker{visited: make(map[*Value]struct{})}
	return w.walk(v, 0)
}

type walker struct {
	visited map[*Value]struct{}
}

func (w *walker) walk(v *Value, depth int) (string, bool) {
	if v == nil || depth > MaxDepth {
		return "", false
	}

	switch v.Kind {
	case String:
		if u, ok := HTTPURL(v.Str); ok {
			return u, true
		}
	case Array:
		if w.seen(v) {
			return "", false
		}
		for _, item := range v.Items {
			if u, ok := w.walk(item, depth+1); ok {
				return u, true
			}
		}
	case Object:
		if w.seen(v) {
			return "", false
		}
		for _, m := range v.Members {
			if u, ok := w.walk(m.Value, depth+1); ok {
				return u, true
			}
		}
	}

	return "", false
}

func (w *walker) seen(v *Value) bool {
	if _, ok := w.visited[v]; ok {
		return true
	}
	w.visited[v] = struct{}{}
	return false
}

// HTTPURL reports whether s parses as an absolute http(s) URL with a host.
func HTTPURL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	if !strings.EqualFold(u.Scheme, "http") && !strings.EqualFold(u.Scheme, "https") {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	return s, true
}
