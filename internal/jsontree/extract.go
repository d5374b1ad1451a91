// Package jsontree walks decoded JSON values and collects everything stored
// under a given key name, at any depth.
package jsontree

import (
	"iter"
	"maps"
	"slices"
)

// Option configures a traversal.
type Option func(*walker)

// WithExclude prevents recursion into values whose key matches one of the
// given names. A key that equals the target key is yielded regardless; the
// match check runs before the exclusion check, so exclusion only prunes
// non-matching subtrees.
func WithExclude(keys ...string) Option {
	return func(w *walker) {
		if w.exclude == nil {
			w.exclude = make(map[string]struct{}, len(keys))
		}
		for _, k := range keys {
			w.exclude[k] = struct{}{}
		}
	}
}

type walker struct {
	key     string
	exclude map[string]struct{}
}

// Extract returns a lazy sequence of every value stored under key anywhere in
// obj, which is expected to be a decoded JSON tree (map[string]any, []any,
// scalars). Mappings are visited depth-first in sorted key order, sequences in
// element order. A matched value is yielded as-is and never descended into, so
// occurrences of key nested below a match are not reported separately.
// Scalars yield nothing. Each call starts a fresh traversal; the sequence is
// single-use.
func Extract(obj any, key string, opts ...Option) iter.Seq[any] {
	w := &walker{key: key}
	for _, opt := range opts {
		opt(w)
	}
	return func(yield func(any) bool) {
		w.walk(obj, yield)
	}
}

// First returns the first value stored under key, in traversal order, and
// whether one was found.
func First(obj any, key string, opts ...Option) (any, bool) {
	for v := range Extract(obj, key, opts...) {
		return v, true
	}
	return nil, false
}

func (w *walker) walk(obj any, yield func(any) bool) bool {
	switch node := obj.(type) {
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(node)) {
			v := node[k]
			if k == w.key {
				if !yield(v) {
					return false
				}
				continue
			}
			if _, skip := w.exclude[k]; skip {
				continue
			}
			switch v.(type) {
			case map[string]any, []any:
				if !w.walk(v, yield) {
					return false
				}
			}
		}
	case []any:
		for _, elem := range node {
			if !w.walk(elem, yield) {
				return false
			}
		}
	}
	return true
}
