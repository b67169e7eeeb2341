// Package pathutil canonicalizes the relative paths layerfab stores in
// snapshots and archives, and detects the case-insensitive collisions the
// rest of the engine must reject. It is pure: given the same input it
// produces the same output regardless of host operating system.
package pathutil

import (
	"strings"

	"github.com/layerfab/layerfab/errdef"
)

// Normalize canonicalizes path to forward-slash form: backslashes become
// slashes, runs of slashes collapse to one, and a leading or trailing
// slash is stripped. An empty or whitespace-only input yields "", which
// denotes the working root and is never stored as an entry.
//
// Normalize rejects (with errdef.ErrInvalidPath) any segment equal to "."
// or "..", and any path containing a NUL byte.
func Normalize(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	if strings.IndexByte(path, 0) >= 0 {
		return "", errdef.ErrInvalidPath
	}

	slashed := strings.ReplaceAll(path, `\`, "/")

	segments := strings.Split(slashed, "/")
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if seg == "." || seg == ".." {
			return "", errdef.ErrInvalidPath
		}
		kept = append(kept, seg)
	}

	return strings.Join(kept, "/"), nil
}

// FoldKey returns the ASCII case-insensitive comparison key for path:
// path with 'A'-'Z' mapped to 'a'-'z'. Two normalized paths collide iff
// their fold keys are equal.
func FoldKey(path string) string {
	b := []byte(path)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c - 'A' + 'a'
		}
	}
	return string(b)
}

// Collides reports whether path, once normalized, case-insensitively
// matches any element of existing (each assumed already normalized). On
// a match it also returns the conflicting element.
func Collides(path string, existing []string) (conflict string, ok bool) {
	normalized, err := Normalize(path)
	if err != nil {
		return "", false
	}
	key := FoldKey(normalized)
	for _, other := range existing {
		if FoldKey(other) == key {
			return other, true
		}
	}
	return "", false
}

// Set tracks normalized paths and detects case-insensitive duplicates in
// O(1) per insertion, used where Collides' O(n) scan would be wasteful
// (archive entry dedup, snapshot construction).
type Set struct {
	byFold map[string]string // fold key -> first-seen original path
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{byFold: make(map[string]string)}
}

// Add records path in the set. If a case-insensitive duplicate is already
// present, Add reports it via (conflict, false) and does not overwrite it.
func (s *Set) Add(path string) (conflict string, ok bool) {
	key := FoldKey(path)
	if existing, found := s.byFold[key]; found {
		return existing, false
	}
	s.byFold[key] = path
	return "", true
}

// Has reports whether path case-insensitively matches an entry already in
// the set.
func (s *Set) Has(path string) bool {
	_, found := s.byFold[FoldKey(path)]
	return found
}

// Len returns the number of distinct entries in the set.
func (s *Set) Len() int {
	return len(s.byFold)
}
