// Package snapshot captures directory metadata and computes the diff
// between two captures. A [Snapshot] is a logical set of root-relative,
// normalized paths mapped to [Entry] metadata. A Snapshot does not reject
// or merge two paths that differ only in ASCII letter case; such a pair
// is rejected later, by the archive writer's duplicate-path check.
package snapshot

import (
	"time"

	"github.com/layerfab/layerfab/internal/pathutil"
)

// Kind distinguishes a file entry from a directory entry.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// Entry is the metadata layerfab attaches to a single snapshot path.
type Entry struct {
	Kind Kind

	// Size is the file's byte length. Always 0 for directories.
	Size int64

	// ModTime is the file's last-write time. Zero for directories.
	ModTime time.Time

	// Digest is a hex-encoded content digest for files, empty for
	// directories. See [Digester].
	Digest string
}

// modified reports whether e differs from baseline under the §3
// file-modified rule: (size, last_write_time, content_digest) for files,
// kind alone for directories.
func (e Entry) modified(baseline Entry) bool {
	if e.Kind != baseline.Kind {
		return true
	}
	if e.Kind == KindDirectory {
		// A directory is "modified" only if its presence/kind changes;
		// mtime alone never counts (§3).
		return false
	}
	return e.Size != baseline.Size || !e.ModTime.Equal(baseline.ModTime) || e.Digest != baseline.Digest
}

// Snapshot is a logical mapping from normalized relative path to [Entry].
// Iteration order is unspecified, including the order [Snapshot.Paths]
// returns.
type Snapshot struct {
	entries map[string]Entry // normalized path -> metadata, every casing kept
	fold    *pathutil.Set
}

// New returns an empty Snapshot.
func New() *Snapshot {
	return &Snapshot{
		entries: make(map[string]Entry),
		fold:    pathutil.NewSet(),
	}
}

// set inserts or overwrites path. The caller is responsible for having
// already normalized path. Note that on a case-sensitive host a walked
// directory can genuinely contain both "Foo" and "foo" as distinct
// entries; set does not merge or reject that case — fold only records
// the first-seen casing, while entries keeps whatever keys it is given,
// case differences included.
// A Snapshot alone does not enforce invariant 3; rejecting such a
// collision is deferred to the Archive Writer's up-front duplicate
// check (errdef.ErrDuplicatePath).
func (s *Snapshot) set(path string, e Entry) {
	if !s.fold.Has(path) {
		s.fold.Add(path)
	}
	s.entries[path] = e
}

// Get returns the metadata stored at path and whether it was present.
func (s *Snapshot) Get(path string) (Entry, bool) {
	e, ok := s.entries[path]
	return e, ok
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.entries)
}

// Paths returns every path stored in the snapshot, in unspecified order.
func (s *Snapshot) Paths() []string {
	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	return paths
}
