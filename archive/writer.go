// Package archive streams a list of filesystem changes into a
// POSIX-extended ("pax") tar archive with Docker-compatible whiteout
// markers for deletions, and replays such an archive back onto a target
// directory.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/layerfab/layerfab/errdef"
	"github.com/layerfab/layerfab/internal/pathutil"
	"github.com/layerfab/layerfab/snapshot"
)

// neutralModTime is written into every tar header in place of the
// entry's real timestamp. Readers must ignore header timestamps (§4.3);
// a fixed value keeps archives byte-for-byte comparable across runs.
var neutralModTime = time.Unix(0, 0).UTC()

const (
	neutralFileMode = 0o644
	neutralDirMode  = 0o755
)

// DuplicatePathError is returned by CreateArchive when two changes
// collide under case-insensitive path comparison. It wraps
// [errdef.ErrDuplicatePath].
type DuplicatePathError struct {
	PathA, PathB string
}

func (e *DuplicatePathError) Error() string {
	return fmt.Sprintf("duplicate path: %q and %q collide case-insensitively", e.PathA, e.PathB)
}

func (e *DuplicatePathError) Unwrap() error {
	return errdef.ErrDuplicatePath
}

// CreateArchive streams changes into w as a pax-format tar archive.
// File bodies are read from baseDir on fsys using each change's path.
//
// Before writing anything, CreateArchive verifies that no two changes
// collide under case-insensitive path comparison; if they do, it fails
// with a *DuplicatePathError naming both conflicting paths and writes
// nothing to w. This check is always performed up front so a failure
// never leaves a partial archive for a caller to mistakenly persist.
func CreateArchive(ctx context.Context, fsys afero.Fs, baseDir string, changes []snapshot.Change, w io.Writer) error {
	seen := pathutil.NewSet()
	for _, c := range changes {
		if conflict, ok := seen.Add(c.Path); !ok {
			return &DuplicatePathError{PathA: conflict, PathB: c.Path}
		}
	}

	tw := tar.NewWriter(w)

	// opaqueDirs tracks the paths already covered by an opaque whiteout
	// emitted earlier in this archive. DetectChanges sorts the deleted
	// group lexicographically, so a deleted directory's opaque whiteout
	// is always written before any deleted descendant's — a descendant
	// found here is therefore always redundant: the opaque whiteout
	// already tells the reader to remove the whole subtree.
	var opaqueDirs []string

	for _, c := range changes {
		if err := ctx.Err(); err != nil {
			return errdef.ErrCancelled
		}

		var err error
		switch c.Kind {
		case snapshot.ChangeAdded, snapshot.ChangeModified:
			if c.EntryKind == snapshot.KindDirectory {
				err = writeDirEntry(tw, c.Path)
			} else {
				err = writeFileEntry(ctx, tw, fsys, baseDir, c.Path)
			}
		case snapshot.ChangeDeleted:
			if underAnyOf(c.Path, opaqueDirs) {
				continue
			}
			err = writeWhiteoutEntry(tw, c)
			if err == nil && c.EntryKind == snapshot.KindDirectory {
				opaqueDirs = append(opaqueDirs, c.Path)
			}
		}
		if err != nil {
			return err
		}
	}

	return tw.Close()
}

// underAnyOf reports whether p is dir itself or lies below dir, for
// some dir in dirs.
func underAnyOf(p string, dirs []string) bool {
	for _, dir := range dirs {
		if p == dir || strings.HasPrefix(p, dir+"/") {
			return true
		}
	}
	return false
}

func writeDirEntry(tw *tar.Writer, entryPath string) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeDir,
		Name:     entryPath,
		Mode:     neutralDirMode,
		ModTime:  neutralModTime,
		Format:   tar.FormatPAX,
	}
	return tw.WriteHeader(hdr)
}

func writeFileEntry(ctx context.Context, tw *tar.Writer, fsys afero.Fs, baseDir, entryPath string) error {
	fullPath := path.Join(baseDir, entryPath)

	f, err := fsys.Open(fullPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     entryPath,
		Size:     info.Size(),
		Mode:     neutralFileMode,
		ModTime:  neutralModTime,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}

	if _, err := io.Copy(tw, &cancellableReader{ctx: ctx, r: f}); err != nil {
		if ctx.Err() != nil {
			return errdef.ErrCancelled
		}
		return err
	}
	return nil
}

// writeWhiteoutEntry emits the whiteout marker for a deleted change.
// Per the §9 design note, whether a deletion is opaque (a whole
// subtree) or a sibling whiteout (one entry) is decided from the
// authoritative baseline EntryKind carried on the Change, not from any
// path heuristic. Callers must not invoke this for a change already
// covered by an earlier opaque whiteout — see underAnyOf in
// CreateArchive.
func writeWhiteoutEntry(tw *tar.Writer, c snapshot.Change) error {
	var name string
	if c.EntryKind == snapshot.KindDirectory {
		name = opaqueWhiteoutName(c.Path)
	} else {
		name = whiteoutName(c.Path)
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     0,
		Mode:     neutralFileMode,
		ModTime:  neutralModTime,
		Format:   tar.FormatPAX,
	}
	return tw.WriteHeader(hdr)
}

// cancellableReader wraps an io.Reader so a long Copy notices context
// cancellation between reads instead of only at entry boundaries.
type cancellableReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *cancellableReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
