package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/layerfab/layerfab/errdef"
	"github.com/layerfab/layerfab/internal/pathutil"
)

const osCreateWriteTrunc = os.O_CREATE | os.O_WRONLY | os.O_TRUNC

// ApplyArchive streams source's tar entries onto targetDir on fsys, in
// order, honoring whiteout markers as deletions. It never buffers an
// entire file body in memory — each entry's content streams straight
// from the tar reader into the destination file.
//
// If source ends mid-entry, ApplyArchive fails with
// [errdef.ErrCorruptArchive]; whatever entries were already applied
// remain on disk (see the package's §5 cancellation note — ApplyArchive
// makes the same no-rollback guarantee on error as on cancellation).
func ApplyArchive(ctx context.Context, fsys afero.Fs, targetDir string, source io.Reader) error {
	tr := tar.NewReader(source)

	for {
		if err := ctx.Err(); err != nil {
			return errdef.ErrCancelled
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", corruptOrWrap(err))
		}

		if err := applyEntry(ctx, fsys, targetDir, hdr, tr); err != nil {
			return err
		}
	}
}

func applyEntry(ctx context.Context, fsys afero.Fs, targetDir string, hdr *tar.Header, tr *tar.Reader) error {
	if strings.HasPrefix(hdr.Name, "/") {
		return fmt.Errorf("tar entry %q: absolute names are not allowed: %w", hdr.Name, errdef.ErrCorruptArchive)
	}

	entryPath, err := pathutil.Normalize(hdr.Name)
	if err != nil {
		return fmt.Errorf("tar entry %q: %w", hdr.Name, errdef.ErrCorruptArchive)
	}
	if entryPath == "" {
		return nil
	}

	switch {
	case isOpaqueWhiteout(entryPath):
		target := path.Join(targetDir, opaqueWhiteoutTarget(entryPath))
		return fsys.RemoveAll(target)

	case isWhiteout(entryPath):
		target := path.Join(targetDir, whiteoutTarget(entryPath))
		return fsys.RemoveAll(target)

	case hdr.Typeflag == tar.TypeDir:
		return fsys.MkdirAll(path.Join(targetDir, entryPath), neutralDirMode)

	case hdr.Typeflag == tar.TypeReg:
		return writeRegularFile(ctx, fsys, targetDir, entryPath, tr)

	default:
		return nil
	}
}

func writeRegularFile(ctx context.Context, fsys afero.Fs, targetDir, entryPath string, body io.Reader) error {
	fullPath := path.Join(targetDir, entryPath)
	dir, _ := splitPath(entryPath)
	if err := fsys.MkdirAll(path.Join(targetDir, dir), neutralDirMode); err != nil {
		return err
	}

	f, err := fsys.OpenFile(fullPath, osCreateWriteTrunc, neutralFileMode)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, &cancellableReader{ctx: ctx, r: body}); err != nil {
		if ctx.Err() != nil {
			return errdef.ErrCancelled
		}
		return fmt.Errorf("writing %q: %w", entryPath, corruptOrWrap(err))
	}
	return nil
}

// corruptOrWrap maps a truncated/malformed tar stream to
// [errdef.ErrCorruptArchive] while leaving other errors (I/O failures
// on the destination, context cancellation) untouched.
func corruptOrWrap(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) || errors.Is(err, tar.ErrHeader) {
		return errdef.ErrCorruptArchive
	}
	return err
}
