package snapshot

import (
	"context"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/layerfab/layerfab/errdef"
	"github.com/layerfab/layerfab/internal/pathutil"
)

// CreateSnapshot walks root on fsys and returns a Snapshot of everything
// found below it. Every directory below root becomes a directory entry;
// every regular file is opened and digested with digest (nil selects the
// default BLAKE3-based digester).
//
// Entries that cannot be statted — permission denied, removed mid-walk —
// are skipped rather than failing the whole walk, per §4.2: they simply
// do not appear in the result. A regular file that can be statted but
// not opened or read still appears, with a fallback digest (see
// digestFile). Symbolic links and any other non-regular,
// non-directory entries are skipped entirely. If root does not exist,
// CreateSnapshot returns an empty Snapshot.
func CreateSnapshot(ctx context.Context, fsys afero.Fs, root string, digest Digester) (*Snapshot, error) {
	if digest == nil {
		digest = blake3Digest
	}

	snap := New()

	if _, err := fsys.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return snap, nil
		}
		return nil, err
	}

	walkErr := afero.Walk(fsys, root, func(fullPath string, info fs.FileInfo, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// An individual entry failed to stat/read (permission
			// denied, disappeared mid-walk): omit it and keep going.
			return nil
		}
		if fullPath == root {
			return nil
		}

		rel := relativeTo(root, fullPath)
		normalized, normErr := pathutil.Normalize(rel)
		if normErr != nil || normalized == "" {
			return nil
		}

		mode := info.Mode()
		switch {
		case mode&os.ModeSymlink != 0:
			return nil
		case info.IsDir():
			snap.set(normalized, Entry{Kind: KindDirectory})
			return nil
		case mode.IsRegular():
			snap.set(normalized, digestFile(fsys, fullPath, info, digest))
			return nil
		default:
			return nil
		}
	})
	if walkErr != nil {
		if walkErr == ctx.Err() {
			return nil, errdef.ErrCancelled
		}
		return nil, walkErr
	}

	return snap, nil
}

// digestFile hashes the file at fullPath. Per §4.2's digest-failure
// policy, a file that cannot be opened or fully read for hashing still
// gets an entry — just one keyed by a fallback digest over its size and
// mtime rather than its content. The walk stays total.
func digestFile(fsys afero.Fs, fullPath string, info fs.FileInfo, digest Digester) Entry {
	entry := Entry{
		Kind:    KindFile,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}

	f, err := fsys.Open(fullPath)
	if err != nil {
		entry.Digest = fallbackDigest(entry.Size, entry.ModTime)
		return entry
	}
	defer f.Close()

	sum, err := digest(f)
	if err != nil {
		entry.Digest = fallbackDigest(entry.Size, entry.ModTime)
		return entry
	}

	entry.Digest = sum
	return entry
}

// relativeTo strips root (and a following separator) from fullPath,
// returning a forward-slash relative path.
func relativeTo(root, fullPath string) string {
	rel := strings.TrimPrefix(path.Clean(fullPath), path.Clean(root))
	return strings.TrimPrefix(rel, "/")
}
