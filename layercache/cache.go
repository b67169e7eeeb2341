// Package layercache is a content-addressed, durable store of layer
// archives keyed by an opaque caller-supplied input hash. Writes are
// made visible atomically via temp-file-then-rename, matching
// github.com/ngicks/go-fsys-helper/fsutil's SafeWrite pattern; readers
// only ever observe a complete archive or none at all.
package layercache

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/layerfab/layerfab/errdef"
)

// Cache is a directory of archive files laid out as
// <root>/<first 2 hex chars of hash>/<hash>.tar. The two-character
// shard keeps any one directory's fan-out bounded.
type Cache struct {
	fsys afero.Fs
	root string
}

// Stats summarizes the contents of a Cache.
type Stats struct {
	ArchiveCount int
	TotalBytes   int64
}

// New returns a Cache rooted at root on fsys. root is created on first
// write if it does not already exist.
func New(fsys afero.Fs, root string) *Cache {
	return &Cache{fsys: fsys, root: root}
}

func (c *Cache) shardDir(hash string) string {
	shard := hash
	if len(shard) > 2 {
		shard = hash[:2]
	}
	return path.Join(c.root, shard)
}

func (c *Cache) archivePath(hash string) string {
	return path.Join(c.shardDir(hash), hash+".tar")
}

// Exists reports whether an archive is stored under hash.
func (c *Cache) Exists(ctx context.Context, hash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errdef.ErrCancelled
	}
	_, err := c.fsys.Stat(c.archivePath(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking cache entry %q: %w", hash, errdef.ErrCacheIO)
}

// Open returns a streaming reader over the archive stored under hash.
// ok is false, with a nil reader and nil error, if no archive is
// stored under hash.
func (c *Cache) Open(ctx context.Context, hash string) (r io.ReadCloser, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, errdef.ErrCancelled
	}
	f, err := c.fsys.Open(c.archivePath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("opening cache entry %q: %w", hash, errdef.ErrCacheIO)
	}
	return f, true, nil
}

// Store streams r into the cache under hash. The write lands in a
// sibling temp file and is made visible by an atomic rename once fully
// written, so a concurrent Store for the same hash, or a concurrent
// Open, never observes a partial archive: the last rename to complete
// wins, and every reader sees either the previous complete archive, the
// new complete archive, or nothing.
//
// The temp file carries a random suffix (via uuid) rather than the
// literal "<hash>.tar.tmp" §4.5 names as an example, precisely so two
// concurrent Store calls for the same hash don't tear each other's
// write — see DESIGN.md's note on this deviation. On any error before
// the rename, the temp file is removed.
func (c *Cache) Store(ctx context.Context, hash string, r io.Reader) (archiveSize int64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, errdef.ErrCancelled
	}

	shardDir := c.shardDir(hash)
	if err := c.fsys.MkdirAll(shardDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating cache shard %q: %w", shardDir, errdef.ErrCacheIO)
	}

	tmpPath := path.Join(shardDir, hash+".tar.tmp."+uuid.New().String())

	tmp, err := c.fsys.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("creating cache temp file: %w", errdef.ErrCacheIO)
	}

	cleanupTmp := func() {
		_ = tmp.Close()
		_ = c.fsys.Remove(tmpPath)
	}

	n, copyErr := io.Copy(tmp, &cancellableReader{ctx: ctx, r: r})
	if copyErr != nil {
		cleanupTmp()
		if copyErr == ctx.Err() {
			return 0, errdef.ErrCancelled
		}
		return 0, fmt.Errorf("writing cache temp file: %w", errdef.ErrCacheIO)
	}

	if err := tmp.Close(); err != nil {
		_ = c.fsys.Remove(tmpPath)
		return 0, fmt.Errorf("closing cache temp file: %w", errdef.ErrCacheIO)
	}

	if err := c.fsys.Rename(tmpPath, c.archivePath(hash)); err != nil {
		_ = c.fsys.Remove(tmpPath)
		return 0, fmt.Errorf("finalizing cache entry %q: %w", hash, errdef.ErrCacheIO)
	}

	return n, nil
}

// Stats walks the cache directory and reports the number of archives
// stored and their total size.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, errdef.ErrCancelled
	}

	var stats Stats
	shards, err := afero.ReadDir(c.fsys, c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{}, nil
		}
		return Stats{}, fmt.Errorf("listing cache root: %w", errdef.ErrCacheIO)
	}

	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		entries, err := afero.ReadDir(c.fsys, path.Join(c.root, shard.Name()))
		if err != nil {
			return Stats{}, fmt.Errorf("listing cache shard %q: %w", shard.Name(), errdef.ErrCacheIO)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tar") {
				// Skip in-flight "*.tar.tmp.<uuid>" temp files from a
				// concurrent Store; only finalized archives count.
				continue
			}
			stats.ArchiveCount++
			stats.TotalBytes += entry.Size()
		}
	}

	return stats, nil
}

// cancellableReader wraps an io.Reader so a long copy notices context
// cancellation between reads instead of only at the end.
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
