package snapshot

import (
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/zeebo/blake3"
)

// Digester computes a collision-resistant digest of the bytes read from r.
// The representation is an implementation detail: callers compare digests
// for equality only, never parse them, and the value never appears in an
// archive on disk.
type Digester func(r io.Reader) (string, error)

// blake3Digest is the default [Digester]. BLAKE3 is used rather than a
// slower general-purpose hash because CreateSnapshot streams through
// every regular file in the tree on every walk.
func blake3Digest(r io.Reader) (string, error) {
	h := blake3.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// fallbackDigest implements the §4.2 digest-failure policy: when a file
// cannot be opened for hashing, the walk does not fail outright — it
// substitutes a digest computed over "{size}:{last_write_time}" so the
// entry is still deterministic and distinguishable from a file that
// genuinely changed size or mtime.
func fallbackDigest(size int64, modTime time.Time) string {
	h := blake3.New()
	fmt.Fprintf(h, "%d:%d", size, modTime.UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}
