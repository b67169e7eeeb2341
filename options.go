package layerfab

import (
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/layerfab/layerfab/snapshot"
)

// config collects the dependency-injection points CreateSession accepts,
// following the same functional-options shape the teacher library uses
// for WithWritableLayer/WithStatCache: everything has a production
// default, and tests override one knob at a time.
type config struct {
	fsys   afero.Fs
	digest snapshot.Digester
	clock  func() time.Time
	logger *slog.Logger
}

func defaultConfig() *config {
	return &config{
		fsys:   afero.NewOsFs(),
		digest: nil, // nil selects snapshot's default BLAKE3 digester
		clock:  time.Now,
		logger: slog.Default(),
	}
}

// Option configures a Session at CreateSession time.
type Option func(*config)

// WithFilesystem overrides the afero.Fs the session and its cache use
// for every I/O operation. Tests typically pass afero.NewMemMapFs().
func WithFilesystem(fsys afero.Fs) Option {
	return func(c *config) { c.fsys = fsys }
}

// WithDigester overrides how CreateSnapshot digests file contents. The
// digest algorithm is never part of the external contract (§3), so
// this exists purely to let tests substitute a cheap, deterministic
// stand-in for BLAKE3.
func WithDigester(digest snapshot.Digester) Option {
	return func(c *config) { c.digest = digest }
}

// WithClock overrides the source of LayerDescriptor.CreatedAt
// timestamps, so tests can assert on a fixed time.
func WithClock(clock func() time.Time) Option {
	return func(c *config) { c.clock = clock }
}

// WithLogger overrides the *slog.Logger the session and its layer steps
// log lifecycle transitions and cache hits/misses to.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}
