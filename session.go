package layerfab

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/layerfab/layerfab/errdef"
	"github.com/layerfab/layerfab/layercache"
	"github.com/layerfab/layerfab/snapshot"
)

// Session owns a working directory for its lifetime. No other session
// may target the same working directory concurrently; layerfab has no
// way to enforce that across processes, so it is the caller's
// responsibility (§3, Ownership).
type Session struct {
	mu sync.Mutex

	fsys       afero.Fs
	workingDir string
	cacheDir   string
	cache      *layercache.Cache
	digest     snapshot.Digester
	clock      func() time.Time
	logger     *slog.Logger

	applied  []LayerDescriptor
	openStep *LayerStep
	disposed bool
}

// CreateSession creates a Session rooted at workingDir with a layer
// cache at cacheDir. workingDir is created if it does not already
// exist; if it exists and is non-empty, CreateSession fails with
// [errdef.ErrWorkingDirectoryNotEmpty]. cacheDir is created if absent.
func CreateSession(ctx context.Context, workingDir, cacheDir string, opts ...Option) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errdef.ErrCancelled
	}
	if strings.TrimSpace(workingDir) == "" || strings.TrimSpace(cacheDir) == "" {
		return nil, fmt.Errorf("working and cache directories are required: %w", errdef.ErrInvalidArgument)
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if err := ensureWorkingDir(cfg.fsys, workingDir); err != nil {
		return nil, err
	}
	if err := cfg.fsys.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %q: %w", cacheDir, err)
	}

	s := &Session{
		fsys:       cfg.fsys,
		workingDir: workingDir,
		cacheDir:   cacheDir,
		cache:      layercache.New(cfg.fsys, cacheDir),
		digest:     cfg.digest,
		clock:      cfg.clock,
		logger:     cfg.logger,
	}
	s.logger.Info("layerfab: session created", "working_dir", workingDir, "cache_dir", cacheDir)
	return s, nil
}

func ensureWorkingDir(fsys afero.Fs, workingDir string) error {
	info, err := fsys.Stat(workingDir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("working directory %q is not a directory: %w", workingDir, errdef.ErrInvalidArgument)
		}
		entries, err := afero.ReadDir(fsys, workingDir)
		if err != nil {
			return fmt.Errorf("reading working directory %q: %w", workingDir, err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("working directory %q: %w", workingDir, errdef.ErrWorkingDirectoryNotEmpty)
		}
		return nil
	case os.IsNotExist(err):
		if err := fsys.MkdirAll(workingDir, 0o755); err != nil {
			return fmt.Errorf("creating working directory %q: %w", workingDir, err)
		}
		return nil
	default:
		return fmt.Errorf("statting working directory %q: %w", workingDir, err)
	}
}

// WorkingDirectory returns the path the session owns.
func (s *Session) WorkingDirectory() string {
	return s.workingDir
}

// CacheDirectory returns the path of the session's layer cache.
func (s *Session) CacheDirectory() string {
	return s.cacheDir
}

// AppliedLayers returns the ordered list of layer descriptors applied
// in this session: one per successful step completion, in the order
// steps finished initialization (cache hits) or committed (cache
// misses) — invariant 1 of §8.
func (s *Session) AppliedLayers() []LayerDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LayerDescriptor, len(s.applied))
	copy(out, s.applied)
	return out
}

// Stats aggregates every descriptor in AppliedLayers into a single
// running total of the Stats counters: files added/modified/deleted and
// directories added/deleted across the whole session. It does not sum
// ArchiveSizeBytes. It mirrors the teacher's Cache.Stats shape, applied
// here to layer descriptors instead of archive files.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total Stats
	for _, d := range s.applied {
		total.FilesAdded += d.Stats.FilesAdded
		total.FilesModified += d.Stats.FilesModified
		total.FilesDeleted += d.Stats.FilesDeleted
		total.DirectoriesAdded += d.Stats.DirectoriesAdded
		total.DirectoriesDeleted += d.Stats.DirectoriesDeleted
	}
	return total
}

// Dispose marks the session closed. It is idempotent, does not delete
// the working directory (caller-owned), and does not touch the cache.
func (s *Session) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil
	}
	s.disposed = true
	s.logger.Info("layerfab: session disposed", "working_dir", s.workingDir)
	return nil
}

func (s *Session) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

func (s *Session) setOpenStep(step *LayerStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return errdef.ErrSessionDisposed
	}
	if s.openStep != nil {
		return errdef.ErrConcurrentStep
	}
	s.openStep = step
	return nil
}

func (s *Session) clearOpenStep(step *LayerStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openStep == step {
		s.openStep = nil
	}
}

func (s *Session) appendDescriptor(d LayerDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, d)
}
