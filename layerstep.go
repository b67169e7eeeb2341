package layerfab

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/layerfab/layerfab/archive"
	"github.com/layerfab/layerfab/errdef"
	"github.com/layerfab/layerfab/snapshot"
)

type cacheStatus uint8

const (
	cacheUnknown cacheStatus = iota
	cacheHit
	cacheMiss
)

type stepPhase uint8

const (
	phaseOpen stepPhase = iota
	phaseCommitted
	phaseCancelled
	phaseDisposed
)

// LayerStep is the transactional scope within which a single layer is
// produced (cache miss) or replayed (cache hit). At most one LayerStep
// is open per [Session] at a time.
type LayerStep struct {
	mu sync.Mutex

	session   *Session
	inputHash string

	baseline *snapshot.Snapshot
	status   cacheStatus
	phase    stepPhase

	// descriptor is set once, either at initialization (cache hit) or
	// at Commit (cache miss), and is what Commit returns on a hit —
	// see §9's note on not double-appending a hit's descriptor.
	descriptor LayerDescriptor
}

// BeginLayer opens a new layer step for inputHash. It fails with
// [errdef.ErrInvalidArgument] if inputHash is empty or whitespace,
// [errdef.ErrSessionDisposed] if the session is closed, and
// [errdef.ErrConcurrentStep] if another step is already open.
//
// Initialization takes the baseline snapshot before consulting the
// cache, so the baseline always reflects the working directory's true
// pre-step state — never a post-cache-apply state (§9's second design
// note) — then looks the hash up: on a hit, the cached archive is
// applied to the working directory and a zero-stats descriptor is
// appended to the session's applied list immediately; on a miss, the
// working directory is left untouched.
func (s *Session) BeginLayer(ctx context.Context, inputHash string) (*LayerStep, error) {
	if err := ctx.Err(); err != nil {
		return nil, errdef.ErrCancelled
	}
	if strings.TrimSpace(inputHash) == "" {
		return nil, fmt.Errorf("input hash is required: %w", errdef.ErrInvalidArgument)
	}

	step := &LayerStep{session: s, inputHash: inputHash, phase: phaseOpen, status: cacheUnknown}
	if err := s.setOpenStep(step); err != nil {
		return nil, err
	}

	baseline, err := snapshot.CreateSnapshot(ctx, s.fsys, s.workingDir, s.digest)
	if err != nil {
		s.clearOpenStep(step)
		return nil, fmt.Errorf("snapshotting working directory: %w", err)
	}
	step.baseline = baseline

	rc, hit, err := s.cache.Open(ctx, inputHash)
	if err != nil {
		s.clearOpenStep(step)
		return nil, fmt.Errorf("looking up layer cache for %q: %w", inputHash, err)
	}

	if !hit {
		step.status = cacheMiss
		s.logger.Debug("layerfab: layer step miss", "input_hash", inputHash)
		return step, nil
	}

	defer rc.Close()
	if err := archive.ApplyArchive(ctx, s.fsys, s.workingDir, rc); err != nil {
		// The archive reader may have already mutated the working
		// directory before failing; per the §7 propagation policy
		// that makes this terminal for the step rather than retryable.
		s.clearOpenStep(step)
		return nil, fmt.Errorf("applying cached layer %q: %w", inputHash, err)
	}

	step.status = cacheHit
	step.descriptor = LayerDescriptor{InputHash: inputHash, CreatedAt: s.clock()}
	s.appendDescriptor(step.descriptor)
	s.logger.Info("layerfab: layer step hit", "input_hash", inputHash)
	return step, nil
}

// IsFromCache reports whether this step's archive was replayed from the
// cache rather than produced by the caller's work.
func (step *LayerStep) IsFromCache() bool {
	step.mu.Lock()
	defer step.mu.Unlock()
	return step.status == cacheHit
}

// InputHash returns the hash this step was opened with.
func (step *LayerStep) InputHash() string {
	return step.inputHash
}

// Commit finalizes the step. On a cache hit it returns the descriptor
// already appended during initialization, unchanged. On a cache miss
// it diffs the working directory against the baseline: a zero-change
// diff commits without touching the cache; any other diff is streamed
// through the archive writer, stored in the cache under the step's
// input hash, and its statistics are returned.
//
// Commit fails with [errdef.ErrAlreadyFinalized] if the step is not
// open, or [errdef.ErrStepDisposed] if it was disposed. On error the
// step remains open so the caller may retry, unless the error is
// itself terminal for the step (archive/cache I/O failures are
// reported but do not flip the step's phase, since nothing on disk
// past the working directory has been mutated irrecoverably).
func (step *LayerStep) Commit(ctx context.Context) (LayerDescriptor, error) {
	step.mu.Lock()
	defer step.mu.Unlock()

	if step.phase == phaseDisposed {
		return LayerDescriptor{}, errdef.ErrStepDisposed
	}
	if step.phase != phaseOpen {
		return LayerDescriptor{}, errdef.ErrAlreadyFinalized
	}
	if err := ctx.Err(); err != nil {
		return LayerDescriptor{}, errdef.ErrCancelled
	}

	if step.status == cacheHit {
		step.phase = phaseCommitted
		step.session.clearOpenStep(step)
		step.session.logger.Info("layerfab: layer step committed (cache hit)", "input_hash", step.inputHash)
		return step.descriptor, nil
	}

	desc, err := step.commitMiss(ctx)
	if err != nil {
		return LayerDescriptor{}, err
	}
	return desc, nil
}

func (step *LayerStep) commitMiss(ctx context.Context) (LayerDescriptor, error) {
	s := step.session

	after, err := snapshot.CreateSnapshot(ctx, s.fsys, s.workingDir, s.digest)
	if err != nil {
		return LayerDescriptor{}, fmt.Errorf("snapshotting working directory: %w", err)
	}

	changes := snapshot.DetectChanges(step.baseline, after)

	var desc LayerDescriptor
	if len(changes) == 0 {
		desc = LayerDescriptor{InputHash: step.inputHash, CreatedAt: s.clock()}
	} else {
		var buf bytes.Buffer
		if err := archive.CreateArchive(ctx, s.fsys, s.workingDir, changes, &buf); err != nil {
			// Duplicate-path detection (or any other archive-writer
			// failure) never partially writes the cache; the step
			// stays open for the caller to retry or cancel.
			return LayerDescriptor{}, fmt.Errorf("building layer archive for %q: %w", step.inputHash, err)
		}

		size, err := s.cache.Store(ctx, step.inputHash, &buf)
		if err != nil {
			return LayerDescriptor{}, fmt.Errorf("storing layer archive for %q: %w", step.inputHash, err)
		}

		desc = LayerDescriptor{
			InputHash:        step.inputHash,
			CreatedAt:        s.clock(),
			ArchiveSizeBytes: size,
			Stats:            computeStats(changes),
		}
	}

	step.phase = phaseCommitted
	step.descriptor = desc
	s.appendDescriptor(desc)
	s.clearOpenStep(step)
	s.logger.Info("layerfab: layer step committed (cache miss)",
		"input_hash", step.inputHash, "changes", len(changes))
	return desc, nil
}

// Cancel abandons the step without writing anything to the cache. The
// working directory is left exactly as the caller's work left it — no
// rollback is performed; reconciling any in-progress changes is the
// caller's responsibility (§4.6).
//
// Cancel fails with [errdef.ErrStepDisposed] if the step was disposed,
// or [errdef.ErrAlreadyFinalized] if it is committed or already
// cancelled.
func (step *LayerStep) Cancel() error {
	step.mu.Lock()
	defer step.mu.Unlock()

	if step.phase == phaseDisposed {
		return errdef.ErrStepDisposed
	}
	if step.phase != phaseOpen {
		return errdef.ErrAlreadyFinalized
	}

	step.phase = phaseCancelled
	step.session.clearOpenStep(step)
	step.session.logger.Info("layerfab: layer step cancelled", "input_hash", step.inputHash)
	return nil
}

// Dispose releases the step. It is idempotent and safe to call from
// any phase: if the step is still open, Dispose behaves like Cancel
// (no rollback) before marking the step disposed.
func (step *LayerStep) Dispose() error {
	step.mu.Lock()
	defer step.mu.Unlock()

	if step.phase == phaseDisposed {
		return nil
	}
	if step.phase == phaseOpen {
		step.session.clearOpenStep(step)
	}
	step.phase = phaseDisposed
	return nil
}
