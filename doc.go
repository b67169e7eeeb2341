/*
Package layerfab implements a layered filesystem engine that
materializes a working directory incrementally through a sequence of
content-addressed layers, each capturing the additions, modifications,
and deletions produced during one step of an external build-like
process.

# Overview

layerfab caches each layer as a streaming tar archive keyed by a
caller-supplied input hash. A later session presenting the same hash
reconstitutes the directory by replaying the cached archive instead of
re-running the step — the model OCI/Docker image layers use, reduced
to a reusable library.

# Key Features

  - Directory snapshotting and add/modify/delete diffing (package
    snapshot)
  - Streaming pax-tar archives with Docker-compatible whiteouts
    (package archive)
  - Content-addressed, atomically-written layer cache (package
    layercache)
  - The session/layer-step lifecycle tying the above together: lookup
    on cache hit, snapshot/diff/archive/store on cache miss

# Basic Usage

	session, err := layerfab.CreateSession(ctx, "/srv/build/work", "/srv/build/cache")
	if err != nil {
	    return err
	}
	defer session.Dispose()

	step, err := session.BeginLayer(ctx, inputHash)
	if err != nil {
	    return err
	}
	defer step.Dispose()

	if !step.IsFromCache() {
	    // run the external build step against session.WorkingDirectory()
	}

	descriptor, err := step.Commit(ctx)
	if err != nil {
	    return err
	}
*/
package layerfab
