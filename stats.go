package layerfab

import (
	"time"

	"github.com/layerfab/layerfab/snapshot"
)

// Stats counts the filesystem changes a committed layer step produced.
type Stats struct {
	FilesAdded         int
	FilesModified      int
	FilesDeleted       int
	DirectoriesAdded   int
	DirectoriesDeleted int
}

// LayerDescriptor is returned to the caller once a layer step commits.
type LayerDescriptor struct {
	InputHash        string
	CreatedAt        time.Time
	ArchiveSizeBytes int64
	Stats            Stats
}

// computeStats tallies a change list into Stats. A directory whose
// metadata alone changed is never reported by DetectChanges. A path
// whose kind changed between file and directory is reported as
// Modified and is counted in FilesModified, whatever its new kind.
func computeStats(changes []snapshot.Change) Stats {
	var s Stats
	for _, c := range changes {
		switch {
		case c.Kind == snapshot.ChangeAdded && c.EntryKind == snapshot.KindDirectory:
			s.DirectoriesAdded++
		case c.Kind == snapshot.ChangeAdded:
			s.FilesAdded++
		case c.Kind == snapshot.ChangeModified:
			s.FilesModified++
		case c.Kind == snapshot.ChangeDeleted && c.EntryKind == snapshot.KindDirectory:
			s.DirectoriesDeleted++
		case c.Kind == snapshot.ChangeDeleted:
			s.FilesDeleted++
		}
	}
	return s
}
