package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestCreateSnapshotEmptyRoot(t *testing.T) {
	fsys := afero.NewMemMapFs()
	snap, err := CreateSnapshot(context.Background(), fsys, "/work", nil)
	if err != nil {
		t.Fatalf("CreateSnapshot on missing root: %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("Len() = %d, want 0", snap.Len())
	}
}

func TestCreateSnapshotFilesAndDirs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mustWrite(t, fsys, "/work/a.txt", []byte("hello"))
	mustWrite(t, fsys, "/work/sub/b.txt", []byte("world"))

	snap, err := CreateSnapshot(context.Background(), fsys, "/work", nil)
	if err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	if _, ok := snap.Get("a.txt"); !ok {
		t.Errorf("missing entry for a.txt")
	}
	if e, ok := snap.Get("sub"); !ok || e.Kind != KindDirectory {
		t.Errorf("missing directory entry for sub")
	}
	if _, ok := snap.Get("sub/b.txt"); !ok {
		t.Errorf("missing entry for sub/b.txt")
	}
	if snap.Len() != 3 {
		t.Errorf("Len() = %d, want 3", snap.Len())
	}
}

func TestCreateSnapshotCancellation(t *testing.T) {
	fsys := afero.NewMemMapFs()
	mustWrite(t, fsys, "/work/a.txt", []byte("hello"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := CreateSnapshot(ctx, fsys, "/work", nil); err == nil {
		t.Errorf("expected an error from a pre-cancelled context")
	}
}

func mustWrite(t *testing.T, fsys afero.Fs, name string, data []byte) {
	t.Helper()
	if err := fsys.MkdirAll(parentOf(name), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := afero.WriteFile(fsys, name, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func parentOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[:i]
		}
	}
	return "/"
}

func TestEntryModifiedDirectoryComparesOnlyKind(t *testing.T) {
	dir := Entry{Kind: KindDirectory}
	if dir.modified(Entry{Kind: KindDirectory}) {
		t.Errorf("two directory entries should never be 'modified'")
	}
	if !dir.modified(Entry{Kind: KindFile}) {
		t.Errorf("a kind change should always be 'modified'")
	}
}

func TestEntryModifiedFileComparesSizeTimeDigest(t *testing.T) {
	base := Entry{Kind: KindFile, Size: 10, ModTime: time.Unix(100, 0), Digest: "aaa"}
	same := base
	if same.modified(base) {
		t.Errorf("identical entries should not be 'modified'")
	}
	bigger := base
	bigger.Size = 11
	if !bigger.modified(base) {
		t.Errorf("a size change should be 'modified'")
	}
}
