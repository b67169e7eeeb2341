package snapshot

import (
	"testing"
	"time"
)

func TestDetectChangesAddedModifiedDeleted(t *testing.T) {
	before := New()
	before.set("dir", Entry{Kind: KindDirectory})
	before.set("dir/keep.txt", Entry{Kind: KindFile, Size: 1, Digest: "a"})
	before.set("dir/change.txt", Entry{Kind: KindFile, Size: 1, Digest: "a"})
	before.set("gone.txt", Entry{Kind: KindFile, Size: 1, Digest: "a"})

	after := New()
	after.set("dir", Entry{Kind: KindDirectory})
	after.set("dir/keep.txt", Entry{Kind: KindFile, Size: 1, Digest: "a"})
	after.set("dir/change.txt", Entry{Kind: KindFile, Size: 2, Digest: "b"})
	after.set("dir/new.txt", Entry{Kind: KindFile, Size: 3, Digest: "c"})

	changes := DetectChanges(before, after)

	byPath := make(map[string]Change)
	for _, c := range changes {
		byPath[c.Path] = c
	}

	if c, ok := byPath["dir/new.txt"]; !ok || c.Kind != ChangeAdded {
		t.Errorf("dir/new.txt should be Added, got %+v ok=%v", c, ok)
	}
	if c, ok := byPath["dir/change.txt"]; !ok || c.Kind != ChangeModified {
		t.Errorf("dir/change.txt should be Modified, got %+v ok=%v", c, ok)
	}
	if c, ok := byPath["gone.txt"]; !ok || c.Kind != ChangeDeleted {
		t.Errorf("gone.txt should be Deleted, got %+v ok=%v", c, ok)
	}
	if _, ok := byPath["dir/keep.txt"]; ok {
		t.Errorf("dir/keep.txt is unchanged and should not appear")
	}
	if _, ok := byPath["dir"]; ok {
		t.Errorf("dir is unchanged and should not appear")
	}
}

func TestDetectChangesOrderingAddedBeforeModifiedBeforeDeleted(t *testing.T) {
	before := New()
	before.set("z-modified", Entry{Kind: KindFile, Size: 1})
	before.set("a-deleted", Entry{Kind: KindFile, Size: 1})

	after := New()
	after.set("z-modified", Entry{Kind: KindFile, Size: 2})
	after.set("b-added", Entry{Kind: KindFile, Size: 1})

	changes := DetectChanges(before, after)
	if len(changes) != 3 {
		t.Fatalf("len(changes) = %d, want 3", len(changes))
	}
	if changes[0].Kind != ChangeAdded {
		t.Errorf("changes[0].Kind = %v, want Added", changes[0].Kind)
	}
	if changes[1].Kind != ChangeModified {
		t.Errorf("changes[1].Kind = %v, want Modified", changes[1].Kind)
	}
	if changes[2].Kind != ChangeDeleted {
		t.Errorf("changes[2].Kind = %v, want Deleted", changes[2].Kind)
	}
}

func TestDetectChangesParentBeforeChildWithinGroup(t *testing.T) {
	before := New()
	after := New()
	after.set("a", Entry{Kind: KindDirectory})
	after.set("a/b", Entry{Kind: KindDirectory})
	after.set("a/b/c.txt", Entry{Kind: KindFile})

	changes := DetectChanges(before, after)
	if len(changes) != 3 {
		t.Fatalf("len(changes) = %d, want 3", len(changes))
	}
	for i := 1; i < len(changes); i++ {
		if changes[i-1].Path >= changes[i].Path {
			t.Errorf("changes not sorted: %q before %q", changes[i-1].Path, changes[i].Path)
		}
	}
	if changes[0].Path != "a" || changes[1].Path != "a/b" || changes[2].Path != "a/b/c.txt" {
		t.Errorf("unexpected order: %v", changes)
	}
}

func TestDetectChangesNoDiff(t *testing.T) {
	before := New()
	before.set("same.txt", Entry{Kind: KindFile, Size: 1, ModTime: time.Unix(1, 0), Digest: "a"})
	after := New()
	after.set("same.txt", Entry{Kind: KindFile, Size: 1, ModTime: time.Unix(1, 0), Digest: "a"})

	if changes := DetectChanges(before, after); len(changes) != 0 {
		t.Errorf("expected no changes, got %v", changes)
	}
}
