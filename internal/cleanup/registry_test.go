package cleanup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegistry_RemoveAllDeletesUnkeptFiles(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.txt")
	drop := filepath.Join(dir, "drop.txt")
	for _, p := range []string{keep, drop} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	r := NewRegistry()
	r.Track(keep)
	r.Track(drop)
	r.Keep(keep)

	if err := r.RemoveAll(); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("kept file removed: %v", err)
	}
	if _, err := os.Stat(drop); !os.IsNotExist(err) {
		t.Fatalf("dropped file survived: err=%v", err)
	}
}

func TestRegistry_RemoveAllToleratesMissingFile(t *testing.T) {
	r := NewRegistry()
	r.Track(filepath.Join(t.TempDir(), "never-existed.txt"))
	if err := r.RemoveAll(); err != nil {
		t.Fatalf("RemoveAll should tolerate already-missing files: %v", err)
	}
}

func TestRegistry_TrackedReflectsState(t *testing.T) {
	r := NewRegistry()
	r.Track("a")
	r.Track("b")
	r.Keep("a")
	tracked := r.Tracked()
	if len(tracked) != 1 || tracked[0] != "b" {
		t.Fatalf("Tracked() = %v, want [b]", tracked)
	}
}

func TestRegistry_PurgeDeletesEvenKeptFiles(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep.txt")
	drop := filepath.Join(dir, "drop.txt")
	for _, p := range []string{keep, drop} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	r := NewRegistry()
	r.Track(keep)
	r.Track(drop)
	r.Keep(keep)

	if err := r.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := os.Stat(keep); !os.IsNotExist(err) {
		t.Fatalf("kept file survived a purge: err=%v", err)
	}
	if _, err := os.Stat(drop); !os.IsNotExist(err) {
		t.Fatalf("dropped file survived a purge: err=%v", err)
	}
}
