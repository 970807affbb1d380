package job

import "testing"

func TestRegistry_CreateAndGet(t *testing.T) {
	r := NewRegistry()
	j := r.Create(Request{URL: "https://example.com/a.mp4"}, nil)

	got, ok := r.Get(j.ID())
	if !ok {
		t.Fatalf("expected job %s to be found", j.ID())
	}
	if got.Snapshot().Status != StatusPending {
		t.Fatalf("expected a freshly created job to be PENDING, got %s", got.Snapshot().Status)
	}
}

func TestRegistry_GetUnknownID(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Get("does-not-exist"); ok {
		t.Fatalf("expected lookup of an unknown id to fail")
	}
}

func TestRegistry_DeleteRemovesJob(t *testing.T) {
	r := NewRegistry()
	j := r.Create(Request{URL: "https://example.com/a.mp4"}, nil)

	if !r.Delete(j.ID()) {
		t.Fatalf("expected Delete to report the job existed")
	}
	if _, ok := r.Get(j.ID()); ok {
		t.Fatalf("expected job to be gone after Delete")
	}
	if r.Delete(j.ID()) {
		t.Fatalf("expected a second Delete to report false")
	}
}

func TestRegistry_ListOrdersMostRecentFirstAndPaginates(t *testing.T) {
	r := NewRegistry()
	var ids []string
	for i := 0; i < 5; i++ {
		j := newJob(Request{URL: "https://example.com/a.mp4"}, nil)
		r.put(j)
		ids = append(ids, j.id)
	}

	snapshots, total := r.List(0, 0)
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(snapshots) != 5 {
		t.Fatalf("expected 5 snapshots with no limit, got %d", len(snapshots))
	}

	page, total := r.List(2, 1)
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(page) != 2 {
		t.Fatalf("expected a page of 2, got %d", len(page))
	}
}

func TestGenerateID_ProducesDistinctValues(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := generateID()
		if len(id) != 32 {
			t.Fatalf("expected a 32-char hex id, got %q (len %d)", id, len(id))
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("generateID produced a duplicate: %s", id)
		}
		seen[id] = struct{}{}
	}
}
