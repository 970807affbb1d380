package job

import (
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/kovacsmedia/dubctl/internal/cleanup"
	"github.com/kovacsmedia/dubctl/internal/progress"
)

// generateID returns a 128-bit random hex-encoded job id. A dedicated uuid
// package is deliberately not used here: a job id is a bare random 128-bit
// value, not an RFC4122-structured identifier. github.com/google/uuid
// serves the places that do want UUID semantics — internal/files' SafePath
// collision fallback, which every kept artifact path is routed through, and
// the scratch-file naming in transcribe/mux.
func generateID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("job: failed to read random bytes for job id: " + err.Error())
	}
	return hex.EncodeToString(buf[:])
}

// Registry is the in-memory job_id -> Job table. Per-key updates
// are serialized through each Job's own mutex; Registry's mutex guards only
// the map itself, so cross-job operations (List, Delete) never block a
// concurrently-running job's own progress reporting.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// newJob constructs a Job in PENDING status, not yet inserted into any
// registry. listener, if non-nil, is invoked on every progress update
//; it is always invoked serialized, never concurrently with
// itself.
func newJob(req Request, listener progress.Listener) *Job {
	j := &Job{
		id:         generateID(),
		createdAt:  time.Now(),
		request:    req,
		status:     StatusPending,
		cleanupReg: cleanup.NewRegistry(),
	}
	j.agg = progress.New(func(status string, pct int) {
		j.mu.Lock()
		j.status = Status(status)
		j.progress = pct
		j.mu.Unlock()
		if listener != nil {
			listener(status, pct)
		}
	})
	return j
}

// Create inserts a new PENDING job for req and returns it. listener may be
// nil.
func (r *Registry) Create(req Request, listener progress.Listener) *Job {
	j := newJob(req, listener)
	r.put(j)
	return j
}

func (r *Registry) put(j *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[j.id] = j
}

// Get looks up a job by id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// Delete removes a job from the registry, reporting whether it existed.
// Deleting a non-terminal job does not cancel it; callers should Cancel
// first if that is the intent.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return false
	}
	delete(r.jobs, id)
	return true
}

// List returns up to limit job snapshots, most-recently-created first,
// skipping offset, plus the total number of jobs in the registry.
// limit <= 0 means no limit.
func (r *Registry) List(limit, offset int) ([]Snapshot, int) {
	r.mu.RLock()
	all := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		all = append(all, j)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, k int) bool {
		return all[i].createdAt.After(all[k].createdAt)
	})

	if offset < 0 {
		offset = 0
	}
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := make([]Snapshot, len(all))
	for i, j := range all {
		out[i] = j.Snapshot()
	}
	return out, len(r.jobs)
}
