// Package cleanup registers deferred teardown hooks and runs them in LIFO
// order. The package-level functions serve process-wide, CLI-lifetime
// cleanup; Registry (below) is the per-job variant the orchestrator uses
// to track and remove exactly the temp files one job created,
// independent of any other job's.
package cleanup

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

var (
	mu    sync.Mutex
	hooks []func() error
)

// Register adds a cleanup hook executed in LIFO order.
func Register(hook func() error) {
	if hook == nil {
		return
	}
	mu.Lock()
	hooks = append(hooks, hook)
	mu.Unlock()
}

// RunAll executes all registered hooks and returns a combined error if any fail.
func RunAll() error {
	mu.Lock()
	local := hooks
	hooks = nil
	mu.Unlock()

	var errs []error
	for i := len(local) - 1; i >= 0; i-- {
		if err := local[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("cleanup failed: %v", errs)
}

// Registry is a per-job clone of the package-level hook list: every temp
// file a job creates is registered here by path: a job exclusively owns
// its temp files until terminal. Kept
// paths are the subset promoted into a stage result; on a successful job
// only the non-kept (scratch/intermediate) paths are removed, but on
// FAILED/CANCELLED every tracked path is removed, kept or not — no file
// survives a failed or cancelled job, an invariant a
// Keep-means-never-delete design would violate the moment an earlier stage
// had already succeeded before a later one failed.
type Registry struct {
	mu      sync.Mutex
	tracked map[string]struct{}
	kept    map[string]struct{}
}

// NewRegistry constructs an empty per-job cleanup registry.
func NewRegistry() *Registry {
	return &Registry{tracked: make(map[string]struct{}), kept: make(map[string]struct{})}
}

// Track registers path as belonging to this job.
func (r *Registry) Track(path string) {
	if path == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tracked[path] = struct{}{}
}

// Keep marks path as a final stage result: RemoveAll (the success path)
// will not delete it, though Purge (the failure/cancellation path) still
// will.
func (r *Registry) Keep(path string) {
	if path == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kept[path] = struct{}{}
}

// RemoveAll deletes every tracked path that was never Kept. Called when a
// job reaches COMPLETED, to sweep intermediate scratch files while leaving
// the job's final outputs in place.
func (r *Registry) RemoveAll() error {
	r.mu.Lock()
	var paths []string
	for p := range r.tracked {
		if _, keep := r.kept[p]; !keep {
			paths = append(paths, p)
		}
	}
	r.tracked = make(map[string]struct{})
	r.kept = make(map[string]struct{})
	r.mu.Unlock()

	return removeAll(paths)
}

// Purge deletes every path this job ever tracked, including Kept ones.
// Called on FAILED/CANCELLED transitions: a job that did not complete
// leaves nothing behind, even if
// some earlier stage's result had already been Kept.
func (r *Registry) Purge() error {
	r.mu.Lock()
	paths := make([]string, 0, len(r.tracked))
	for p := range r.tracked {
		paths = append(paths, p)
	}
	r.tracked = make(map[string]struct{})
	r.kept = make(map[string]struct{})
	r.mu.Unlock()

	return removeAll(paths)
}

func removeAll(paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := removeFile(p); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("cleanup failed: %v", errs)
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Tracked returns a snapshot of the currently-tracked paths not yet Kept,
// for tests and diagnostics.
func (r *Registry) Tracked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.tracked))
	for p := range r.tracked {
		if _, keep := r.kept[p]; !keep {
			out = append(out, p)
		}
	}
	return out
}
