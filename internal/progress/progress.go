// Package progress implements the progress aggregator: mapping a
// stage's local 0-100 percentage onto the job's global 0-100 percentage
// range and dispatching the result to a caller-supplied listener.
package progress

import "sync"

// Stage identifies one of the orchestrator's pipeline stages, used to look
// up its global progress range.
type Stage string

const (
	StagePending      Stage = "PENDING"
	StageTranscribing Stage = "TRANSCRIBING"
	StageTranslating  Stage = "TRANSLATING"
	StageSynthesizing Stage = "SYNTHESIZING"
	StageMuxing       Stage = "MUXING"
	StageFinalizing   Stage = "FINALIZING"
	StageCompleted    Stage = "COMPLETED"
	StageFailed       Stage = "FAILED"
	StageCancelled    Stage = "CANCELLED"
)

// stageRange is the [low, high] global percentage band a stage's local
// 0-100 progress is mapped into.
type stageRange struct {
	low, high int
}

var ranges = map[Stage]stageRange{
	StagePending:      {0, 0},
	StageTranscribing: {0, 25},
	StageTranslating:  {25, 50},
	StageSynthesizing: {50, 75},
	StageMuxing:       {75, 95},
	StageFinalizing:   {95, 100},
	StageCompleted:    {100, 100},
}

// Listener receives every progress update: the human-readable status string
// and the job's global 0-100 percentage. Invocations are serialized by
// Aggregator regardless of which goroutine called Report.
type Listener func(status string, globalPct int)

// Aggregator tracks one job's current status/progress and forwards updates
// to an optional listener, serialized through its own mutex.
type Aggregator struct {
	mu       sync.Mutex
	status   Stage
	progress int
	listener Listener
}

// New constructs an Aggregator. listener may be nil.
func New(listener Listener) *Aggregator {
	return &Aggregator{status: StagePending, listener: listener}
}

// Status returns the current status string and global progress percentage.
func (a *Aggregator) Status() (Stage, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status, a.progress
}

// Report maps stageLocalPct (0-100, the stage component's own progress)
// into stage's global band and updates the job's status/progress, clamping
// so progress never regresses below its current value unless stage is a
// terminal non-success state (FAILED/CANCELLED may report whatever the
// caller supplies, since the invariant "monotonic except into
// FAILED/CANCELLED" explicitly carves those out). The listener, if any, is
// invoked with the resulting (status, globalPct) while holding the lock, so
// two concurrent Report calls can never interleave their listener calls.
func (a *Aggregator) Report(stage Stage, stageLocalPct int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.status = stage
	if stage == StageFailed || stage == StageCancelled {
		// Progress freezes wherever it was; failure/cancellation carries no
		// percentage of its own.
	} else {
		r, ok := ranges[stage]
		if !ok {
			r = stageRange{a.progress, a.progress}
		}
		if stageLocalPct < 0 {
			stageLocalPct = 0
		}
		if stageLocalPct > 100 {
			stageLocalPct = 100
		}
		global := r.low + (r.high-r.low)*stageLocalPct/100
		if global > a.progress {
			a.progress = global
		}
	}

	if a.listener != nil {
		a.listener(string(a.status), a.progress)
	}
}

// StageCallback returns a func(localPct int) bound to stage, suitable for
// passing as a component's progress callback (e.g. translator.Options.
// OnProgress adapted to a single int, or synthesis.Options.OnProgress
// adapted from groupsCompleted/totalGroups).
func (a *Aggregator) StageCallback(stage Stage) func(localPct int) {
	return func(localPct int) {
		a.Report(stage, localPct)
	}
}
