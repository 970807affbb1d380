package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/kovacsmedia/dubctl/internal/files"
	"github.com/kovacsmedia/dubctl/internal/job"
)

// statusFileVersion guards against reading a record written by an
// incompatible future layout.
const statusFileVersion = 1

// jobRecord is the on-disk snapshot of one job's externally-visible state,
// written by submit as the job progresses and read back by
// status/list/download/cancel. The core job registry
// (internal/job.Registry) deliberately keeps no storage of its own, so a
// CLI whose subcommands run as separate processes needs its own durable
// record: one atomically-written JSON file per job.
type jobRecord struct {
	RecordVersion int    `json:"record_version"`
	JobID         string `json:"job_id"`
	URL           string `json:"url"`
	Status        string `json:"status"`
	Progress      int    `json:"progress"`
	Error         string `json:"error,omitempty"`

	TranscriptFile  string `json:"transcript_file,omitempty"`
	TranslationFile string `json:"translation_file,omitempty"`
	AudioFile       string `json:"audio_file,omitempty"`
	VideoFile       string `json:"video_file,omitempty"`

	EstimatedCostUSD      float64 `json:"estimated_cost_usd"`
	ActualCostUSD         float64 `json:"actual_cost_usd"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds,omitempty"`

	CreatedAtUnix int64 `json:"created_at_unix"`
}

// statusDir returns the directory job records and cancellation markers are
// kept in, creating it if necessary. DUBCTL_STATE_DIR overrides the default
// of os.UserCacheDir()/dubctl/jobs for test and multi-user isolation.
func statusDir() (string, error) {
	if dir := os.Getenv("DUBCTL_STATE_DIR"); dir != "" {
		return dir, os.MkdirAll(dir, 0o755)
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "dubctl", "jobs")
	return dir, os.MkdirAll(dir, 0o755)
}

func recordPath(dir, jobID string) string {
	return filepath.Join(dir, jobID+".json")
}

func cancelMarkerPath(dir, jobID string) string {
	return filepath.Join(dir, jobID+".cancel")
}

// snapshotToRecord converts a job.Snapshot into its durable form.
func snapshotToRecord(snap job.Snapshot) jobRecord {
	rec := jobRecord{
		RecordVersion:    statusFileVersion,
		JobID:            snap.JobID,
		URL:              snap.Request.URL,
		Status:           string(snap.Status),
		Progress:         snap.Progress,
		EstimatedCostUSD: snap.Cost.EstimatedTotal,
		ActualCostUSD:    snap.Cost.ActualTotal,
		CreatedAtUnix:    snap.CreatedAt.Unix(),
	}
	if snap.Err != nil {
		rec.Error = snap.Err.Error()
	}
	if snap.Transcript != nil {
		rec.TranscriptFile = snap.Transcript.FilePath
	}
	if snap.Translation != nil {
		rec.TranslationFile = snap.Translation.FilePath
	}
	if snap.Synthesis != nil {
		rec.AudioFile = snap.Synthesis.AudioFilePath
	}
	if snap.Muxing != nil {
		rec.VideoFile = snap.Muxing.VideoFilePath
	}
	if snap.CompletedAt != nil && snap.StartedAt != nil {
		rec.ProcessingTimeSeconds = snap.CompletedAt.Sub(*snap.StartedAt).Seconds()
	}
	return rec
}

func writeRecord(dir string, rec jobRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return files.AtomicWrite(recordPath(dir, rec.JobID), data, 0o644)
}

func readRecord(dir, jobID string) (jobRecord, error) {
	data, err := os.ReadFile(recordPath(dir, jobID))
	if err != nil {
		return jobRecord{}, err
	}
	var rec jobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return jobRecord{}, fmt.Errorf("corrupt job record for %s: %w", jobID, err)
	}
	return rec, nil
}

// listRecords returns every job record in dir, most-recently-created first.
func listRecords(dir string) ([]jobRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []jobRecord
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var rec jobRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAtUnix > out[k].CreatedAtUnix })
	return out, nil
}

// requestCancel drops a marker file submit's watchJob loop polls for
// cooperative cancellation (job.Job.Cancel requires a live *job.Job, which
// only the submit process holds; the marker file is how a separate `dubctl
// cancel` invocation reaches it).
func requestCancel(dir, jobID string) error {
	return os.WriteFile(cancelMarkerPath(dir, jobID), []byte{}, 0o644)
}

func cancelRequested(dir, jobID string) bool {
	_, err := os.Stat(cancelMarkerPath(dir, jobID))
	return err == nil
}

func clearCancelMarker(dir, jobID string) {
	os.Remove(cancelMarkerPath(dir, jobID))
}
