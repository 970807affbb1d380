package job

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiskTranscriptEntry describes a finalized transcript file found on disk
// with no corresponding live Job in any Registry, keeping the job listing
// backward compatible with transcripts left over from before the process
// last restarted, or written by a process that has since exited.
type DiskTranscriptEntry struct {
	JobID    string
	FilePath string
	ModTime  int64
}

// ScanTranscriptDir lists every "<job_id>_transcript.txt" file directly
// under dir, most-recently-modified first. dir not existing, or being
// unreadable, yields a nil slice rather than an error: this is a
// best-effort backward-compatibility aid, not a load-bearing data source.
func ScanTranscriptDir(dir string) []DiskTranscriptEntry {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var out []DiskTranscriptEntry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		const suffix = "_transcript.txt"
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		jobID := strings.TrimSuffix(name, suffix)
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, DiskTranscriptEntry{
			JobID:    jobID,
			FilePath: filepath.Join(dir, name),
			ModTime:  info.ModTime().Unix(),
		})
	}

	sort.Slice(out, func(i, k int) bool {
		return out[i].ModTime > out[k].ModTime
	})
	return out
}
