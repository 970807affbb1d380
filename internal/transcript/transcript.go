// Package transcript renders the on-disk transcript file format: a preamble
// block, the timed script itself, and a trailing statistics block. The timed
// script body and its pause glyphs are entirely the domain of
// internal/timedscript; this package only wraps that body with its
// file-level framing.
package transcript

import (
	"fmt"
	"strings"
	"time"

	"github.com/kovacsmedia/dubctl/internal/timedscript"
)

const ruleLine = "Rule: one [HH:MM:SS] marker per line; recognized pause markers are " +
	"[breath], [short pause], [long pause], [TOPIC CHANGE]; blank lines separate paragraphs."

// Preamble is the transcript file's header block: video title, processed-at
// timestamp, optional postprocessing marker, and the rule line.
type Preamble struct {
	VideoTitle    string
	ProcessedAt   time.Time
	Postprocessed bool
}

// Stats is the optional trailing statistics block: word count, pause
// counts, and the inferred speaking rate.
type Stats struct {
	WordCount       int
	ShortPauses     int
	LongPauses      int
	Breaths         int
	TopicChanges    int
	SpeakingRateWPM float64
}

// ComputeStats derives Stats from script's segments and its total spoken
// duration. durationSeconds is the clip's duration, used to infer a words-
// per-minute speaking rate; a zero duration yields a zero rate rather than
// dividing by zero.
func ComputeStats(script string, durationSeconds float64) (Stats, error) {
	segs, err := timedscript.ExtractSegments(script)
	if err != nil {
		return Stats{}, err
	}
	var s Stats
	for _, seg := range segs {
		switch seg.Pause {
		case timedscript.PauseShort:
			s.ShortPauses++
		case timedscript.PauseLong:
			s.LongPauses++
		case timedscript.PauseBreath:
			s.Breaths++
		case timedscript.PauseTopicChange:
			s.TopicChanges++
		default:
			s.WordCount += len(strings.Fields(seg.Text))
		}
	}
	if durationSeconds > 0 {
		s.SpeakingRateWPM = float64(s.WordCount) / (durationSeconds / 60.0)
	}
	return s, nil
}

// FormatFile renders the complete transcript file: preamble, blank line,
// the timed script verbatim, and (when includeStats is true) a trailing
// statistics block computed from script.
func FormatFile(pre Preamble, script string, durationSeconds float64, includeStats bool) (string, error) {
	var b strings.Builder

	title := pre.VideoTitle
	if title == "" {
		title = "(untitled)"
	}
	fmt.Fprintf(&b, "# %s\n", title)
	fmt.Fprintf(&b, "# Processed at: %s\n", pre.ProcessedAt.UTC().Format(time.RFC3339))
	if pre.Postprocessed {
		b.WriteString("# Postprocessed: yes\n")
	}
	fmt.Fprintf(&b, "# %s\n\n", ruleLine)

	b.WriteString(script)
	if !strings.HasSuffix(script, "\n") {
		b.WriteString("\n")
	}

	if includeStats {
		stats, err := ComputeStats(script, durationSeconds)
		if err != nil {
			return "", err
		}
		b.WriteString("\n---\n")
		fmt.Fprintf(&b, "Words: %d\n", stats.WordCount)
		fmt.Fprintf(&b, "Short pauses (%s): %d\n", timedscript.PauseGlyph(timedscript.PauseShort), stats.ShortPauses)
		fmt.Fprintf(&b, "Long pauses (%s): %d\n", timedscript.PauseGlyph(timedscript.PauseLong), stats.LongPauses)
		fmt.Fprintf(&b, "Breaths: %d\n", stats.Breaths)
		fmt.Fprintf(&b, "Topic changes: %d\n", stats.TopicChanges)
		fmt.Fprintf(&b, "Speaking rate: %.1f wpm\n", stats.SpeakingRateWPM)
	}

	return b.String(), nil
}
