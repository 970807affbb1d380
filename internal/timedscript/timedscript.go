// Package timedscript parses and validates the timed-script text format: a
// sequence of lines each beginning with a "[HH:MM:SS]" marker followed by
// either prose or a recognized pause marker, interspersed with blank
// paragraph separators.
package timedscript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// PauseKind identifies a recognized bracketed pause marker.
type PauseKind int

const (
	// NotPause indicates ordinary prose text.
	NotPause PauseKind = iota
	PauseBreath
	PauseShort
	PauseLong
	PauseTopicChange
)

// pauseVocabulary maps every recognized marker spelling, including the
// Hungarian originals this format was translated from, to its canonical kind.
var pauseVocabulary = map[string]PauseKind{
	"[breath]":        PauseBreath,
	"[lélegzetvétel]": PauseBreath,
	"[short pause]":   PauseShort,
	"[rövid szünet]":  PauseShort,
	"[long pause]":    PauseLong,
	"[hosszú szünet]": PauseLong,
	"[TOPIC CHANGE]":  PauseTopicChange,
	"[TÉMAVÁLTÁS]":    PauseTopicChange,
}

// PauseGlyph returns the short-form glyph used when rendering a pause in
// transcript output: "•" for a short pause, "••" for a long pause, and the
// empty string for everything else (breath and topic-change markers carry
// no glyph of their own).
func PauseGlyph(k PauseKind) string {
	switch k {
	case PauseShort:
		return "•"
	case PauseLong:
		return "••"
	default:
		return ""
	}
}

var timestampPattern = regexp.MustCompile(`^\[(\d{1,2}):(\d{2}):(\d{2})\]\s*(.*)$`)

// ParseLine identifies a leading "[HH:MM:SS]" timestamp on line, if present,
// and returns the parsed duration and the remaining text after the marker.
// ok is false if line has no recognizable leading timestamp.
func ParseLine(line string) (ts time.Duration, remainder string, ok bool) {
	m := timestampPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	hh, err1 := strconv.Atoi(m[1])
	mm, err2 := strconv.Atoi(m[2])
	ss, err3 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, "", false
	}
	if mm >= 60 || ss >= 60 {
		return 0, "", false
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second
	return d, m[4], true
}

// Format renders ts as a "[HH:MM:SS]" marker. Format(parse(line)) reproduces
// line's marker for every well-formed line.
func Format(ts time.Duration) string {
	if ts < 0 {
		ts = 0
	}
	h := ts / time.Hour
	ts -= h * time.Hour
	m := ts / time.Minute
	ts -= m * time.Minute
	s := ts / time.Second
	return fmt.Sprintf("[%02d:%02d:%02d]", h, m, s)
}

// Segment is one timestamped line of a timed script: either prose or a
// recognized pause marker.
type Segment struct {
	Index     int
	Timestamp time.Duration
	Text      string
	Pause     PauseKind
}

// IsPause reports whether s carries no speakable text of its own.
func (s Segment) IsPause() bool {
	return s.Pause != NotPause
}

// ExtractSegments parses script into its ordered timestamped segments,
// skipping blank paragraph-separator lines. It rejects minutes or seconds
// outside their natural range, non-ASCII digits in the marker, and a
// timestamp marker missing its closing bracket.
func ExtractSegments(script string) ([]Segment, error) {
	lines := strings.Split(script, "\n")
	segments := make([]Segment, 0, len(lines))

	for lineNo, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "[") {
			return nil, fmt.Errorf("line %d: expected a leading timestamp marker: %q", lineNo+1, line)
		}
		if !strings.Contains(trimmed, "]") {
			return nil, fmt.Errorf("line %d: timestamp marker missing closing bracket: %q", lineNo+1, line)
		}
		ts, remainder, ok := ParseLine(trimmed)
		if !ok {
			return nil, fmt.Errorf("line %d: malformed or out-of-range timestamp: %q", lineNo+1, line)
		}
		text := strings.TrimSpace(remainder)
		pause := classifyPause(text)
		segments = append(segments, Segment{
			Index:     len(segments),
			Timestamp: ts,
			Text:      text,
			Pause:     pause,
		})
	}

	if err := validateMonotonic(segments); err != nil {
		return nil, err
	}
	return segments, nil
}

func classifyPause(text string) PauseKind {
	if kind, ok := pauseVocabulary[text]; ok {
		return kind
	}
	return NotPause
}

func validateMonotonic(segments []Segment) error {
	for i := 1; i < len(segments); i++ {
		if segments[i].Timestamp < segments[i-1].Timestamp {
			return fmt.Errorf("timestamp at segment %d (%s) precedes segment %d (%s)",
				i, Format(segments[i].Timestamp), i-1, Format(segments[i-1].Timestamp))
		}
	}
	return nil
}

// Timestamps returns the ordered sequence of segment timestamps, used to
// check multiset preservation across a transform such as translation.
func Timestamps(segments []Segment) []time.Duration {
	out := make([]time.Duration, len(segments))
	for i, s := range segments {
		out[i] = s.Timestamp
	}
	return out
}

// SameTimestampMultiset reports whether a and b contain the same timestamps
// in the same order — the invariant translation must preserve when
// PreserveTiming is requested.
func SameTimestampMultiset(a, b []time.Duration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
