package chunker

import (
	"strings"
	"testing"
)

func TestNeedsChunking(t *testing.T) {
	short := strings.Repeat("a", MaxSinglePass)
	long := strings.Repeat("a", MaxSinglePass+1)

	if NeedsChunking(short) {
		t.Errorf("text of exactly MaxSinglePass should not need chunking")
	}
	if !NeedsChunking(long) {
		t.Errorf("text longer than MaxSinglePass should need chunking")
	}
}

func TestSplitShortInput(t *testing.T) {
	text := "[00:00:01] Hello. [00:00:05] World."
	chunks := Split(text)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for short input, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("expected single chunk to equal input verbatim, got %q", chunks[0].Text)
	}
	if chunks[0].Start != 0 || chunks[0].End != len(text) {
		t.Errorf("expected single chunk to span [0,%d), got [%d,%d)", len(text), chunks[0].Start, chunks[0].End)
	}
}

func TestSplitEmptyInput(t *testing.T) {
	if chunks := Split(""); chunks != nil {
		t.Errorf("expected nil for empty input, got %v", chunks)
	}
}

func TestSplitLongInputRespectsBoundaries(t *testing.T) {
	var b strings.Builder
	seconds := 0
	for b.Len() < 30000 {
		h, m, s := seconds/3600, (seconds/60)%60, seconds%60
		b.WriteString(formatTestTimestamp(h, m, s))
		b.WriteString(" This is a sentence about the topic at hand. ")
		seconds++
	}
	text := b.String()

	chunks := Split(text)

	if len(chunks) < 6 || len(chunks) > 14 {
		t.Errorf("expected roughly 6-14 chunks for 30000-char input, got %d", len(chunks))
	}

	for i, c := range chunks {
		if i == len(chunks)-1 {
			continue
		}
		trimmed := strings.TrimRight(c.Text, " \t\n")
		if trimmed == "" {
			continue
		}
		last := trimmed[len(trimmed)-1]
		if last != '.' && last != '!' && last != '?' {
			t.Errorf("chunk %d does not end at a sentence boundary: %q", i, lastN(trimmed, 40))
		}
	}
}

func TestSplitRespectsMaxChunks(t *testing.T) {
	text := strings.Repeat("word ", 200000)
	chunks := Split(text)
	if len(chunks) > MaxChunks {
		t.Errorf("expected at most %d chunks, got %d", MaxChunks, len(chunks))
	}
}

func TestSplitOverlapProgresses(t *testing.T) {
	text := strings.Repeat("a", 50000)
	chunks := Split(text)
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start <= chunks[i-1].Start {
			t.Errorf("chunk %d start (%d) did not advance past chunk %d start (%d)", i, chunks[i].Start, i-1, chunks[i-1].Start)
		}
	}
}

func timedScriptText(minLen int) string {
	var b strings.Builder
	seconds := 0
	for b.Len() < minLen {
		h, m, s := seconds/3600, (seconds/60)%60, seconds%60
		b.WriteString(formatTestTimestamp(h, m, s))
		b.WriteString(" This line carries a full sentence about the topic at hand.\n")
		seconds += 2
	}
	return b.String()
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestSplitStartsChunksAtLineStarts(t *testing.T) {
	chunks := Split(timedScriptText(12000))
	if len(chunks) < 2 {
		t.Fatalf("expected a multi-chunk split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if !strings.HasPrefix(c.Text, "[") {
			t.Errorf("chunk %d does not start at a line start: %q", i, c.Text[:40])
		}
	}
}

func TestSplitReassembleRoundTrip(t *testing.T) {
	// Identity processing round-trips the input up to whitespace
	// normalization: the overlap carried into each chunk must be dropped
	// exactly once during reassembly.
	text := timedScriptText(12000)
	chunks := Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected a multi-chunk split, got %d chunks", len(chunks))
	}

	bodies := make([]string, len(chunks))
	for i, c := range chunks {
		bodies[i] = c.Text
	}
	got := Reassemble(bodies, chunks)

	if normalizeWhitespace(got) != normalizeWhitespace(text) {
		t.Fatalf("round trip did not reproduce the input:\ngot  %q...\nwant %q...",
			lastN(normalizeWhitespace(got), 120), lastN(normalizeWhitespace(text), 120))
	}
}

func TestReassembleDropsOverlapByLineCount(t *testing.T) {
	// A transform that rewrites every line (so no verbatim prefix survives)
	// but preserves line structure still loses exactly the shared lines.
	text := timedScriptText(12000)
	chunks := Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected a multi-chunk split, got %d chunks", len(chunks))
	}

	sourceLines := len(splitNonEmptyLines(text))
	bodies := make([]string, len(chunks))
	for i, c := range chunks {
		bodies[i] = strings.ToUpper(c.Text)
	}
	got := Reassemble(bodies, chunks)

	if gotLines := len(splitNonEmptyLines(got)); gotLines != sourceLines {
		t.Fatalf("reassembled line count = %d, want %d (overlap lines not deduplicated)", gotLines, sourceLines)
	}
}

func TestReassembleSingleChunk(t *testing.T) {
	got := Reassemble([]string{"only piece"}, []Chunk{{Text: "only piece"}})
	if got != "only piece" {
		t.Errorf("expected verbatim passthrough, got %q", got)
	}
}

func TestReassembleStripsDecorationAndJoins(t *testing.T) {
	processed := []string{
		"=== header ===\nfirst body line",
		"[chunk 2]\nsecond body line",
	}
	got := Reassemble(processed, nil)
	if !strings.Contains(got, "first body line") || !strings.Contains(got, "second body line") {
		t.Errorf("expected both bodies to survive reassembly, got %q", got)
	}
	if strings.Contains(got, "===") || strings.Contains(got, "[chunk") {
		t.Errorf("expected decoration lines to be stripped, got %q", got)
	}
}

func TestReassembleEmpty(t *testing.T) {
	if got := Reassemble(nil, nil); got != "" {
		t.Errorf("expected empty string for no processed chunks, got %q", got)
	}
}

func formatTestTimestamp(h, m, s int) string {
	return "[" + pad2(h) + ":" + pad2(m) + ":" + pad2(s) + "]"
}

func pad2(n int) string {
	if n < 10 {
		return "0" + itoa(n)
	}
	return itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
