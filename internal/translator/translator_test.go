package translator

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/kovacsmedia/dubctl/internal/apperrors"
	"github.com/kovacsmedia/dubctl/internal/timedscript"
)

// fakeGenerator returns a canned transform of its input, optionally failing
// the first N calls to exercise fallback.
type fakeGenerator struct {
	transform  func(string) string
	failFirstN int
	calls      int
}

func (f *fakeGenerator) GenerateText(ctx context.Context, model, systemPrompt, userPrompt string, cfg GenConfig) (string, error) {
	f.calls++
	if f.calls <= f.failFirstN {
		return "", errTransient
	}
	return f.transform(userPrompt), nil
}

var errTransient = transientErr{}

type transientErr struct{}

func (transientErr) Error() string { return "simulated transient failure" }

func TestTranslate_SinglePassPreservesTimestamps(t *testing.T) {
	script := "[00:00:01] Hello.\n[00:00:05] World.\n[00:00:10] End."

	gen := &fakeGenerator{transform: translateStub}
	tr := New([]RegionModel{{Region: "us-central1", Model: "gemini-2.0-flash", Provider: gen}})

	result, err := tr.Translate(context.Background(), script, Options{
		TargetLanguage: "fr-FR",
		Context:        ContextCasual,
		PreserveTiming: true,
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}

	srcSegs, _ := timedscript.ExtractSegments(script)
	outSegs, err := timedscript.ExtractSegments(result.Text)
	if err != nil {
		t.Fatalf("output failed to parse as a timed script: %v", err)
	}
	if len(outSegs) != len(srcSegs) {
		t.Fatalf("got %d output lines, want %d", len(outSegs), len(srcSegs))
	}
	if !timedscript.SameTimestampMultiset(timedscript.Timestamps(srcSegs), timedscript.Timestamps(outSegs)) {
		t.Fatalf("timestamps not preserved: got %v, want %v", timedscript.Timestamps(outSegs), timedscript.Timestamps(srcSegs))
	}
	for i, seg := range outSegs {
		if seg.Text == "" || seg.Text == srcSegs[i].Text {
			t.Fatalf("segment %d body not translated: %q", i, seg.Text)
		}
	}
}

func TestTranslate_MultiChunkPreservesTimestamps(t *testing.T) {
	var sb strings.Builder
	seconds := 0
	for sb.Len() < 10000 {
		h, m, s := seconds/3600, (seconds/60)%60, seconds%60
		fmt.Fprintf(&sb, "[%02d:%02d:%02d] The speaker keeps talking about the subject at hand.\n", h, m, s)
		seconds += 3
	}
	script := sb.String()

	gen := &fakeGenerator{transform: translateStub}
	tr := New([]RegionModel{{Region: "us-central1", Model: "gemini-2.0-flash", Provider: gen}})

	result, err := tr.Translate(context.Background(), script, Options{
		TargetLanguage: "de-DE",
		Context:        ContextCasual,
		PreserveTiming: true,
	})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.ChunksUsed < 2 {
		t.Fatalf("ChunksUsed = %d, want a genuinely multi-chunk translation", result.ChunksUsed)
	}

	srcSegs, _ := timedscript.ExtractSegments(script)
	outSegs, err := timedscript.ExtractSegments(result.Text)
	if err != nil {
		t.Fatalf("output failed to parse as a timed script: %v", err)
	}
	if len(outSegs) != len(srcSegs) {
		t.Fatalf("got %d output lines, want %d (overlap lines duplicated or lost)", len(outSegs), len(srcSegs))
	}
	if !timedscript.SameTimestampMultiset(timedscript.Timestamps(srcSegs), timedscript.Timestamps(outSegs)) {
		t.Fatalf("timestamps not preserved across chunk reassembly")
	}
}

func TestTranslate_FallsBackOnFailure(t *testing.T) {
	script := "[00:00:01] Hello."
	failing := &fakeGenerator{transform: translateStub, failFirstN: 10}
	working := &fakeGenerator{transform: translateStub}

	tr := New([]RegionModel{
		{Region: "us-central1", Model: "gemini-2.0-flash", Provider: failing},
		{Region: "us-east4", Model: "gemini-2.0-flash", Provider: working},
	})

	result, err := tr.Translate(context.Background(), script, Options{TargetLanguage: "es-ES", PreserveTiming: true})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if !strings.Contains(result.LastProviderID, "us-east4") {
		t.Fatalf("expected fallback to us-east4, got %q", result.LastProviderID)
	}
}

func TestTranslate_AllCombinationsFailReturnsTranslationFailed(t *testing.T) {
	script := "[00:00:01] Hello."
	failing := &fakeGenerator{transform: translateStub, failFirstN: 100}

	tr := New([]RegionModel{{Region: "us-central1", Model: "gemini-2.0-flash", Provider: failing}})
	_, err := tr.Translate(context.Background(), script, Options{TargetLanguage: "es-ES", PreserveTiming: true})
	if err == nil {
		t.Fatalf("expected an error")
	}
	kind, ok := apperrors.JobKindOf(err)
	if !ok || kind != apperrors.TranslationFailed {
		t.Fatalf("got kind %q, ok=%v, want translation_failed", kind, ok)
	}
}

func TestTranslate_EmptyScriptYieldsEmptyResult(t *testing.T) {
	tr := New([]RegionModel{{Provider: &fakeGenerator{transform: translateStub}}})
	result, err := tr.Translate(context.Background(), "", Options{TargetLanguage: "es-ES"})
	if err != nil {
		t.Fatalf("Translate() error = %v", err)
	}
	if result.Text != "" || result.ChunksUsed != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestValidateTranslation_RejectsIdentical(t *testing.T) {
	if err := validateTranslation("[00:00:01] Hello.", "[00:00:01] Hello.", false); err == nil {
		t.Fatalf("expected identical translation to be rejected")
	}
}

func TestValidateTranslation_RejectsWordRatioOutOfBounds(t *testing.T) {
	source := "[00:00:01] one two three four five six seven eight nine ten"
	tooShort := "[00:00:01] uno"
	if err := validateTranslation(source, tooShort, false); err == nil {
		t.Fatalf("expected out-of-ratio translation to be rejected")
	}
}

func TestCountWords_IgnoresTimestampsAndPunctuation(t *testing.T) {
	if got := countWords("[00:00:01] Hello there."); got != 2 {
		t.Fatalf("countWords = %d, want 2", got)
	}
	if got := countWords("[00:00:01] [breath]"); got != 1 {
		t.Fatalf("countWords on a pause marker = %d, want 1", got)
	}
	if got := countWords("1 2 3 ... !"); got != 0 {
		t.Fatalf("countWords on digits/punctuation = %d, want 0", got)
	}
}

// translateStub simulates a translation by uppercasing prose text while
// leaving timestamp markers and pause markers untouched.
func translateStub(prompt string) string {
	lines := strings.Split(prompt, "\n")
	var out []string
	for _, line := range lines {
		ts, remainder, ok := timedscript.ParseLine(strings.TrimSpace(line))
		if !ok {
			continue
		}
		out = append(out, timedscript.Format(ts)+" "+strings.ToUpper(remainder))
	}
	return strings.Join(out, "\n")
}

