// Package translator implements context-aware, timing-preserving translation
// of timed scripts: chunking long scripts, composing a
// context-profile prompt per chunk, dispatching across a region x model
// fallback sequence, and validating every candidate response before
// accepting it.
package translator

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/kovacsmedia/dubctl/internal/apperrors"
	"github.com/kovacsmedia/dubctl/internal/chunker"
	"github.com/kovacsmedia/dubctl/internal/logger"
	"github.com/kovacsmedia/dubctl/internal/timedscript"
	"github.com/rivo/uniseg"
)

// Options configures a single Translate call.
type Options struct {
	TargetLanguage string
	Context        ContextProfile
	Audience       string
	Tone           string
	Quality        Quality
	PreserveTiming bool

	// OnProgress reports chunk-local progress as chunkIndex+1 of totalChunks
	// chunks completed successfully; a failed chunk ends the translation
	// without a call. May be nil.
	OnProgress func(chunkIndex, totalChunks int)

	// IsCancelled is polled between chunks; when it returns true the
	// translation stops and returns a Cancelled apperrors.JobError.
	IsCancelled func() bool
}

// Result is the outcome of a successful Translate call.
type Result struct {
	Text           string
	ChunksUsed     int
	CharactersIn   int
	CharactersOut  int
	LastProviderID string // region/model of the combination that succeeded last
}

// Translator dispatches translation requests across a fixed-priority
// sequence of (region, model) provider bindings, falling back to the next
// entry whenever a call fails or its response fails validation.
type Translator struct {
	Sequence []RegionModel
}

// New constructs a Translator over the given fallback sequence. An empty
// sequence is valid but every Translate call will fail with
// TranslationFailed.
func New(sequence []RegionModel) *Translator {
	return &Translator{Sequence: sequence}
}

// Translate translates script into opts.TargetLanguage. On success, the
// returned Result.Text has every chunk's translation concatenated in order.
// If opts.PreserveTiming is set, the returned text's timestamp sequence is
// guaranteed to equal script's (apperrors.JobError{Kind: TranslationFailed}
// otherwise). A single chunk's unrecoverable failure fails
// the whole call — there is no partial-success return.
func (t *Translator) Translate(ctx context.Context, script string, opts Options) (Result, error) {
	if strings.TrimSpace(script) == "" {
		return Result{Text: "", ChunksUsed: 0}, nil
	}
	if len(t.Sequence) == 0 {
		return Result{}, apperrors.NewJobError(apperrors.TranslationFailed, "translating", "no translation provider configured", nil)
	}

	var sourceTimestamps []time.Duration
	if opts.PreserveTiming {
		segs, err := timedscript.ExtractSegments(script)
		if err != nil {
			return Result{}, apperrors.NewJobError(apperrors.InvalidInput, "translating", "source script failed timestamp validation", err)
		}
		sourceTimestamps = timedscript.Timestamps(segs)
	}

	chunks := chunker.Split(script)
	directive := directiveFor(opts.Context)
	cfg := genConfigForQuality(opts.Quality)

	translated := make([]string, len(chunks))
	var lastCombo string

	for i, c := range chunks {
		if opts.IsCancelled != nil && opts.IsCancelled() {
			return Result{}, apperrors.NewJobError(apperrors.Cancelled, "translating", "translation cancelled", nil)
		}

		body, combo, err := t.translateChunk(ctx, c.Text, opts, directive, cfg)
		if err != nil {
			return Result{}, apperrors.NewJobError(apperrors.TranslationFailed, "translating",
				fmt.Sprintf("chunk %d/%d failed on every region/model combination", i+1, len(chunks)), err)
		}
		translated[i] = body
		lastCombo = combo

		if opts.OnProgress != nil {
			opts.OnProgress(i+1, len(chunks))
		}
	}

	out := chunker.Reassemble(translated, chunks)

	if opts.PreserveTiming {
		outSegs, err := timedscript.ExtractSegments(out)
		if err != nil || !timedscript.SameTimestampMultiset(sourceTimestamps, timedscript.Timestamps(outSegs)) {
			return Result{}, apperrors.NewJobError(apperrors.TranslationFailed, "translating",
				"translated output did not preserve the source timestamp sequence", err)
		}
	}

	return Result{
		Text:           out,
		ChunksUsed:     len(chunks),
		CharactersIn:   len(script),
		CharactersOut:  len(out),
		LastProviderID: lastCombo,
	}, nil
}

// translateChunk dispatches a single chunk across the fallback sequence,
// returning the first validated response.
func (t *Translator) translateChunk(ctx context.Context, chunkText string, opts Options, directive contextDirective, cfg GenConfig) (string, string, error) {
	systemPrompt := buildSystemPrompt(opts, directive)
	var lastErr error

	for _, rm := range t.Sequence {
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		default:
		}

		const maxAttemptsPerCombo = 2
		var resp string
		var err error
		for attempt := 1; attempt <= maxAttemptsPerCombo; attempt++ {
			resp, err = rm.Provider.GenerateText(ctx, rm.Model, systemPrompt, chunkText, cfg)
			if err == nil {
				if verr := validateTranslation(chunkText, resp, opts.PreserveTiming); verr != nil {
					err = apperrors.Validation(verr)
				}
			}
			if err == nil {
				return resp, rm.String(), nil
			}
			if !apperrors.IsRetryable(err) || attempt == maxAttemptsPerCombo {
				break
			}
			select {
			case <-ctx.Done():
				return "", "", ctx.Err()
			case <-time.After(backoffFor(attempt)):
			}
		}
		lastErr = err
		logger.Warn("translation combination failed, falling back", "combination", rm.String(), "error", err)
	}

	return "", "", lastErr
}

func buildSystemPrompt(opts Options, directive contextDirective) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional translator producing spoken-word %s dubbing script.\n", opts.TargetLanguage)
	fmt.Fprintf(&b, "Context: %s\n", directive.Instruction)
	fmt.Fprintf(&b, "Terminology: %s\n", directive.Terminology)
	fmt.Fprintf(&b, "Tone: %s\n", directive.Tone)
	if opts.Audience != "" {
		fmt.Fprintf(&b, "Target audience: %s\n", opts.Audience)
	}
	if opts.Tone != "" {
		fmt.Fprintf(&b, "Desired tone override: %s\n", opts.Tone)
	}
	b.WriteString("Translate to " + opts.TargetLanguage + ".\n")
	b.WriteString("Every line begins with a \"[HH:MM:SS]\" timestamp marker or a bracketed pause marker such as \"[breath]\", \"[short pause]\", \"[long pause]\", \"[TOPIC CHANGE]\".\n")
	b.WriteString("Preserve every timestamp marker exactly, in the same order, one per line. Translate only the text that follows each marker. Copy pause markers through unchanged; never translate their contents.\n")
	b.WriteString("Respond with the translated script only, no commentary.")
	return b.String()
}

// validateTranslation applies the acceptance rule: non-empty,
// not byte-identical to input, timestamp multiset preserved when required,
// and word count within [0.3x, 3.0x] of the source.
func validateTranslation(source, candidate string, preserveTiming bool) error {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return fmt.Errorf("empty translation")
	}
	if trimmed == strings.TrimSpace(source) {
		return fmt.Errorf("translation is byte-identical to source")
	}
	if preserveTiming {
		srcSegs, err := timedscript.ExtractSegments(source)
		if err != nil {
			return fmt.Errorf("source chunk failed timestamp extraction: %w", err)
		}
		candSegs, err := timedscript.ExtractSegments(candidate)
		if err != nil {
			return fmt.Errorf("candidate failed timestamp extraction: %w", err)
		}
		if !timedscript.SameTimestampMultiset(timedscript.Timestamps(srcSegs), timedscript.Timestamps(candSegs)) {
			return fmt.Errorf("timestamp sequence not preserved")
		}
	}
	srcWords := countWords(source)
	candWords := countWords(candidate)
	if srcWords > 0 {
		ratio := float64(candWords) / float64(srcWords)
		if ratio < 0.3 || ratio > 3.0 {
			return fmt.Errorf("translated word count ratio %.2f out of bounds [0.3, 3.0]", ratio)
		}
	}
	return nil
}

// countWords segments s with Unicode word-boundary rules rather than
// whitespace splitting, so target languages written without spaces still get
// a usable word-count ratio. Only tokens containing a letter count:
// timestamp digits and punctuation appear identically on both sides and
// would otherwise drown out the actual prose.
func countWords(s string) int {
	n := 0
	state := -1
	var word string
	for len(s) > 0 {
		word, s, state = uniseg.FirstWordInString(s, state)
		for _, r := range word {
			if unicode.IsLetter(r) {
				n++
				break
			}
		}
	}
	return n
}

func backoffFor(attempt int) time.Duration {
	base := time.Second
	backoff := base << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
	return backoff + jitter
}
