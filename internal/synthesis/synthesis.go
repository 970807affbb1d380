// Package synthesis implements the abstract synthesizer: turning a
// timed script into an audio file via a ttsprovider.Provider, in either
// single-call mode for short scripts or bounded-parallel chunked mode for
// long ones, with deterministic segment placement regardless of completion
// order.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/kovacsmedia/dubctl/internal/apperrors"
	"github.com/kovacsmedia/dubctl/internal/logger"
	"github.com/kovacsmedia/dubctl/internal/timedscript"
	"github.com/kovacsmedia/dubctl/internal/ttsprovider"
	"golang.org/x/sync/errgroup"
)

// Tunable constants. ShortSynthThreshold/MaxChunkChars/MaxChunkSegments are
// the one place this pair is defined, per the same multiple-hardcoded-values
// consolidation already applied to the chunker (see internal/chunker).
const (
	// ShortSynthThreshold is the character count at or below which a script
	// is synthesized in a single provider call.
	ShortSynthThreshold = 1000
	// MaxChunkChars bounds a chunked-mode group's character count.
	MaxChunkChars = 2000
	// MaxChunkSegments bounds a chunked-mode group's segment count.
	MaxChunkSegments = 20
	// MaxParallelSynthesis bounds chunked-mode group concurrency.
	MaxParallelSynthesis = 4
	// charsPerSecond approximates spoken duration from character count when
	// the provider does not report an actual duration. In single-call mode a
	// provider-returned duration wins when both are present; chunked mode
	// always uses this estimate and ignores provider-returned durations.
	charsPerSecond = 15.0
	// interSegmentGap is subtracted from the next segment's start time when
	// deriving a segment's end time.
	interSegmentGap = 100 * time.Millisecond
)

// Method records which execution strategy produced a SynthesisResult.
type Method string

const (
	MethodSingleCall Method = "single_call"
	MethodChunked    Method = "chunked"
)

// Result is the outcome of a successful SynthesizeScript call.
type Result struct {
	AudioFilePath     string
	DurationSeconds   float64
	FileSizeBytes     int64
	Format            string
	SampleRate        int
	EstimatedCost     float64
	Provider          string
	VoiceID           string
	Method            Method
	SegmentsProcessed int
	TotalCharacters   int
}

// timedSegment is a speakable (non-pause) segment with its derived
// [start, end) window.
type timedSegment struct {
	text  string
	start time.Duration
	end   time.Duration
}

// Options configures a SynthesizeScript call.
type Options struct {
	Quality ttsprovider.AudioQuality
	// OnProgress reports groupsCompleted out of totalGroups as chunked-mode
	// groups finish (in arbitrary completion order, not placement order).
	// Never called in single-call mode. May be nil.
	OnProgress func(groupsCompleted, totalGroups int)
}

// SynthesizeScript turns script into an audio file at outputPath using
// provider and voiceID. On any segment failure in chunked mode,
// the whole call fails and every temp file it created is removed.
func SynthesizeScript(ctx context.Context, provider ttsprovider.Provider, script, voiceID, outputPath string, opts Options) (Result, error) {
	ok, err := provider.ValidateVoiceID(ctx, voiceID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, apperrors.NewJobError(apperrors.VoiceNotFound, "synthesizing", fmt.Sprintf("voice %q is not known to provider %q", voiceID, provider.ID()), nil)
	}

	segs, err := timedscript.ExtractSegments(script)
	if err != nil {
		return Result{}, apperrors.NewJobError(apperrors.InvalidInput, "synthesizing", "script failed timestamp validation", err)
	}

	speakable, lastEnd := deriveSegmentWindows(segs)
	totalChars := 0
	for _, s := range speakable {
		totalChars += len(s.text)
	}

	enc := provider.EncodingFor(opts.Quality)
	cost := provider.EstimateCost(totalChars)

	if totalChars <= ShortSynthThreshold {
		return synthesizeSingleCall(ctx, provider, speakable, lastEnd, voiceID, outputPath, opts.Quality, enc, cost, totalChars)
	}
	return synthesizeChunked(ctx, provider, speakable, lastEnd, voiceID, outputPath, opts, enc, cost, totalChars)
}

// PlannedMethod reports which execution strategy SynthesizeScript will pick
// for script, so a caller can choose an output filename before synthesis
// runs: chunked mode always assembles a WAV container regardless of the
// provider's native encoding, while single-call mode writes the provider's
// bytes through unchanged.
func PlannedMethod(script string) (Method, error) {
	segs, err := timedscript.ExtractSegments(script)
	if err != nil {
		return "", err
	}
	speakable, _ := deriveSegmentWindows(segs)
	total := 0
	for _, s := range speakable {
		total += len(s.text)
	}
	if total <= ShortSynthThreshold {
		return MethodSingleCall, nil
	}
	return MethodChunked, nil
}

// deriveSegmentWindows computes each speakable segment's [start, end)
// window: the last segment's end is start + estimated
// duration; every other segment's end is min(next.start - 100ms,
// start + estimated duration). Pause segments participate only as timing
// landmarks; they contribute no text.
func deriveSegmentWindows(segs []timedscript.Segment) ([]timedSegment, time.Duration) {
	var out []timedSegment
	var lastEnd time.Duration

	for i, s := range segs {
		if s.IsPause() {
			continue
		}
		estimated := estimateDuration(s.Text)
		end := s.Timestamp + estimated
		if i+1 < len(segs) {
			nextStart := segs[i+1].Timestamp - interSegmentGap
			if nextStart < end {
				end = nextStart
			}
			if end < s.Timestamp {
				end = s.Timestamp
			}
		}
		out = append(out, timedSegment{text: s.Text, start: s.Timestamp, end: end})
		if end > lastEnd {
			lastEnd = end
		}
	}
	return out, lastEnd
}

func estimateDuration(text string) time.Duration {
	secs := float64(len(text)) / charsPerSecond
	return time.Duration(secs * float64(time.Second))
}

func synthesizeSingleCall(ctx context.Context, provider ttsprovider.Provider, segs []timedSegment, lastEnd time.Duration, voiceID, outputPath string, quality ttsprovider.AudioQuality, enc ttsprovider.Encoding, cost float64, totalChars int) (Result, error) {
	joined := joinSegments(segs)
	res, err := provider.Synthesize(ctx, ttsprovider.SynthesizeRequest{
		Text:     joined,
		VoiceID:  voiceID,
		Quality:  quality,
		Encoding: enc,
	})
	if err != nil {
		return Result{}, apperrors.NewJobError(apperrors.SynthesisFailed, "synthesizing", "single-call synthesis request failed", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return Result{}, apperrors.NewJobError(apperrors.SynthesisFailed, "synthesizing", "failed to create output file", err)
	}
	defer f.Close()
	n, err := copyAll(f, res.Audio)
	if err != nil {
		os.Remove(outputPath)
		return Result{}, apperrors.NewJobError(apperrors.SynthesisFailed, "synthesizing", "failed to write output audio", err)
	}

	duration := res.DurationS
	if duration == 0 {
		duration = lastEnd.Seconds()
	}

	return Result{
		AudioFilePath:     outputPath,
		DurationSeconds:   duration,
		FileSizeBytes:     n,
		Format:            res.Format,
		SampleRate:        res.SampleRate,
		EstimatedCost:     cost,
		Provider:          provider.ID(),
		VoiceID:           voiceID,
		Method:            MethodSingleCall,
		SegmentsProcessed: len(segs),
		TotalCharacters:   totalChars,
	}, nil
}

// group is a bounded run of consecutive speakable segments synthesized
// together in chunked mode.
type group struct {
	segs  []timedSegment
	start time.Duration
}

func groupSegments(segs []timedSegment) []group {
	var groups []group
	var cur group
	curChars := 0

	flush := func() {
		if len(cur.segs) > 0 {
			groups = append(groups, cur)
		}
		cur = group{}
		curChars = 0
	}

	for _, s := range segs {
		if len(cur.segs) == 0 {
			cur.start = s.start
		}
		wouldChars := curChars + len(s.text)
		if len(cur.segs) > 0 && (wouldChars > MaxChunkChars || len(cur.segs) >= MaxChunkSegments) {
			flush()
			cur.start = s.start
		}
		cur.segs = append(cur.segs, s)
		curChars += len(s.text)
	}
	flush()
	return groups
}

func synthesizeChunked(ctx context.Context, provider ttsprovider.Provider, segs []timedSegment, lastEnd time.Duration, voiceID, outputPath string, opts Options, enc ttsprovider.Encoding, cost float64, totalChars int) (Result, error) {
	groups := groupSegments(segs)
	groupPCM := make([][]int, len(groups))
	var completed int64

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(MaxParallelSynthesis)

	for i, g := range groups {
		i, g := i, g
		eg.Go(func() error {
			joined := joinSegments(g.segs)
			res, err := provider.Synthesize(egCtx, ttsprovider.SynthesizeRequest{
				Text:     joined,
				VoiceID:  voiceID,
				Quality:  opts.Quality,
				Encoding: wavEncoding(enc),
			})
			if err != nil {
				return apperrors.NewJobError(apperrors.SynthesisFailed, "synthesizing", fmt.Sprintf("chunk %d/%d synthesis failed", i+1, len(groups)), err)
			}
			pcm, err := decodeWAVSamples(res.Audio)
			if err != nil {
				return apperrors.NewJobError(apperrors.SynthesisFailed, "synthesizing", fmt.Sprintf("chunk %d/%d audio decode failed", i+1, len(groups)), err)
			}
			groupPCM[i] = pcm
			n := atomic.AddInt64(&completed, 1)
			if opts.OnProgress != nil {
				opts.OnProgress(int(n), len(groups))
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return Result{}, err
	}

	sampleRate := wavEncoding(enc).SampleRate
	channels := wavEncoding(enc).Channels
	base := newSilentBuffer(lastEnd, sampleRate, channels)
	for i, g := range groups {
		overlayAt(base, groupPCM[i], g.start, sampleRate, channels)
	}

	if err := encodeWAV(outputPath, base, sampleRate, channels); err != nil {
		return Result{}, apperrors.NewJobError(apperrors.SynthesisFailed, "synthesizing", "failed to encode assembled audio", err)
	}
	info, err := os.Stat(outputPath)
	var size int64
	if err == nil {
		size = info.Size()
	}

	logger.Info("chunked synthesis assembled", "groups", len(groups), "duration_s", lastEnd.Seconds())

	return Result{
		AudioFilePath:     outputPath,
		DurationSeconds:   lastEnd.Seconds(),
		FileSizeBytes:     size,
		Format:            "wav",
		SampleRate:        sampleRate,
		EstimatedCost:     cost,
		Provider:          provider.ID(),
		VoiceID:           voiceID,
		Method:            MethodChunked,
		SegmentsProcessed: len(segs),
		TotalCharacters:   totalChars,
	}, nil
}

func wavEncoding(base ttsprovider.Encoding) ttsprovider.Encoding {
	e := base
	e.Container = "wav"
	if e.SampleRate == 0 {
		e.SampleRate = 24000
	}
	if e.Channels == 0 {
		e.Channels = 1
	}
	return e
}

func joinSegments(segs []timedSegment) string {
	texts := make([]string, len(segs))
	for i, s := range segs {
		texts[i] = s.text
	}
	return joinWithSpace(texts)
}

func joinWithSpace(texts []string) string {
	out := ""
	for i, t := range texts {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}

func copyAll(f *os.File, r io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			w, werr := f.Write(buf[:n])
			total += int64(w)
			if werr != nil {
				return total, werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return total, nil
			}
			return total, err
		}
	}
}
