package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kovacsmedia/dubctl/internal/apperrors"
	"github.com/kovacsmedia/dubctl/internal/cost"
	"github.com/kovacsmedia/dubctl/internal/files"
	"github.com/kovacsmedia/dubctl/internal/logger"
	"github.com/kovacsmedia/dubctl/internal/mux"
	"github.com/kovacsmedia/dubctl/internal/progress"
	"github.com/kovacsmedia/dubctl/internal/synthesis"
	"github.com/kovacsmedia/dubctl/internal/timedscript"
	"github.com/kovacsmedia/dubctl/internal/transcript"
	"github.com/kovacsmedia/dubctl/internal/translator"
	"github.com/kovacsmedia/dubctl/internal/ttsprovider"
)

// Stage soft deadlines: exceeding one fails the stage with
// apperrors.Timeout.
const (
	transcriptionDeadline = 30 * time.Minute
	translationDeadline   = 10 * time.Minute
	synthesisDeadline     = 30 * time.Minute
	muxingDeadline        = 30 * time.Minute
)

// VideoMuxer is the stage-4 capability the orchestrator depends on, narrowed
// to the two operations it calls. *mux.Muxer satisfies this directly; tests
// inject a fake to exercise the muxing stage without shelling out to
// yt-dlp/ffmpeg (same "module-global instances -> dependency-injected
// constructors" redesign as Transcriber).
type VideoMuxer interface {
	ReplaceAudio(ctx context.Context, videoSource, audioFile, outputPath string, preserveQuality bool, format mux.VideoFormat) (mux.Result, error)
	CreatePreview(ctx context.Context, videoSource, audioFile, outputPath string, durationSeconds int) (mux.Result, error)
}

// Orchestrator drives the four-stage pipeline for every submitted job.
// Its dependencies are all interfaces or already capability-abstracted
// types, injected at construction per the "module-global instances ->
// dependency-injected constructors" redesign rather than
// resolved from package globals.
type Orchestrator struct {
	Registry    *Registry
	Transcriber Transcriber
	Translator  *translator.Translator
	TTSRegistry *ttsprovider.Registry
	Muxer       VideoMuxer

	// TempDir holds per-job working files; DataDir holds files kept past
	// job completion. Both are shared across jobs; collisions are avoided
	// by including the job id in every filename.
	TempDir string
	DataDir string
}

// Submit validates req, creates a PENDING job, computes an a-priori cost
// estimate, and either fails the job immediately with BudgetExceeded — the
// budget is a hard gate before the fact, checked before any external call —
// or launches the stage pipeline in its own goroutine and returns the job
// immediately. listener, if non-nil, receives every
// progress update for this job.
func (o *Orchestrator) Submit(ctx context.Context, req Request, listener progress.Listener) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	j := o.Registry.Create(req, listener)

	estimate := o.estimateCost(req)
	j.mu.Lock()
	j.costInfo.EstimatedTotal = estimate.Total()
	j.costInfo.PerStage = estimate
	j.mu.Unlock()

	if req.MaxCostUSD != nil && estimate.Total() > *req.MaxCostUSD {
		o.failJob(j, apperrors.NewJobError(apperrors.BudgetExceeded, "",
			fmt.Sprintf("estimated cost $%.4f exceeds budget $%.4f", estimate.Total(), *req.MaxCostUSD), nil))
		return j, nil
	}

	go o.run(context.WithoutCancel(ctx), j)
	return j, nil
}

// estimateCost computes the a-priori breakdown for req. Without a
// transcript yet, character counts for translation/synthesis are unknown;
// this estimate uses a duration-derived proxy, so a short test-mode clip or
// a full one both get a reasonable estimate before any external call is
// made.
func (o *Orchestrator) estimateCost(req Request) cost.Breakdown {
	durationMinutes := 10.0
	if req.TestMode {
		durationMinutes = 1.0
	}
	estimatedChars := int(durationMinutes * 900) // ~150 wpm * ~6 chars/word

	rate := o.providerRateEstimate(req.TTSProvider, req.EnableSynthesis)

	return cost.Estimate(cost.EstimateParams{
		TranscriptionEnabled:   true,
		DurationMinutes:        durationMinutes,
		TranslationEnabled:     req.EnableTranslation,
		CharacterCount:         estimatedChars,
		SynthesisEnabled:       req.EnableSynthesis,
		SynthesisCharCount:     estimatedChars,
		ProviderRatePer1kChars: rate,
		MuxingEnabled:          req.EnableVideoMuxing,
	})
}

// providerRateEstimate looks up a per-1k-character rate for the a-priori
// cost estimate, before any provider probe has run: the explicit
// provider's advertised rate if named, or the cheapest enumerated
// provider's rate under AUTO.
func (o *Orchestrator) providerRateEstimate(providerID string, enabled bool) float64 {
	if !enabled || o.TTSRegistry == nil {
		return 0
	}
	rates := o.TTSRegistry.Rates()
	if len(rates) == 0 {
		return 0
	}
	if providerID != "" && providerID != "auto" {
		if rate, ok := rates[providerID]; ok {
			return rate
		}
	}
	var cheapest float64
	first := true
	for _, rate := range rates {
		if first || rate < cheapest {
			cheapest = rate
			first = false
		}
	}
	return cheapest
}

// run executes every enabled stage in order, updating j as it goes. It
// always leaves j in a terminal state before returning.
func (o *Orchestrator) run(ctx context.Context, j *Job) {
	defer func() {
		if r := recover(); r != nil {
			o.failJob(j, apperrors.NewJobError(apperrors.InvalidInput, "", fmt.Sprintf("panic during job: %v", r), nil))
		}
	}()
	started := time.Now()
	j.mu.Lock()
	j.startedAt = &started
	j.mu.Unlock()

	req := j.request

	if o.checkCancelled(j) {
		return
	}
	j.agg.Report(StatusTranscribing, 0)
	tr, err := o.runTranscription(ctx, j, req)
	if err != nil {
		o.failStage(j, "transcribing", err)
		return
	}
	j.mu.Lock()
	j.transcript = tr
	j.mu.Unlock()
	j.agg.Report(StatusTranscribing, 100)

	if req.EnableTranslation {
		if o.checkCancelled(j) {
			return
		}
		trans, err := o.runTranslation(ctx, j, req, tr)
		if err != nil {
			o.failStage(j, "translating", err)
			return
		}
		j.mu.Lock()
		j.translation = trans
		j.mu.Unlock()
		j.agg.Report(StatusTranslating, 100)
	}

	if req.EnableSynthesis {
		if o.checkCancelled(j) {
			return
		}
		j.mu.Lock()
		translation := j.translation
		j.mu.Unlock()
		if translation == nil && tr == nil {
			o.failStage(j, "synthesizing", apperrors.NewJobError(apperrors.MissingPrerequisite, "synthesizing", "synthesis requires a translation result or the original transcript", nil))
			return
		}
		synth, err := o.runSynthesis(ctx, j, req, tr, translation)
		if err != nil {
			o.failStage(j, "synthesizing", err)
			return
		}
		j.mu.Lock()
		j.synthesis = synth
		j.mu.Unlock()
		j.agg.Report(StatusSynthesizing, 100)
	}

	if req.EnableVideoMuxing {
		if o.checkCancelled(j) {
			return
		}
		j.mu.Lock()
		synth := j.synthesis
		j.mu.Unlock()
		if synth == nil {
			o.failStage(j, "muxing", apperrors.NewJobError(apperrors.MissingPrerequisite, "muxing", "muxing requires a synthesis result", nil))
			return
		}
		mr, err := o.runMuxing(ctx, j, req, synth)
		if err != nil {
			o.failStage(j, "muxing", err)
			return
		}
		j.mu.Lock()
		j.muxing = mr
		j.mu.Unlock()
		j.agg.Report(StatusMuxing, 100)
	}

	j.agg.Report(progress.StageFinalizing, 0)
	o.finalizeCost(j)
	j.agg.Report(progress.StageFinalizing, 100)
	o.completeJob(j)
}

// checkCancelled observes the cooperative-cancellation flag at a stage
// boundary and, if set, transitions the job to CANCELLED
// and runs cleanup.
func (o *Orchestrator) checkCancelled(j *Job) bool {
	if !j.isCancelled() {
		return false
	}
	o.terminate(j, StatusCancelled, nil)
	return true
}

// stageFailureKind is the JobKind a plain (non-JobError) error gets tagged
// with when it surfaces from the named stage — e.g. a raw error from the
// injected Transcriber. Each pipeline package already returns well-typed
// *apperrors.JobError for its own failures (see translator/synthesis/mux),
// so this fallback only ever fires for an external collaborator's bare
// error.
func stageFailureKind(stage string) apperrors.JobKind {
	switch stage {
	case "transcribing":
		return apperrors.TranscriptionFailed
	case "translating":
		return apperrors.TranslationFailed
	case "synthesizing":
		return apperrors.SynthesisFailed
	case "muxing":
		return apperrors.MuxingFailed
	default:
		return apperrors.InvalidInput
	}
}

func (o *Orchestrator) failStage(j *Job, stage string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = apperrors.NewJobError(apperrors.Timeout, stage, "stage exceeded its soft deadline", err)
	}
	je, ok := err.(*apperrors.JobError)
	if !ok {
		je = apperrors.NewJobError(stageFailureKind(stage), stage, err.Error(), err)
	}
	if je.Stage == "" {
		je.Stage = stage
	}
	o.failJob(j, je)
}

func (o *Orchestrator) failJob(j *Job, je *apperrors.JobError) {
	o.terminate(j, StatusFailed, je)
}

func (o *Orchestrator) terminate(j *Job, status Status, je *apperrors.JobError) {
	now := time.Now()
	j.mu.Lock()
	j.jobErr = je
	j.completed = &now
	j.mu.Unlock()
	j.agg.Report(status, 0)
	// Purge, not RemoveAll: a FAILED/CANCELLED job leaves nothing behind
	// even if an earlier stage's result was already Kept.
	if err := j.cleanupReg.Purge(); err != nil {
		logger.Warn("job cleanup failed", "job_id", j.id, "error", err)
	}
}

func (o *Orchestrator) completeJob(j *Job) {
	now := time.Now()
	j.mu.Lock()
	j.completed = &now
	j.mu.Unlock()
	j.agg.Report(StatusCompleted, 100)
	// Every remaining tracked (non-kept) temp file is removed; stage
	// results were already Kept as each stage finished.
	if err := j.cleanupReg.RemoveAll(); err != nil {
		logger.Warn("job cleanup failed", "job_id", j.id, "error", err)
	}
}

// finalizeCost sums each completed stage's actual cost. A post-hoc budget
// overage only warns; the hard gate ran before the job started.
func (o *Orchestrator) finalizeCost(j *Job) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var total float64
	if j.transcript != nil {
		total += j.costInfo.PerStage.Transcription
	}
	if j.translation != nil {
		total += j.costInfo.PerStage.Translation
	}
	if j.synthesis != nil {
		total += j.synthesis.EstimatedCost
	}
	if j.muxing != nil {
		storageCost := float64(j.muxing.FileSizeBytes) / (1024 * 1024 * 1024) * 0.02
		total += storageCost
	}
	j.costInfo.ActualTotal = total

	if j.request.MaxCostUSD != nil && total > *j.request.MaxCostUSD {
		logger.Warn("job exceeded budget", "job_id", j.id, "actual", total, "budget", *j.request.MaxCostUSD)
	}
}

// jobDataPath returns the path a stage should write its *kept* result to:
// DataDir when configured, so a completed job's artifacts live somewhere
// distinct from TempDir's scratch files, falling back to TempDir when
// DataDir is unset (e.g. in tests that only configure one directory). The
// path is routed through files.SafePath so an existing file is never
// silently overwritten: a collision gets a suffixed fallback name instead.
func (o *Orchestrator) jobDataPath(j *Job, name string) (string, error) {
	dir := o.DataDir
	if dir == "" {
		dir = o.TempDir
	}
	path, changed, err := files.SafePath(filepath.Join(dir, fmt.Sprintf("%s_%s", j.id, name)))
	if err != nil {
		return "", err
	}
	if changed {
		logger.Warn("output path already exists, using fallback name", "job_id", j.id, "path", path)
	}
	return path, nil
}

func (o *Orchestrator) runTranscription(ctx context.Context, j *Job, req Request) (*TranscriptResult, error) {
	ctx, cancel := context.WithTimeout(ctx, transcriptionDeadline)
	defer cancel()

	out, err := o.Transcriber.Transcribe(ctx, TranscribeRequest{
		VideoSource:      req.URL,
		TestMode:         req.TestMode,
		BreathDetection:  req.BreathDetection,
		UsePostprocess:   req.UsePostprocess,
		PostprocessModel: req.PostprocessModel,
	}, j.agg.StageCallback(StatusTranscribing))
	if err != nil {
		return nil, err
	}

	if _, err := timedscript.ExtractSegments(out.Script); err != nil {
		return nil, apperrors.NewJobError(apperrors.InvalidInput, "transcribing", "transcriber produced an invalid timed script", err)
	}

	body, err := transcript.FormatFile(transcript.Preamble{
		VideoTitle:    out.VideoTitle,
		ProcessedAt:   time.Now(),
		Postprocessed: req.UsePostprocess,
	}, out.Script, out.DurationSeconds, true)
	if err != nil {
		return nil, apperrors.NewJobError(apperrors.InvalidInput, "transcribing", "failed to format transcript file", err)
	}

	path, err := o.jobDataPath(j, "transcript.txt")
	if err != nil {
		return nil, apperrors.NewJobError(apperrors.TranscriptionFailed, "transcribing", "failed to allocate transcript path", err)
	}
	j.cleanupReg.Track(path)
	if err := files.AtomicWrite(path, []byte(body), 0o644); err != nil {
		return nil, apperrors.NewJobError(apperrors.InvalidInput, "transcribing", "failed to write transcript file", err)
	}
	j.cleanupReg.Keep(path)

	return &TranscriptResult{FilePath: path, Script: out.Script, DurationSeconds: out.DurationSeconds}, nil
}

func (o *Orchestrator) runTranslation(ctx context.Context, j *Job, req Request, tr *TranscriptResult) (*TranslationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, translationDeadline)
	defer cancel()

	quality := req.TranslationQuality
	if quality == "" {
		quality = translator.QualityMedium
	}

	result, err := o.Translator.Translate(ctx, tr.Script, translator.Options{
		TargetLanguage: req.TargetLanguage,
		Context:        req.TranslationContext,
		Audience:       req.TargetAudience,
		Tone:           req.DesiredTone,
		Quality:        quality,
		PreserveTiming: true,
		OnProgress: func(chunkIndex, totalChunks int) {
			pct := 100
			if totalChunks > 0 {
				pct = (chunkIndex + 1) * 100 / totalChunks
			}
			j.agg.Report(StatusTranslating, pct)
		},
		IsCancelled: j.isCancelled,
	})
	if err != nil {
		return nil, err
	}
	if j.isCancelled() {
		return nil, apperrors.NewJobError(apperrors.Cancelled, "translating", "cancelled during translation", nil)
	}

	path, err := o.jobDataPath(j, "translation.txt")
	if err != nil {
		return nil, apperrors.NewJobError(apperrors.TranslationFailed, "translating", "failed to allocate translation path", err)
	}
	j.cleanupReg.Track(path)
	if err := files.AtomicWrite(path, []byte(result.Text), 0o644); err != nil {
		return nil, apperrors.NewJobError(apperrors.InvalidInput, "translating", "failed to write translation file", err)
	}
	j.cleanupReg.Keep(path)

	return &TranslationResult{FilePath: path, Script: result.Text, ChunksUsed: result.ChunksUsed}, nil
}

func (o *Orchestrator) runSynthesis(ctx context.Context, j *Job, req Request, tr *TranscriptResult, translation *TranslationResult) (*synthesis.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, synthesisDeadline)
	defer cancel()

	script := tr.Script
	if translation != nil {
		script = translation.Script
	}

	var pref ttsprovider.Preference
	if req.TTSProvider == "" || req.TTSProvider == "auto" {
		pref = ttsprovider.AutoPreference()
	} else {
		pref = ttsprovider.ExplicitPreference(req.TTSProvider)
	}
	provider, err := o.TTSRegistry.Select(ctx, pref)
	if err != nil {
		return nil, err
	}

	voiceID, err := o.resolveVoice(ctx, provider, req.VoiceID)
	if err != nil {
		return nil, err
	}

	quality := req.AudioQuality
	if quality == "" {
		quality = ttsprovider.QualityMedium
	}

	ext := provider.EncodingFor(quality).Container
	if method, merr := synthesis.PlannedMethod(script); merr == nil && method == synthesis.MethodChunked {
		ext = "wav"
	}
	if ext == "" {
		ext = "wav"
	}
	path, err := o.jobDataPath(j, fmt.Sprintf("synthesis.%s", ext))
	if err != nil {
		return nil, apperrors.NewJobError(apperrors.SynthesisFailed, "synthesizing", "failed to allocate synthesis output path", err)
	}
	j.cleanupReg.Track(path)

	result, err := synthesis.SynthesizeScript(ctx, provider, script, voiceID, path, synthesis.Options{
		Quality: quality,
		OnProgress: func(done, total int) {
			pct := 100
			if total > 0 {
				pct = done * 100 / total
			}
			j.agg.Report(StatusSynthesizing, pct)
		},
	})
	if err != nil {
		return nil, err
	}
	j.cleanupReg.Keep(path)
	return &result, nil
}

// resolveVoice settles which voice id synthesis runs with: the caller's
// choice when the selected provider knows it, its cross-provider equivalent
// when selection changed the provider underneath the caller, or the
// provider's first listed voice when the caller left
// the choice to AUTO with no voice of their own.
func (o *Orchestrator) resolveVoice(ctx context.Context, provider ttsprovider.Provider, requested string) (string, error) {
	if requested == "" {
		voices, err := provider.ListVoices(ctx)
		if err != nil {
			return "", apperrors.NewJobError(apperrors.ProviderNotAvailable, "synthesizing", "failed to list voices for default-voice selection", err)
		}
		if len(voices) == 0 {
			return "default", nil
		}
		return voices[0].VoiceID, nil
	}

	ok, err := provider.ValidateVoiceID(ctx, requested)
	if err != nil || ok {
		// A transient validation error is left for SynthesizeScript's own
		// check to surface with proper retry/fail-fast classification.
		return requested, nil
	}
	if mapped, found := o.TTSRegistry.MapVoiceTo(provider.ID(), requested); found {
		logger.Info("mapped voice across providers", "requested", requested, "mapped", mapped, "provider", provider.ID())
		return mapped, nil
	}
	return requested, nil
}

func (o *Orchestrator) runMuxing(ctx context.Context, j *Job, req Request, synth *synthesis.Result) (*mux.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, muxingDeadline)
	defer cancel()

	format := req.VideoFormat
	if format == "" {
		format = mux.FormatMP4
	}

	outPath, err := o.jobDataPath(j, fmt.Sprintf("output.%s", format))
	if err != nil {
		return nil, apperrors.NewJobError(apperrors.MuxingFailed, "muxing", "failed to allocate muxed output path", err)
	}
	j.cleanupReg.Track(outPath)

	var result mux.Result
	if req.PreviewMode {
		result, err = o.Muxer.CreatePreview(ctx, req.URL, synth.AudioFilePath, outPath, 30)
	} else {
		result, err = o.Muxer.ReplaceAudio(ctx, req.URL, synth.AudioFilePath, outPath, req.PreserveVideoQuality, format)
	}
	if err != nil {
		return nil, err
	}
	j.cleanupReg.Keep(outPath)

	if _, statErr := os.Stat(outPath); statErr != nil {
		return nil, apperrors.NewJobError(apperrors.MuxingFailed, "muxing", "muxed output file missing", statErr)
	}

	return &result, nil
}
