package job

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kovacsmedia/dubctl/internal/apperrors"
	"github.com/kovacsmedia/dubctl/internal/mux"
	"github.com/kovacsmedia/dubctl/internal/translator"
	"github.com/kovacsmedia/dubctl/internal/ttsprovider"
)

const sampleScript = "[00:00:00] Hello there, friend.\n[00:00:02] [short pause]\n[00:00:03] How are you today?\n"

// fakeTranscriber returns f.err when set, otherwise f.script (sampleScript
// when f.script is empty).
type fakeTranscriber struct {
	script   string
	duration float64
	err      error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req TranscribeRequest, onProgress func(int)) (TranscribeOutput, error) {
	if f.err != nil {
		return TranscribeOutput{}, f.err
	}
	if onProgress != nil {
		onProgress(100)
	}
	script := f.script
	if script == "" {
		script = sampleScript
	}
	return TranscribeOutput{VideoTitle: "Sample", Script: script, DurationSeconds: f.duration}, nil
}

// identityGenerator returns the input prompt translated trivially: every
// timestamp marker preserved, and "translated " inserted before the prose of
// each timed line (pause and empty lines are kept as they are) so the output
// is neither empty nor byte-identical to the source.
type identityGenerator struct{}

func (identityGenerator) GenerateText(ctx context.Context, model, systemPrompt, userPrompt string, cfg translator.GenConfig) (string, error) {
	var out []string
	for _, line := range strings.Split(userPrompt, "\n") {
		if line == "" {
			out = append(out, line)
			continue
		}
		idx := strings.Index(line, "]")
		if idx == -1 {
			out = append(out, line)
			continue
		}
		marker := line[:idx+1]
		rest := strings.TrimSpace(line[idx+1:])
		if rest == "" || strings.HasPrefix(rest, "[") {
			out = append(out, marker+" "+rest)
			continue
		}
		out = append(out, marker+" translated "+rest)
	}
	return strings.Join(out, "\n"), nil
}

// fakeAudioBytes returns a 16-byte RIFF/WAVE-looking prefix (not a complete
// header), sufficient for synthesis's single-call path which only copies
// bytes through, never decodes them.
func fakeAudioBytes() []byte {
	return []byte("RIFF0000WAVEfmt ")
}

type fakeTTSProvider struct {
	id        string
	rate      float64
	available bool
	voices    []ttsprovider.VoiceProfile
}

func (p *fakeTTSProvider) ID() string          { return p.id }
func (p *fakeTTSProvider) DisplayName() string { return p.id }
func (p *fakeTTSProvider) Synthesize(ctx context.Context, req ttsprovider.SynthesizeRequest) (ttsprovider.SynthesizeResult, error) {
	return ttsprovider.SynthesizeResult{Audio: bytes.NewReader(fakeAudioBytes()), DurationS: 3, Format: "wav", SampleRate: 24000}, nil
}
func (p *fakeTTSProvider) ListVoices(ctx context.Context) ([]ttsprovider.VoiceProfile, error) {
	return p.voices, nil
}
func (p *fakeTTSProvider) ValidateVoiceID(ctx context.Context, voiceID string) (bool, error) {
	return true, nil
}
func (p *fakeTTSProvider) EstimateCost(characters int) float64 { return float64(characters) / 1000 * p.rate }
func (p *fakeTTSProvider) RatePer1kChars() float64             { return p.rate }
func (p *fakeTTSProvider) Probe(ctx context.Context) error {
	if !p.available {
		return apperrors.New(apperrors.KindTransient, "probe failed", nil)
	}
	return nil
}
func (p *fakeTTSProvider) EncodingFor(quality ttsprovider.AudioQuality) ttsprovider.Encoding {
	return ttsprovider.Encoding{Container: "wav", SampleRate: 24000, Channels: 1}
}

type fakeMuxer struct {
	called bool
}

func (m *fakeMuxer) ReplaceAudio(ctx context.Context, videoSource, audioFile, outputPath string, preserveQuality bool, format mux.VideoFormat) (mux.Result, error) {
	m.called = true
	if err := os.WriteFile(outputPath, []byte("fake-video"), 0o644); err != nil {
		return mux.Result{}, err
	}
	return mux.Result{VideoFilePath: outputPath, FinalDurationSecs: 3, Format: format}, nil
}

func (m *fakeMuxer) CreatePreview(ctx context.Context, videoSource, audioFile, outputPath string, durationSeconds int) (mux.Result, error) {
	m.called = true
	if err := os.WriteFile(outputPath, []byte("fake-preview"), 0o644); err != nil {
		return mux.Result{}, err
	}
	return mux.Result{VideoFilePath: outputPath, FinalDurationSecs: float64(durationSeconds), Format: mux.FormatMP4, IsPreview: true}, nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeMuxer) {
	t.Helper()
	mx := &fakeMuxer{}
	provider := &fakeTTSProvider{id: "cheap", rate: 1.0, available: true}
	return &Orchestrator{
		Registry:    NewRegistry(),
		Transcriber: &fakeTranscriber{},
		Translator:  translator.New([]translator.RegionModel{{Region: "us-central1", Model: "test-model", Provider: identityGenerator{}}}),
		TTSRegistry: ttsprovider.NewRegistry(provider),
		Muxer:       mx,
		TempDir:     t.TempDir(),
	}, mx
}

func waitTerminal(t *testing.T, j *Job) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := j.Snapshot()
		if IsTerminal(snap.Status) {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state in time, stuck at %s", j.ID(), j.Snapshot().Status)
	return Snapshot{}
}

func TestOrchestrator_FullPipelineSucceeds(t *testing.T) {
	o, mx := newTestOrchestrator(t)

	req := Request{
		URL:                "https://example.com/video.mp4",
		TestMode:           true,
		EnableTranslation:  true,
		TargetLanguage:     "es",
		TranslationContext: translator.ContextCasual,
		EnableSynthesis:    true,
		TTSProvider:        "auto",
		EnableVideoMuxing:  true,
		VideoFormat:        mux.FormatMP4,
	}

	j, err := o.Submit(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	snap := waitTerminal(t, j)
	if snap.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (err=%v)", snap.Status, snap.Err)
	}
	if snap.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", snap.Progress)
	}
	if snap.Transcript == nil || snap.Translation == nil || snap.Synthesis == nil || snap.Muxing == nil {
		t.Fatalf("expected every stage result populated, got %+v", snap)
	}
	if !mx.called {
		t.Fatalf("expected muxer to be invoked")
	}
	if _, err := os.Stat(snap.Muxing.VideoFilePath); err != nil {
		t.Fatalf("expected output video file to exist: %v", err)
	}
	if _, err := os.Stat(snap.Transcript.FilePath); err != nil {
		t.Fatalf("expected transcript file to survive completion: %v", err)
	}
}

func TestSubmit_BudgetExceeded_NeverProbesProvider(t *testing.T) {
	o, mx := newTestOrchestrator(t)
	probed := false
	o.TTSRegistry = ttsprovider.NewRegistry(&probeTrackingProvider{fakeTTSProvider: fakeTTSProvider{id: "cheap", rate: 1.0, available: true}, probed: &probed})

	budget := 0.00001
	req := Request{
		URL:               "https://example.com/video.mp4",
		TestMode:          true,
		EnableSynthesis:   true,
		TTSProvider:       "auto",
		EnableVideoMuxing: false,
		MaxCostUSD:        &budget,
	}

	j, err := o.Submit(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	snap := j.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", snap.Status)
	}
	if snap.Err == nil || snap.Err.Kind != apperrors.BudgetExceeded {
		t.Fatalf("expected BudgetExceeded, got %+v", snap.Err)
	}
	if probed {
		t.Fatalf("expected no provider probe before the budget gate")
	}
	if mx.called {
		t.Fatalf("expected muxer never invoked for a budget-rejected job")
	}
}

// probeTrackingProvider records whether Probe was ever called, to assert the
// a-priori cost estimate never triggers an external call.
type probeTrackingProvider struct {
	fakeTTSProvider
	probed *bool
}

func (p *probeTrackingProvider) Probe(ctx context.Context) error {
	*p.probed = true
	return p.fakeTTSProvider.Probe(ctx)
}

func TestOrchestrator_CancellationBeforeTranscriptionCleansUp(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	req := Request{URL: "https://example.com/video.mp4", TestMode: true}
	j, err := o.Submit(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	j.Cancel()

	snap := waitTerminal(t, j)
	if snap.Status != StatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", snap.Status)
	}
	entries, err := os.ReadDir(o.TempDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover files after a cancelled job, found %v", entries)
	}
}

func TestOrchestrator_TranscriberErrorMapsToTranscriptionFailed(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	o.Transcriber = &fakeTranscriber{err: io.ErrUnexpectedEOF}

	req := Request{URL: "https://example.com/video.mp4", TestMode: true}
	j, err := o.Submit(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	snap := waitTerminal(t, j)
	if snap.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s", snap.Status)
	}
	if snap.Err == nil || snap.Err.Kind != apperrors.TranscriptionFailed {
		t.Fatalf("expected TranscriptionFailed, got %+v", snap.Err)
	}
	if snap.Err.Stage != "transcribing" {
		t.Fatalf("expected stage 'transcribing', got %q", snap.Err.Stage)
	}
}

func TestOrchestrator_NoFilesSurviveAFailedJob(t *testing.T) {
	// Transcription succeeds (and Keeps transcript.txt) before translation
	// fails; the fix under test is that a later-stage failure purges
	// earlier-stage outputs too, not just unkept scratch files.
	o, _ := newTestOrchestrator(t)
	o.Translator = translator.New([]translator.RegionModel{{Model: "broken", Provider: erroringGenerator{}}})

	req := Request{
		URL:               "https://example.com/video.mp4",
		TestMode:          true,
		EnableTranslation: true,
		TargetLanguage:    "es",
	}
	j, err := o.Submit(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	snap := waitTerminal(t, j)
	if snap.Status != StatusFailed {
		t.Fatalf("expected FAILED, got %s (err=%v)", snap.Status, snap.Err)
	}
	if snap.Transcript == nil {
		t.Fatalf("expected transcription to have completed before translation failed")
	}

	entries, err := os.ReadDir(o.TempDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no leftover temp files after a failed job, found %v", entries)
	}
}

// erroringGenerator always fails, forcing every region/model combination in
// its sequence to exhaust and the translation stage to fail.
type erroringGenerator struct{}

func (erroringGenerator) GenerateText(ctx context.Context, model, systemPrompt, userPrompt string, cfg translator.GenConfig) (string, error) {
	return "", io.ErrUnexpectedEOF
}

func TestProviderRateEstimate_PrefersExplicitProvider(t *testing.T) {
	o := &Orchestrator{
		TTSRegistry: ttsprovider.NewRegistry(
			&fakeTTSProvider{id: "cheap", rate: 1.0, available: true},
			&fakeTTSProvider{id: "pricey", rate: 9.0, available: true},
		),
	}
	if rate := o.providerRateEstimate("pricey", true); rate != 9.0 {
		t.Fatalf("expected explicit provider's own rate 9.0, got %v", rate)
	}
	if rate := o.providerRateEstimate("auto", true); rate != 1.0 {
		t.Fatalf("expected cheapest rate 1.0 under auto, got %v", rate)
	}
	if rate := o.providerRateEstimate("auto", false); rate != 0 {
		t.Fatalf("expected 0 when synthesis disabled, got %v", rate)
	}
}

// strictVoiceProvider validates voice ids against its catalogue instead of
// accepting everything, so resolveVoice's mapping path is actually taken.
type strictVoiceProvider struct {
	fakeTTSProvider
}

func (p *strictVoiceProvider) ValidateVoiceID(ctx context.Context, voiceID string) (bool, error) {
	for _, v := range p.voices {
		if v.VoiceID == voiceID {
			return true, nil
		}
	}
	return false, nil
}

func TestResolveVoice_MapsAcrossProviders(t *testing.T) {
	cloud := &strictVoiceProvider{fakeTTSProvider: fakeTTSProvider{
		id: ttsprovider.ProviderCloud, rate: 0.016, available: true,
		voices: []ttsprovider.VoiceProfile{{VoiceID: "en-US-Neural2-F"}},
	}}
	o := &Orchestrator{TTSRegistry: ttsprovider.NewRegistry(cloud)}

	// A premium-namespace voice id requested while the cloud provider got
	// selected resolves via the static equivalence table.
	got, err := o.resolveVoice(context.Background(), cloud, "21m00Tcm4TlvDq8ikWAM")
	if err != nil {
		t.Fatalf("resolveVoice() error = %v", err)
	}
	if got != "en-US-Neural2-F" {
		t.Fatalf("got %q, want en-US-Neural2-F", got)
	}

	// An id the provider already knows passes through untouched.
	got, err = o.resolveVoice(context.Background(), cloud, "en-US-Neural2-F")
	if err != nil || got != "en-US-Neural2-F" {
		t.Fatalf("got %q, err=%v", got, err)
	}

	// No voice at all picks the provider's first listed voice.
	got, err = o.resolveVoice(context.Background(), cloud, "")
	if err != nil || got != "en-US-Neural2-F" {
		t.Fatalf("default voice: got %q, err=%v", got, err)
	}
}

func TestRequest_ValidateRejectsMuxingWithoutSynthesis(t *testing.T) {
	req := Request{URL: "https://example.com/video.mp4", EnableVideoMuxing: true}
	err := req.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	kind, ok := apperrors.JobKindOf(err)
	if !ok || kind != apperrors.InvalidInput {
		t.Fatalf("expected InvalidInput, got %v (ok=%v)", kind, ok)
	}
}

func TestRequest_ValidateRejectsEmptyURL(t *testing.T) {
	req := Request{}
	if err := req.Validate(); err == nil {
		t.Fatalf("expected validation error for empty URL")
	}
}

func TestJobDataPath_IncludesJobIDAndAvoidsCollisions(t *testing.T) {
	o := &Orchestrator{TempDir: t.TempDir()}
	j := &Job{id: "abc123"}

	got, err := o.jobDataPath(j, "transcript.txt")
	if err != nil {
		t.Fatalf("jobDataPath() error = %v", err)
	}
	want := filepath.Join(o.TempDir, "abc123_transcript.txt")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if err := os.WriteFile(want, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	again, err := o.jobDataPath(j, "transcript.txt")
	if err != nil {
		t.Fatalf("jobDataPath() error = %v", err)
	}
	if again == want {
		t.Fatalf("expected a collision-avoiding fallback path, got the occupied one")
	}
}
