package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/kovacsmedia/dubctl/internal/job"
	"github.com/kovacsmedia/dubctl/internal/logger"
	"github.com/kovacsmedia/dubctl/internal/mux"
	"github.com/kovacsmedia/dubctl/internal/openai"
	"github.com/kovacsmedia/dubctl/internal/transcribe"
	"github.com/kovacsmedia/dubctl/internal/translator"
	"github.com/kovacsmedia/dubctl/internal/ttsprovider"
)

type submitOptions struct {
	testMode        bool
	breathDetection bool

	postprocess      bool
	postprocessModel string

	translate          bool
	targetLanguage     string
	translationContext string
	targetAudience     string
	desiredTone        string
	translationQuality string

	synthesize   bool
	ttsProvider  string
	voiceID      string
	audioQuality string

	mux                  bool
	videoFormat          string
	preserveVideoQuality bool
	preview              bool

	maxCostUSD float64

	geminiModel string
	openaiModel string

	tempDir string
	dataDir string

	allowEnv bool
	envOnly  bool
	debug    bool
}

func newSubmitCmd() *cobra.Command {
	opts := submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit <url>",
		Short: "Submit a video for transcription, translation, synthesis, and muxing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return fmt.Errorf("a video url or path is required")
			}
			return runSubmit(cmd, args, &opts)
		},
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addSubmitFlags(cmd, &opts)
	return cmd
}

func addSubmitFlags(cmd *cobra.Command, opts *submitOptions) {
	cmd.Flags().BoolVar(&opts.testMode, "test-mode", false, "Process only a short representative clip")
	cmd.Flags().BoolVar(&opts.breathDetection, "breath-detection", false, "Mark breath pauses in the transcript")

	cmd.Flags().BoolVar(&opts.postprocess, "postprocess", false, "Run an LLM cleanup pass over the raw transcript")
	cmd.Flags().StringVar(&opts.postprocessModel, "postprocess-model", "auto-detect", "Model used for the postprocess pass")

	cmd.Flags().BoolVar(&opts.translate, "translate", false, "Translate the transcript")
	cmd.Flags().StringVar(&opts.targetLanguage, "target-language", "", "Target language code (required with --translate)")
	cmd.Flags().StringVar(&opts.translationContext, "context", "casual", "Translation context profile")
	cmd.Flags().StringVar(&opts.targetAudience, "audience", "", "Target audience description")
	cmd.Flags().StringVar(&opts.desiredTone, "tone", "", "Desired tone")
	cmd.Flags().StringVar(&opts.translationQuality, "translation-quality", "medium", "Translation quality: low, medium, high")

	cmd.Flags().BoolVar(&opts.synthesize, "synthesize", false, "Synthesize dubbed audio")
	cmd.Flags().StringVar(&opts.ttsProvider, "tts-provider", "auto", "TTS provider: auto, premium, cloud")
	cmd.Flags().StringVar(&opts.voiceID, "voice-id", "", "Voice id (required unless tts-provider is auto)")
	cmd.Flags().StringVar(&opts.audioQuality, "audio-quality", "medium", "Audio quality: low, medium, high")

	cmd.Flags().BoolVar(&opts.mux, "mux", false, "Mux the synthesized audio into the source video")
	cmd.Flags().StringVar(&opts.videoFormat, "video-format", "mp4", "Output video container: mp4, webm, avi, mkv")
	cmd.Flags().BoolVar(&opts.preserveVideoQuality, "preserve-video-quality", false, "Copy the source video stream instead of re-encoding")
	cmd.Flags().BoolVar(&opts.preview, "preview", false, "Produce a short preview instead of the full video")

	cmd.Flags().Float64Var(&opts.maxCostUSD, "max-cost", 0, "Reject the job up front if its estimated cost exceeds this many USD (0 disables the check)")

	cmd.Flags().StringVar(&opts.geminiModel, "gemini-model", "gemini-2.0-flash", "Gemini model used for transcription")
	cmd.Flags().StringVar(&opts.openaiModel, "openai-model", "gpt-4o-mini", "OpenAI model used as the translation fallback leg")

	cmd.Flags().StringVar(&opts.tempDir, "temp-dir", defaultTempDir(), "Scratch directory for working files")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", defaultDataDir(), "Directory kept job artifacts are written to")

	cmd.Flags().BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading API keys from environment variables")
	cmd.Flags().BoolVar(&opts.envOnly, "env-only", false, "Use only environment variables for API keys")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
}

func defaultTempDir() string {
	return filepath.Join(os.TempDir(), "dubctl")
}

func defaultDataDir() string {
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, "dubctl", "data")
	}
	return filepath.Join(os.TempDir(), "dubctl-data")
}

// optionalKey resolves service's credential without an interactive prompt,
// returning "" rather than an error when none is found — used for a
// provider that participates only as an optional fallback leg (the
// region x model fallback sequence tolerates a missing leg).
func optionalKey(service string, allowEnv bool) string {
	if key, _ := getKey(service, false); key != "" {
		return key
	}
	if allowEnv {
		if key, ok := getEnvKey(service); ok {
			return key
		}
	}
	return ""
}

func runSubmit(cmd *cobra.Command, args []string, opts *submitOptions) error {
	logLevel := logger.LevelInfo
	if opts.debug {
		logLevel = logger.LevelDebug
	}
	logger.Init(logLevel, nil)

	req := job.Request{
		URL:                  args[0],
		TestMode:             opts.testMode,
		BreathDetection:      opts.breathDetection,
		UsePostprocess:       opts.postprocess,
		PostprocessModel:     opts.postprocessModel,
		EnableTranslation:    opts.translate,
		TargetLanguage:       opts.targetLanguage,
		TranslationContext:   translator.ContextProfile(opts.translationContext),
		TargetAudience:       opts.targetAudience,
		DesiredTone:          opts.desiredTone,
		TranslationQuality:   translator.Quality(opts.translationQuality),
		EnableSynthesis:      opts.synthesize,
		TTSProvider:          opts.ttsProvider,
		VoiceID:              opts.voiceID,
		AudioQuality:         ttsprovider.AudioQuality(opts.audioQuality),
		EnableVideoMuxing:    opts.mux,
		VideoFormat:          mux.VideoFormat(opts.videoFormat),
		PreserveVideoQuality: opts.preserveVideoQuality,
		PreviewMode:          opts.preview,
	}
	if opts.maxCostUSD > 0 {
		req.MaxCostUSD = &opts.maxCostUSD
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	orch, err := buildOrchestrator(ctx, opts)
	if err != nil {
		return err
	}

	stateDir, err := statusDir()
	if err != nil {
		return fmt.Errorf("resolve state directory: %w", err)
	}

	j, err := orch.Submit(ctx, req, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "job submitted: %s\n", j.ID())
	return watchJob(cmd, ctx, j, stateDir)
}

// buildOrchestrator wires a job.Orchestrator from resolved credentials,
// enabling only the capability collaborators the requested stages actually
// need; providers are lazily constructed, never module-global.
func buildOrchestrator(ctx context.Context, opts *submitOptions) (*job.Orchestrator, error) {
	if err := os.MkdirAll(opts.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	if err := os.MkdirAll(opts.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	geminiKey, source, err := resolveAPIKey("gemini", opts.allowEnv, opts.envOnly)
	if err != nil {
		return nil, fmt.Errorf("transcription requires a Gemini API key: %w", err)
	}
	logger.Info("using API key", "service", "gemini", "source", source)

	geminiClient, err := genai.NewClient(ctx, option.WithAPIKey(geminiKey))
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}
	geminiGen := translator.NewGeminiTextGenerator(geminiClient)

	var openaiGen translator.TextGenerator
	if openaiKey := optionalKey("openai", opts.allowEnv); openaiKey != "" {
		openaiGen = translator.NewOpenAITextGenerator(openai.NewClient(openaiKey, opts.openaiModel))
	}

	orch := &job.Orchestrator{
		Registry:    job.NewRegistry(),
		Transcriber: transcribe.New(geminiClient, opts.geminiModel, opts.tempDir, translator.DefaultFallbackSequence(geminiGen, openaiGen)),
		TempDir:     opts.tempDir,
		DataDir:     opts.dataDir,
	}

	if opts.translate {
		orch.Translator = translator.New(translator.DefaultFallbackSequence(geminiGen, openaiGen))
	}

	if opts.synthesize {
		ttsReg, err := buildTTSRegistry(opts)
		if err != nil {
			return nil, err
		}
		orch.TTSRegistry = ttsReg
	}

	if opts.mux {
		orch.Muxer = mux.New(opts.tempDir)
	}

	return orch, nil
}

func buildTTSRegistry(opts *submitOptions) (*ttsprovider.Registry, error) {
	var providers []ttsprovider.Provider

	switch opts.ttsProvider {
	case "premium":
		key, source, err := resolveAPIKey("premium", opts.allowEnv, opts.envOnly)
		if err != nil {
			return nil, err
		}
		logger.Info("using API key", "service", "premium", "source", source)
		providers = append(providers, ttsprovider.NewPremiumProvider(key, ""))
	case "cloud":
		key, source, err := resolveAPIKey("cloud", opts.allowEnv, opts.envOnly)
		if err != nil {
			return nil, err
		}
		logger.Info("using API key", "service", "cloud", "source", source)
		providers = append(providers, ttsprovider.NewCloudProvider(key, ""))
	default:
		if key := optionalKey("premium", opts.allowEnv); key != "" {
			providers = append(providers, ttsprovider.NewPremiumProvider(key, ""))
		}
		if key := optionalKey("cloud", opts.allowEnv); key != "" {
			providers = append(providers, ttsprovider.NewCloudProvider(key, ""))
		}
		if len(providers) == 0 {
			return nil, fmt.Errorf("synthesis requested but no TTS provider credentials are available (premium or cloud)")
		}
	}

	return ttsprovider.NewRegistry(providers...), nil
}

// watchJob polls j until it reaches a terminal status, persisting a durable
// job record on every tick so a later, separate `dubctl
// status`/`list`/`download` invocation can see it — the core registry j
// lives in is in-memory-only and dies with this process, so this record is
// the CLI's only cross-invocation memory of the job.
func watchJob(cmd *cobra.Command, ctx context.Context, j *job.Job, stateDir string) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastStatus string
	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
		}

		snap := j.Snapshot()
		if err := writeRecord(stateDir, snapshotToRecord(snap)); err != nil {
			logger.Warn("failed to persist job record", "job_id", j.ID(), "error", err)
		}
		if string(snap.Status) != lastStatus {
			logger.Info("progress", "status", snap.Status, "pct", snap.Progress)
			lastStatus = string(snap.Status)
		}

		if cancelRequested(stateDir, j.ID()) {
			j.Cancel()
		}

		if job.IsTerminal(snap.Status) {
			clearCancelMarker(stateDir, j.ID())
			return finishSubmit(cmd, ctx, snap)
		}

		if ctx.Err() != nil {
			j.Cancel()
		}
	}
}

func finishSubmit(cmd *cobra.Command, ctx context.Context, snap job.Snapshot) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status: %s\n", snap.Status)
	fmt.Fprintf(out, "estimated cost: $%.4f, actual cost: $%.4f\n", snap.Cost.EstimatedTotal, snap.Cost.ActualTotal)
	if snap.Transcript != nil {
		fmt.Fprintf(out, "transcript: %s\n", snap.Transcript.FilePath)
	}
	if snap.Translation != nil {
		fmt.Fprintf(out, "translation: %s\n", snap.Translation.FilePath)
	}
	if snap.Synthesis != nil {
		fmt.Fprintf(out, "audio: %s\n", snap.Synthesis.AudioFilePath)
	}
	if snap.Muxing != nil {
		fmt.Fprintf(out, "video: %s\n", snap.Muxing.VideoFilePath)
	}

	switch snap.Status {
	case job.StatusCompleted:
		return nil
	case job.StatusCancelled:
		if ctx.Err() != nil {
			logger.Warn("job cancelled", "reason", "interrupt")
			return nil
		}
		return fmt.Errorf("job was cancelled")
	default:
		if snap.Err != nil {
			return snap.Err
		}
		return fmt.Errorf("job finished with status %s", snap.Status)
	}
}
