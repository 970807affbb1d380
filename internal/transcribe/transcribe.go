// Package transcribe implements the concrete stage-1 collaborator
// (job.Transcriber): downloading a source video/URL's audio track and
// producing a timed script from it via a remote multimodal model. The same
// Gemini client the translator uses supplies the transcription leg too, via
// its audio-input capability; external tools are driven the same way
// internal/mux drives them.
package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/kovacsmedia/dubctl/internal/job"
	"github.com/kovacsmedia/dubctl/internal/logger"
	"github.com/kovacsmedia/dubctl/internal/translator"
)

const (
	downloadTimeout = 10 * time.Minute
	probeTimeout    = 30 * time.Second
	transcribeTimeout = 15 * time.Minute
	testModeClipSeconds = 60
)

// Transcriber adapts a Gemini client to job.Transcriber.
type Transcriber struct {
	client  *genai.Client
	model   string
	tempDir string

	// Postprocess, if non-empty, is the fallback sequence used to run a
	// second reformatting pass over the raw transcript when the caller sets
	// UsePostprocess.
	Postprocess []translator.RegionModel
}

// New constructs a Transcriber. client is a *genai.Client already bound to
// an API key; model is the generative model used for the audio-in,
// timed-script-out call (e.g. "gemini-2.0-flash").
func New(client *genai.Client, model, tempDir string, postprocess []translator.RegionModel) *Transcriber {
	return &Transcriber{client: client, model: model, tempDir: tempDir, Postprocess: postprocess}
}

var _ job.Transcriber = (*Transcriber)(nil)

// Transcribe downloads req.VideoSource's audio, sends it to the configured
// model with a prompt describing the timed-script format, and optionally
// runs a postprocess cleanup pass over the result.
func (t *Transcriber) Transcribe(ctx context.Context, req job.TranscribeRequest, onProgress func(pct int)) (job.TranscribeOutput, error) {
	if onProgress == nil {
		onProgress = func(int) {}
	}

	audioPath, title, cleanup, err := t.fetchAudio(ctx, req.VideoSource, req.TestMode)
	if err != nil {
		return job.TranscribeOutput{}, fmt.Errorf("fetch source audio: %w", err)
	}
	defer cleanup()
	onProgress(15)

	durationSeconds, err := probeDuration(ctx, audioPath)
	if err != nil {
		return job.TranscribeOutput{}, fmt.Errorf("probe audio duration: %w", err)
	}
	onProgress(25)

	audioBytes, err := os.ReadFile(audioPath)
	if err != nil {
		return job.TranscribeOutput{}, fmt.Errorf("read downloaded audio: %w", err)
	}

	script, err := t.transcribeAudio(ctx, audioBytes, req.BreathDetection)
	if err != nil {
		return job.TranscribeOutput{}, err
	}
	onProgress(70)

	if req.UsePostprocess {
		cleaned, err := t.postprocess(ctx, script, req.PostprocessModel)
		if err != nil {
			logger.Warn("transcript postprocess pass failed, keeping raw transcript", "error", err)
		} else {
			script = cleaned
		}
	}
	onProgress(100)

	return job.TranscribeOutput{VideoTitle: title, Script: script, DurationSeconds: durationSeconds}, nil
}

// fetchAudio resolves videoSource to a local mp3 file: an existing local
// path is used directly, anything else is downloaded with yt-dlp. In test
// mode the clip is trimmed to its first minute before transcription.
func (t *Transcriber) fetchAudio(ctx context.Context, videoSource string, testMode bool) (path, title string, cleanup func(), err error) {
	if err := os.MkdirAll(t.tempDir, 0o755); err != nil {
		return "", "", nil, fmt.Errorf("create temp audio dir: %w", err)
	}

	title = videoTitle(ctx, videoSource)

	if _, statErr := os.Stat(videoSource); statErr == nil {
		full := videoSource
		if testMode {
			return t.trimToClip(ctx, full, title)
		}
		return full, title, func() {}, nil
	}

	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	outPattern := filepath.Join(t.tempDir, fmt.Sprintf("audio_%s.mp3", uuid.NewString()))
	args := []string{
		"-x", "--audio-format", "mp3",
		"--output", outPattern,
		"--no-warnings", "--no-playlist",
	}
	if testMode {
		args = append(args, "--postprocessor-args", fmt.Sprintf("ffmpeg:-t %d", testModeClipSeconds))
	}
	args = append(args, videoSource)

	cmd := exec.CommandContext(dlCtx, "yt-dlp", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", "", nil, fmt.Errorf("yt-dlp audio extraction failed: %w\n%s", err, tail(string(output), 2000))
	}

	logger.Info("downloaded source audio", "source", videoSource, "path", outPattern)
	return outPattern, title, func() { os.Remove(outPattern) }, nil
}

// trimToClip extracts the first testModeClipSeconds of an already-local
// file into a scratch copy, leaving the original untouched.
func (t *Transcriber) trimToClip(ctx context.Context, srcPath, title string) (string, string, func(), error) {
	trimCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	outPath := filepath.Join(t.tempDir, fmt.Sprintf("clip_%s.mp3", uuid.NewString()))
	cmd := exec.CommandContext(trimCtx, "ffmpeg",
		"-y", "-i", srcPath,
		"-t", strconv.Itoa(testModeClipSeconds),
		"-vn", "-acodec", "libmp3lame",
		outPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", "", nil, fmt.Errorf("ffmpeg test-mode trim failed: %w\n%s", err, tail(string(output), 2000))
	}
	return outPath, title, func() { os.Remove(outPath) }, nil
}

// videoTitle best-effort resolves a display title for videoSource; a failed
// lookup (e.g. a local file path, or yt-dlp being unable to reach the site)
// degrades to videoSource itself rather than failing the job over a cosmetic
// field.
func videoTitle(ctx context.Context, videoSource string) string {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	cmd := exec.CommandContext(probeCtx, "yt-dlp", "--no-warnings", "--skip-download", "--print", "%(title)s", videoSource)
	out, err := cmd.Output()
	if err != nil || strings.TrimSpace(string(out)) == "" {
		return filepath.Base(videoSource)
	}
	return strings.TrimSpace(string(out))
}

func probeDuration(ctx context.Context, path string) (float64, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	cmd := exec.CommandContext(probeCtx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", out, err)
	}
	return d, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
