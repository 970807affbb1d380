// Package mux implements the video muxer: replacing a video's audio track
// with a synthesized one via external yt-dlp/ffprobe/ffmpeg invocations.
package mux

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kovacsmedia/dubctl/internal/apperrors"
	"github.com/kovacsmedia/dubctl/internal/logger"
)

// VideoFormat is a supported output container.
type VideoFormat string

const (
	FormatMP4  VideoFormat = "mp4"
	FormatWebM VideoFormat = "webm"
	FormatAVI  VideoFormat = "avi"
	FormatMKV  VideoFormat = "mkv"
)

// Hard process timeouts.
const (
	downloadTimeout = 10 * time.Minute
	probeTimeout    = 30 * time.Second
	muxTimeout      = 30 * time.Minute
)

// Duration-compatibility thresholds.
const (
	durationWarnTolerance = 0.10
	audioShortThreshold   = 0.80
	audioLongThreshold    = 1.20
)

// VideoInfo is the probed subset of a video file's properties.
type VideoInfo struct {
	DurationSeconds float64
	Width           int
	Height          int
	Codec           string
	BitrateBps      int64
	FPS             float64
}

// Resolution renders Width/Height as "WxH".
func (v VideoInfo) Resolution() string { return fmt.Sprintf("%dx%d", v.Width, v.Height) }

// AudioInfo is the probed subset of an audio file's properties.
type AudioInfo struct {
	DurationSeconds float64
	Codec           string
	SampleRate      int
	Channels        int
	BitrateBps      int64
}

// Result is the outcome of a successful ReplaceAudio or CreatePreview call
//.
type Result struct {
	VideoFilePath         string
	FinalDurationSecs     float64
	FileSizeBytes         int64
	Format                VideoFormat
	Resolution            string
	VideoCodec            string
	ProcessingTime        time.Duration
	OriginalVideoDuration float64
	AudioDuration         float64
	IsPreview             bool
	PreviewDurationSecs   int
}

// Muxer drives yt-dlp/ffprobe/ffmpeg to produce a dubbed video.
type Muxer struct {
	TempDir string
}

// New constructs a Muxer that stages downloaded/intermediate files under tempDir.
func New(tempDir string) *Muxer {
	return &Muxer{TempDir: tempDir}
}

// ReplaceAudio downloads (if videoSource is a URL) or opens (if a local path)
// the source video, replaces its audio track with audioFile, and writes the
// result to outputPath. The downloaded video-only file,
// if any, is always removed on return.
func (m *Muxer) ReplaceAudio(ctx context.Context, videoSource, audioFile, outputPath string, preserveQuality bool, format VideoFormat) (Result, error) {
	start := time.Now()

	videoPath, cleanupVideo, err := m.resolveVideo(ctx, videoSource)
	if err != nil {
		return Result{}, apperrors.NewJobError(apperrors.MuxingFailed, "muxing", "failed to obtain source video", err)
	}
	defer cleanupVideo()

	if _, err := os.Stat(audioFile); err != nil {
		return Result{}, apperrors.NewJobError(apperrors.MuxingFailed, "muxing", "synthesized audio file not found", err)
	}

	videoInfo, err := probeVideo(ctx, videoPath)
	if err != nil {
		return Result{}, apperrors.NewJobError(apperrors.MuxingFailed, "muxing", "failed to probe source video", err)
	}
	audioInfo, err := probeAudio(ctx, audioFile)
	if err != nil {
		return Result{}, apperrors.NewJobError(apperrors.MuxingFailed, "muxing", "failed to probe synthesized audio", err)
	}

	trim := validateDurationCompatibility(videoInfo, audioInfo)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return Result{}, apperrors.NewJobError(apperrors.MuxingFailed, "muxing", "failed to create output directory", err)
	}

	if err := runFFmpegMux(ctx, videoPath, audioFile, outputPath, preserveQuality, format, trim); err != nil {
		os.Remove(outputPath)
		return Result{}, apperrors.NewJobError(apperrors.MuxingFailed, "muxing", "ffmpeg mux failed", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return Result{}, apperrors.NewJobError(apperrors.MuxingFailed, "muxing", "output file was not created", err)
	}

	outputInfo, err := probeVideo(ctx, outputPath)
	if err != nil {
		return Result{}, apperrors.NewJobError(apperrors.MuxingFailed, "muxing", "failed to probe output video", err)
	}

	return Result{
		VideoFilePath:         outputPath,
		FinalDurationSecs:     outputInfo.DurationSeconds,
		FileSizeBytes:         info.Size(),
		Format:                format,
		Resolution:            outputInfo.Resolution(),
		VideoCodec:            outputInfo.Codec,
		ProcessingTime:        time.Since(start),
		OriginalVideoDuration: videoInfo.DurationSeconds,
		AudioDuration:         audioInfo.DurationSeconds,
	}, nil
}

// CreatePreview produces a short preview of the dubbed video: the first
// durationSeconds of videoSource muxed against the first durationSeconds of
// audioFile.
func (m *Muxer) CreatePreview(ctx context.Context, videoSource, audioFile, outputPath string, durationSeconds int) (Result, error) {
	start := time.Now()

	tempVideo := filepath.Join(m.TempDir, fmt.Sprintf("preview_%s.mp4", uuid.NewString()))
	if err := downloadVideoSegment(ctx, videoSource, tempVideo, 0, durationSeconds); err != nil {
		return Result{}, apperrors.NewJobError(apperrors.MuxingFailed, "muxing", "failed to download preview video segment", err)
	}
	defer os.Remove(tempVideo)

	tempAudio := filepath.Join(m.TempDir, fmt.Sprintf("preview_audio_%s.mp3", uuid.NewString()))
	if err := trimAudio(ctx, audioFile, tempAudio, 0, durationSeconds); err != nil {
		return Result{}, apperrors.NewJobError(apperrors.MuxingFailed, "muxing", "failed to trim preview audio", err)
	}
	defer os.Remove(tempAudio)

	result, err := m.ReplaceAudio(ctx, tempVideo, tempAudio, outputPath, true, FormatMP4)
	if err != nil {
		return Result{}, err
	}
	result.IsPreview = true
	result.PreviewDurationSecs = durationSeconds
	result.ProcessingTime = time.Since(start)
	return result, nil
}

// resolveVideo returns a local path to videoSource, downloading it first if
// it is a URL. The returned cleanup func always removes a downloaded file;
// it is a no-op for a local path.
func (m *Muxer) resolveVideo(ctx context.Context, videoSource string) (string, func(), error) {
	if _, err := os.Stat(videoSource); err == nil {
		return videoSource, func() {}, nil
	}
	if _, err := url.ParseRequestURI(videoSource); err != nil {
		return "", nil, fmt.Errorf("video source is neither an existing file nor a valid URL: %s", videoSource)
	}

	if err := os.MkdirAll(m.TempDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create temp video dir: %w", err)
	}
	dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	outPattern := filepath.Join(m.TempDir, fmt.Sprintf("video_%s.%%(ext)s", uuid.NewString()))
	cmd := exec.CommandContext(dlCtx, "yt-dlp",
		"--format", "bv[ext=mp4]/best[ext=mp4]/bv/best",
		"--output", outPattern,
		"--no-warnings",
		"--no-playlist",
		videoSource,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("yt-dlp download failed: %w\n%s", err, tail(string(output), 2000))
	}

	glob := strings.Replace(outPattern, ".%(ext)s", ".*", 1)
	matches, err := filepath.Glob(glob)
	if err != nil || len(matches) == 0 {
		return "", nil, fmt.Errorf("downloaded video file not found for pattern %s", glob)
	}
	path := matches[0]
	logger.Info("downloaded video-only stream", "source", videoSource, "path", path)
	return path, func() { os.Remove(path) }, nil
}

func downloadVideoSegment(ctx context.Context, videoSource, outPath string, startSec, durationSec int) error {
	dlCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(dlCtx, "yt-dlp",
		"--format", "bv[ext=mp4]/best[ext=mp4]",
		"--external-downloader", "ffmpeg",
		"--external-downloader-args", fmt.Sprintf("-ss %d -t %d", startSec, durationSec),
		"--output", outPath,
		"--no-warnings",
		videoSource,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("yt-dlp segment download failed: %w\n%s", err, tail(string(output), 2000))
	}
	return nil
}

func trimAudio(ctx context.Context, audioPath, outPath string, startSec, durationSec int) error {
	trimCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	cmd := exec.CommandContext(trimCtx, "ffmpeg",
		"-y",
		"-i", audioPath,
		"-ss", strconv.Itoa(startSec),
		"-t", strconv.Itoa(durationSec),
		"-c:a", "copy",
		outPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg audio trim failed: %w\n%s", err, tail(string(output), 2000))
	}
	return nil
}

// durationTrim records whether the audio track should be trimmed to the
// video's length.
type durationTrim struct {
	shortWarn bool
	longTrim  bool
}

func validateDurationCompatibility(video VideoInfo, audio AudioInfo) durationTrim {
	diff := video.DurationSeconds - audio.DurationSeconds
	if diff < 0 {
		diff = -diff
	}
	tolerance := video.DurationSeconds * durationWarnTolerance
	var trim durationTrim
	if diff > tolerance {
		logger.Warn("video/audio duration mismatch", "video_s", video.DurationSeconds, "audio_s", audio.DurationSeconds)
		if audio.DurationSeconds < video.DurationSeconds*audioShortThreshold {
			logger.Warn("synthesized audio significantly shorter than video")
		}
		if audio.DurationSeconds > video.DurationSeconds*audioLongThreshold {
			logger.Warn("synthesized audio significantly longer than video; will be trimmed")
			trim.longTrim = true
		}
	}
	return trim
}

func runFFmpegMux(ctx context.Context, videoPath, audioPath, outputPath string, preserveQuality bool, format VideoFormat, trim durationTrim) error {
	muxCtx, cancel := context.WithTimeout(ctx, muxTimeout)
	defer cancel()

	args := []string{"-y", "-i", videoPath, "-i", audioPath}

	if preserveQuality {
		args = append(args, "-c:v", "copy")
	} else {
		args = append(args, "-c:v", "libx264", "-crf", "23")
	}

	args = append(args, "-c:a", "aac", "-b:a", "128k", "-ac", "2", "-ar", "44100")
	args = append(args, "-map", "0:v:0", "-map", "1:a:0")
	args = append(args, "-shortest", "-avoid_negative_ts", "make_zero")

	if format == FormatMP4 {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, outputPath)

	cmd := exec.CommandContext(muxCtx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if muxCtx.Err() != nil {
			return fmt.Errorf("ffmpeg mux timed out after %s", muxTimeout)
		}
		return fmt.Errorf("ffmpeg mux failed: %w\n%s", err, tail(string(output), 4000))
	}
	return nil
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitRate    string `json:"bit_rate"`
	RFrameRate string `json:"r_frame_rate"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

func runFFprobe(ctx context.Context, path string) (ffprobeOutput, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return ffprobeOutput{}, fmt.Errorf("ffprobe failed: %w", err)
	}
	var parsed ffprobeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return ffprobeOutput{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return parsed, nil
}

func probeVideo(ctx context.Context, path string) (VideoInfo, error) {
	probe, err := runFFprobe(ctx, path)
	if err != nil {
		return VideoInfo{}, err
	}
	var stream *ffprobeStream
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "video" {
			stream = &probe.Streams[i]
			break
		}
	}
	if stream == nil {
		return VideoInfo{}, fmt.Errorf("no video stream found in %s", path)
	}
	return VideoInfo{
		DurationSeconds: parseFloat(probe.Format.Duration),
		Width:           stream.Width,
		Height:          stream.Height,
		Codec:           stream.CodecName,
		BitrateBps:      int64(parseFloat(probe.Format.BitRate)),
		FPS:             parseFramerate(stream.RFrameRate),
	}, nil
}

func probeAudio(ctx context.Context, path string) (AudioInfo, error) {
	probe, err := runFFprobe(ctx, path)
	if err != nil {
		return AudioInfo{}, err
	}
	var stream *ffprobeStream
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "audio" {
			stream = &probe.Streams[i]
			break
		}
	}
	if stream == nil {
		return AudioInfo{}, fmt.Errorf("no audio stream found in %s", path)
	}
	return AudioInfo{
		DurationSeconds: parseFloat(probe.Format.Duration),
		Codec:           stream.CodecName,
		SampleRate:      int(parseFloat(stream.SampleRate)),
		Channels:        stream.Channels,
		BitrateBps:      int64(parseFloat(stream.BitRate)),
	}, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseFramerate(s string) float64 {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return parseFloat(s)
	}
	num := parseFloat(parts[0])
	den := parseFloat(parts[1])
	if den == 0 {
		return 0
	}
	return num / den
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
