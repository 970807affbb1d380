package synthesis

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/kovacsmedia/dubctl/internal/apperrors"
	"github.com/kovacsmedia/dubctl/internal/ttsprovider"
)

const testSampleRate = 24000

// toneWAV encodes a mono 16-bit WAV of duration containing a constant
// nonzero amplitude, standing in for "signal" in a synthesized segment.
func toneWAV(duration time.Duration, amplitude int) []byte {
	frames := int(duration.Seconds() * testSampleRate)
	samples := make([]int, frames)
	for i := range samples {
		samples[i] = amplitude
	}
	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, testSampleRate, 16, 1, 1)
	ib := &audio.IntBuffer{Data: samples, Format: &audio.Format{SampleRate: testSampleRate, NumChannels: 1}}
	if err := enc.Write(ib); err != nil {
		panic(err)
	}
	if err := enc.Close(); err != nil {
		panic(err)
	}
	return ws.data
}

// memWriteSeeker is a minimal in-memory io.WriteSeeker: wav.NewEncoder seeks
// back to the start on Close to patch the RIFF/data chunk sizes once the
// final length is known.
type memWriteSeeker struct {
	data []byte
	pos  int64
}

func (w *memWriteSeeker) Write(p []byte) (int, error) {
	end := w.pos + int64(len(p))
	if end > int64(len(w.data)) {
		grown := make([]byte, end)
		copy(grown, w.data)
		w.data = grown
	}
	copy(w.data[w.pos:end], p)
	w.pos = end
	return len(p), nil
}

func (w *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		w.pos = offset
	case 1:
		w.pos += offset
	case 2:
		w.pos = int64(len(w.data)) + offset
	}
	return w.pos, nil
}

type mockProvider struct {
	voiceID      string
	segmentAudio time.Duration
	calls        int
}

var _ ttsprovider.Provider = (*mockProvider)(nil)

func (m *mockProvider) ID() string          { return "mock" }
func (m *mockProvider) DisplayName() string { return "Mock" }
func (m *mockProvider) Synthesize(ctx context.Context, req ttsprovider.SynthesizeRequest) (ttsprovider.SynthesizeResult, error) {
	m.calls++
	data := toneWAV(m.segmentAudio, 5000)
	return ttsprovider.SynthesizeResult{
		Audio:      bytes.NewReader(data),
		Format:     "wav",
		SampleRate: testSampleRate,
	}, nil
}
func (m *mockProvider) ListVoices(ctx context.Context) ([]ttsprovider.VoiceProfile, error) {
	return []ttsprovider.VoiceProfile{{VoiceID: m.voiceID}}, nil
}
func (m *mockProvider) ValidateVoiceID(ctx context.Context, voiceID string) (bool, error) {
	return voiceID == m.voiceID, nil
}
func (m *mockProvider) EstimateCost(characters int) float64 { return float64(characters) / 1000 * 0.02 }
func (m *mockProvider) RatePer1kChars() float64              { return 0.02 }
func (m *mockProvider) Probe(ctx context.Context) error      { return nil }
func (m *mockProvider) EncodingFor(q ttsprovider.AudioQuality) ttsprovider.Encoding {
	return ttsprovider.Encoding{Container: "wav", SampleRate: testSampleRate, Channels: 1}
}

func scriptWithSegments(n int, interval time.Duration) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		ts := time.Duration(i) * interval
		fmt.Fprintf(&sb, "%s Segment number %d of spoken content.\n", tsMarker(ts), i)
	}
	return sb.String()
}

func tsMarker(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("[%02d:%02d:%02d]", h, m, s)
}

func TestSynthesizeScript_ChunkedPlacement(t *testing.T) {
	script := scriptWithSegments(60, 5*time.Second)
	provider := &mockProvider{voiceID: "v1", segmentAudio: time.Second}

	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.wav")

	result, err := SynthesizeScript(context.Background(), provider, script, "v1", outPath, Options{Quality: ttsprovider.QualityMedium})
	if err != nil {
		t.Fatalf("SynthesizeScript() error = %v", err)
	}
	if result.Method != MethodChunked {
		t.Fatalf("Method = %v, want chunked", result.Method)
	}
	if result.DurationSeconds < 299 || result.DurationSeconds > 301 {
		t.Fatalf("DurationSeconds = %v, want in [299,301]", result.DurationSeconds)
	}

	f, err := os.Open(outPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		t.Fatalf("output is not a valid WAV file")
	}

	buf := &audio.IntBuffer{Data: make([]int, 1<<20), Format: &audio.Format{SampleRate: testSampleRate, NumChannels: 1}}
	n, err := decoder.PCMBuffer(buf)
	if err != nil {
		t.Fatalf("PCMBuffer: %v", err)
	}
	samples := buf.Data[:n]

	for seg := 0; seg < 60; seg++ {
		offsetFrame := seg * 5 * testSampleRate
		if offsetFrame >= len(samples) {
			t.Fatalf("segment %d offset %d out of range (len=%d)", seg, offsetFrame, len(samples))
		}
		if samples[offsetFrame] == 0 {
			t.Errorf("segment %d: expected signal at offset %ds, got silence", seg, seg*5)
		}
	}
}

func TestSynthesizeScript_UnknownVoiceFails(t *testing.T) {
	script := scriptWithSegments(1, 5*time.Second)
	provider := &mockProvider{voiceID: "v1", segmentAudio: time.Second}

	_, err := SynthesizeScript(context.Background(), provider, script, "nope", filepath.Join(t.TempDir(), "out.wav"), Options{})
	if err == nil {
		t.Fatalf("expected an error for unknown voice")
	}
	kind, ok := apperrors.JobKindOf(err)
	if !ok || kind != apperrors.VoiceNotFound {
		t.Fatalf("got kind %v, ok=%v, want VoiceNotFound", kind, ok)
	}
}

func TestPlannedMethod_MatchesExecution(t *testing.T) {
	short := scriptWithSegments(3, 5*time.Second)
	long := scriptWithSegments(60, 5*time.Second)

	if m, err := PlannedMethod(short); err != nil || m != MethodSingleCall {
		t.Fatalf("short script: got %v, %v", m, err)
	}
	if m, err := PlannedMethod(long); err != nil || m != MethodChunked {
		t.Fatalf("long script: got %v, %v", m, err)
	}
	if _, err := PlannedMethod("not a timed script"); err == nil {
		t.Fatalf("expected an error for an invalid script")
	}
}

func TestSynthesizeScript_SingleCallForShortScript(t *testing.T) {
	script := scriptWithSegments(3, 5*time.Second)
	provider := &mockProvider{voiceID: "v1", segmentAudio: time.Second}

	result, err := SynthesizeScript(context.Background(), provider, script, "v1", filepath.Join(t.TempDir(), "out.wav"), Options{})
	if err != nil {
		t.Fatalf("SynthesizeScript() error = %v", err)
	}
	if result.Method != MethodSingleCall {
		t.Fatalf("Method = %v, want single_call", result.Method)
	}
	if provider.calls != 1 {
		t.Fatalf("provider.calls = %d, want 1", provider.calls)
	}
}
