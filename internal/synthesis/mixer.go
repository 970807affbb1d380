package synthesis

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// mixBitDepth is the PCM bit depth every chunked-mode group is decoded into
// and the assembled track is encoded as, regardless of what a provider's raw
// response claimed; sample rate and channel count come from wavEncoding for
// the requested encoding. The base track plus per-segment overlays require a
// common sample format to mix.
const (
	mixBitDepth = 16
)

// decodeWAVSamples reads r as a WAV stream and returns its samples as
// interleaved ints at whatever sample rate/channel count the stream carries.
// Chunked-mode groups are expected to come back from providers already at
// wavEncoding's sample rate/channels since that is what was requested.
func decodeWAVSamples(r io.Reader) ([]int, error) {
	// wav.NewDecoder needs to seek (it reads the RIFF header, then streams
	// PCM chunks); a provider's raw io.Reader response is buffered into a
	// seekable reader first.
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("synthesis: read provider audio: %w", err)
	}
	decoder := wav.NewDecoder(bytes.NewReader(raw))
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("synthesis: provider response is not a valid WAV stream")
	}

	format := &audio.Format{SampleRate: int(decoder.SampleRate), NumChannels: int(decoder.NumChans)}
	var out []int
	chunk := make([]int, 4096)
	for {
		ib := &audio.IntBuffer{Data: chunk, Format: format}
		n, err := decoder.PCMBuffer(ib)
		if err != nil {
			return nil, fmt.Errorf("synthesis: decode PCM: %w", err)
		}
		if n == 0 {
			break
		}
		out = append(out, ib.Data[:n]...)
	}
	return out, nil
}

// silentBuffer is an in-memory PCM accumulator for the chunked-mode base
// track: durationSamples worth of silence, with per-group overlays written
// in at their derived start offsets.
type silentBuffer struct {
	samples    []int
	sampleRate int
	channels   int
}

// newSilentBuffer allocates a silent PCM track long enough to hold duration
// at the given sample rate/channel count.
func newSilentBuffer(duration time.Duration, sampleRate, channels int) *silentBuffer {
	frames := int(duration.Seconds() * float64(sampleRate))
	if frames < 0 {
		frames = 0
	}
	return &silentBuffer{
		samples:    make([]int, frames*channels),
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// overlayAt writes pcm into base starting at offset at, overwriting silence.
// pcm longer than the remaining space in base is truncated rather than
// extending the track, matching the assumption that segment windows were
// already derived to fit within the overall track duration.
func overlayAt(base *silentBuffer, pcm []int, at time.Duration, sampleRate, channels int) {
	startFrame := int(at.Seconds() * float64(sampleRate))
	startSample := startFrame * channels
	if startSample < 0 || startSample >= len(base.samples) {
		return
	}
	n := len(pcm)
	if startSample+n > len(base.samples) {
		n = len(base.samples) - startSample
	}
	copy(base.samples[startSample:startSample+n], pcm[:n])
}

// encodeWAV writes base to path as a PCM WAV file.
func encodeWAV(path string, base *silentBuffer, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, mixBitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Data:   base.samples,
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: channels},
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("synthesis: encode WAV: %w", err)
	}
	return enc.Close()
}
