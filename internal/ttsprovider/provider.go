// Package ttsprovider implements the TTS provider registry: a
// capability-set abstraction over concrete synthesis providers, availability
// probing with a short cache, AUTO/EXPLICIT selection, and the static
// cross-provider voice mapping table.
package ttsprovider

import (
	"context"
	"io"
)

// AudioQuality selects the encoding tier requested from a Provider,
// identical in semantics across every provider:
// low -> low bitrate mono, medium -> standard stereo, high -> the provider's
// highest supported encoding.
type AudioQuality string

const (
	QualityLow    AudioQuality = "low"
	QualityMedium AudioQuality = "medium"
	QualityHigh   AudioQuality = "high"
)

// VoiceProfile is a provider-scoped voice identity plus display metadata
//. VoiceID is opaque to the core; its syntax is provider-defined.
type VoiceProfile struct {
	VoiceID     string
	DisplayName string
	LanguageTag string
	Gender      string
	Provider    string
	Premium     bool
	Category    string
	PreviewURL  string
	Labels      map[string]string
}

// Encoding describes the concrete audio container/codec a synthesis call
// should produce, derived from an AudioQuality by a Provider.
type Encoding struct {
	Container  string // e.g. "mp3", "wav"
	SampleRate int
	Channels   int
	BitrateBps int
}

// SynthesizeRequest is the input to a single synthesis call against one
// provider. Text is plain prose (pause markers and timestamps already
// stripped by the caller).
type SynthesizeRequest struct {
	Text     string
	VoiceID  string
	Quality  AudioQuality
	Encoding Encoding
}

// SynthesizeResult is a single synthesis call's raw output.
type SynthesizeResult struct {
	Audio      io.Reader
	DurationS  float64 // 0 if the provider does not report duration
	Format     string
	SampleRate int
}

// Provider is the capability set every concrete TTS adapter must implement
//: {synthesize_script, list_voices, validate_voice_id,
// estimate_cost, availability_probe}. The orchestrator and the synthesizer
// depend only on this interface, never on a concrete provider type.
type Provider interface {
	// ID is the provider's stable identifier, e.g. "premium", "cloud".
	ID() string
	// DisplayName is the human-readable provider name.
	DisplayName() string
	// Synthesize performs one synthesis call and returns raw audio.
	Synthesize(ctx context.Context, req SynthesizeRequest) (SynthesizeResult, error)
	// ListVoices returns the provider's voice catalogue.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
	// ValidateVoiceID reports whether voiceID is known to this provider.
	ValidateVoiceID(ctx context.Context, voiceID string) (bool, error)
	// EstimateCost returns the cost in USD to synthesize the given character count.
	EstimateCost(characters int) float64
	// RatePer1kChars returns the provider's advertised cost-per-1000-characters
	// rate, used for AUTO selection's cheapest-first tie-break.
	RatePer1kChars() float64
	// Probe performs the provider's minimal capability probe (list voices)
	// and reports whether the provider is currently reachable.
	Probe(ctx context.Context) error
	// EncodingFor maps an AudioQuality to this provider's concrete encoding.
	EncodingFor(quality AudioQuality) Encoding
}
