package ttsprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kovacsmedia/dubctl/internal/apperrors"
	"github.com/kovacsmedia/dubctl/internal/httpclient"
)

// ProviderCloud is the stable id of the commodity cloud provider, backed by
// a Google Cloud Text-to-Speech style API.
const ProviderCloud = "cloud"

// cloudRatePer1kChars mirrors the original's CLOUD_COST_PER_1K constant —
// deliberately cheaper than the premium provider so AUTO selection prefers
// it when both are available.
const cloudRatePer1kChars = 0.016

// CloudProvider synthesizes speech against a commodity cloud TTS API. The
// request text is wrapped in a single SSML <speak> element; no <break>
// elements are inserted for pauses.
type CloudProvider struct {
	apiKey  string
	baseURL string
	voices  []VoiceProfile // static catalogue; a real deployment would fetch this
}

// NewCloudProvider constructs a CloudProvider with a small built-in voice
// catalogue standing in for the provider's full list-voices response.
func NewCloudProvider(apiKey, baseURL string) *CloudProvider {
	if baseURL == "" {
		baseURL = "https://texttospeech.googleapis.com/v1"
	}
	return &CloudProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		voices: []VoiceProfile{
			{VoiceID: "en-US-Neural2-F", DisplayName: "English (US) F", LanguageTag: "en-US", Gender: "female", Provider: ProviderCloud},
			{VoiceID: "en-US-Neural2-D", DisplayName: "English (US) D", LanguageTag: "en-US", Gender: "male", Provider: ProviderCloud},
			{VoiceID: "en-US-Neural2-C", DisplayName: "English (US) C", LanguageTag: "en-US", Gender: "female", Provider: ProviderCloud},
			{VoiceID: "en-US-Neural2-G", DisplayName: "English (US) G", LanguageTag: "en-US", Gender: "female", Provider: ProviderCloud},
			{VoiceID: "en-US-Neural2-A", DisplayName: "English (US) A", LanguageTag: "en-US", Gender: "male", Provider: ProviderCloud},
			{VoiceID: "en-US-Neural2-J", DisplayName: "English (US) J", LanguageTag: "en-US", Gender: "male", Provider: ProviderCloud},
			{VoiceID: "en-GB-Neural2-B", DisplayName: "English (UK) B", LanguageTag: "en-GB", Gender: "male", Provider: ProviderCloud},
			{VoiceID: "es-ES-Neural2-B", DisplayName: "Spanish (Spain) B", LanguageTag: "es-ES", Gender: "male", Provider: ProviderCloud},
			{VoiceID: "fr-FR-Neural2-B", DisplayName: "French B", LanguageTag: "fr-FR", Gender: "female", Provider: ProviderCloud},
			{VoiceID: "de-DE-Neural2-B", DisplayName: "German B", LanguageTag: "de-DE", Gender: "male", Provider: ProviderCloud},
		},
	}
}

var _ Provider = (*CloudProvider)(nil)

func (c *CloudProvider) ID() string          { return ProviderCloud }
func (c *CloudProvider) DisplayName() string { return "Commodity Cloud TTS" }

func (c *CloudProvider) RatePer1kChars() float64 { return cloudRatePer1kChars }

func (c *CloudProvider) EstimateCost(characters int) float64 {
	cost := float64(characters) / 1000 * cloudRatePer1kChars
	if cost < 0.0001 {
		cost = 0.0001
	}
	return cost
}

func (c *CloudProvider) EncodingFor(quality AudioQuality) Encoding {
	switch quality {
	case QualityLow:
		return Encoding{Container: "mp3", SampleRate: 16000, Channels: 1, BitrateBps: 32000}
	case QualityHigh:
		return Encoding{Container: "wav", SampleRate: 48000, Channels: 2, BitrateBps: 256000}
	default:
		return Encoding{Container: "mp3", SampleRate: 24000, Channels: 2, BitrateBps: 96000}
	}
}

func (c *CloudProvider) ListVoices(ctx context.Context) ([]VoiceProfile, error) {
	return c.voices, nil
}

func (c *CloudProvider) ValidateVoiceID(ctx context.Context, voiceID string) (bool, error) {
	for _, v := range c.voices {
		if v.VoiceID == voiceID {
			return true, nil
		}
	}
	return false, nil
}

func (c *CloudProvider) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices?key="+c.apiKey, nil)
	if err != nil {
		return err
	}
	body, resp, err := httpclient.DoAndRead(httpclient.GetDefaultClient(), req)
	if err != nil {
		return apperrors.Transient(err)
	}
	return classifyCloudStatus(resp.StatusCode, body)
}

type cloudSynthesizeRequest struct {
	Input  cloudInput  `json:"input"`
	Voice  cloudVoice  `json:"voice"`
	Config cloudConfig `json:"audioConfig"`
}

type cloudInput struct {
	SSML string `json:"ssml"`
}

type cloudVoice struct {
	LanguageCode string `json:"languageCode"`
	Name         string `json:"name"`
}

type cloudConfig struct {
	AudioEncoding   string  `json:"audioEncoding"`
	SampleRateHertz int     `json:"sampleRateHertz"`
	SpeakingRate    float64 `json:"speakingRate"`
}

type cloudSynthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

func (c *CloudProvider) Synthesize(ctx context.Context, sreq SynthesizeRequest) (SynthesizeResult, error) {
	ok, err := c.ValidateVoiceID(ctx, sreq.VoiceID)
	if err != nil {
		return SynthesizeResult{}, err
	}
	if !ok {
		return SynthesizeResult{}, apperrors.NewJobError(apperrors.VoiceNotFound, "", fmt.Sprintf("voice %q is not known to the cloud provider", sreq.VoiceID), nil)
	}
	lang := languageTagForVoice(c.voices, sreq.VoiceID)
	enc := c.EncodingFor(sreq.Quality)

	payload := cloudSynthesizeRequest{
		Input: cloudInput{SSML: "<speak>" + sreq.Text + "</speak>"},
		Voice: cloudVoice{LanguageCode: lang, Name: sreq.VoiceID},
		Config: cloudConfig{
			AudioEncoding:   cloudAudioEncoding(enc.Container),
			SampleRateHertz: enc.SampleRate,
			SpeakingRate:    1.0,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SynthesizeResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text:synthesize?key="+c.apiKey, bytes.NewReader(body))
	if err != nil {
		return SynthesizeResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, resp, err := httpclient.DoAndRead(httpclient.GetDefaultClient(), httpReq)
	if err != nil {
		return SynthesizeResult{}, apperrors.Transient(err)
	}
	if err := classifyCloudStatus(resp.StatusCode, respBody); err != nil {
		return SynthesizeResult{}, err
	}

	var parsed cloudSynthesizeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return SynthesizeResult{}, apperrors.Validation(fmt.Errorf("decode synthesize response: %w", err))
	}
	audio, err := base64.StdEncoding.DecodeString(parsed.AudioContent)
	if err != nil {
		return SynthesizeResult{}, apperrors.Validation(fmt.Errorf("decode base64 audio content: %w", err))
	}

	return SynthesizeResult{
		Audio:      bytes.NewReader(audio),
		Format:     enc.Container,
		SampleRate: enc.SampleRate,
	}, nil
}

func cloudAudioEncoding(container string) string {
	switch container {
	case "wav":
		return "LINEAR16"
	default:
		return "MP3"
	}
}

func languageTagForVoice(voices []VoiceProfile, voiceID string) string {
	for _, v := range voices {
		if v.VoiceID == voiceID {
			return v.LanguageTag
		}
	}
	return "en-US"
}

func classifyCloudStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	cause := fmt.Errorf("cloud provider status=%d body=%s", status, truncate(string(body), 300))
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.Auth(cause)
	case http.StatusNotFound:
		return apperrors.BadRequest(cause)
	case http.StatusTooManyRequests:
		return apperrors.RateLimit(cause)
	default:
		if status >= 500 {
			return apperrors.Transient(cause)
		}
		return apperrors.BadRequest(cause)
	}
}
