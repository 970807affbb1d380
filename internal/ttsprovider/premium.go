package ttsprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kovacsmedia/dubctl/internal/apperrors"
	"github.com/kovacsmedia/dubctl/internal/httpclient"
)

// ProviderPremium is the stable id of the premium-voice provider, backed by
// an ElevenLabs-style per-character-billed API.
const ProviderPremium = "premium"

// premiumRatePer1kChars mirrors the original's PREMIUM_COST_PER_1K constant.
const premiumRatePer1kChars = 0.30

// PremiumProvider synthesizes speech against a premium per-character-billed
// TTS API. The request text is sent as given in a JSON body; no break tags
// are added for pauses.
type PremiumProvider struct {
	apiKey  string
	baseURL string
}

// NewPremiumProvider constructs a PremiumProvider. baseURL defaults to the
// provider's production endpoint when empty.
func NewPremiumProvider(apiKey, baseURL string) *PremiumProvider {
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io/v1"
	}
	return &PremiumProvider{apiKey: apiKey, baseURL: baseURL}
}

var _ Provider = (*PremiumProvider)(nil)

func (p *PremiumProvider) ID() string          { return ProviderPremium }
func (p *PremiumProvider) DisplayName() string { return "Premium Voice" }

func (p *PremiumProvider) RatePer1kChars() float64 { return premiumRatePer1kChars }

func (p *PremiumProvider) EstimateCost(characters int) float64 {
	cost := float64(characters) / 1000 * premiumRatePer1kChars
	if cost < 0.0001 {
		cost = 0.0001
	}
	return cost
}

func (p *PremiumProvider) EncodingFor(quality AudioQuality) Encoding {
	switch quality {
	case QualityLow:
		return Encoding{Container: "mp3", SampleRate: 22050, Channels: 1, BitrateBps: 32000}
	case QualityHigh:
		return Encoding{Container: "mp3", SampleRate: 44100, Channels: 2, BitrateBps: 192000}
	default:
		return Encoding{Container: "mp3", SampleRate: 44100, Channels: 2, BitrateBps: 128000}
	}
}

type premiumVoicesResponse struct {
	Voices []struct {
		VoiceID    string            `json:"voice_id"`
		Name       string            `json:"name"`
		Category   string            `json:"category"`
		Labels     map[string]string `json:"labels"`
		PreviewURL string            `json:"preview_url"`
	} `json:"voices"`
}

func (p *PremiumProvider) ListVoices(ctx context.Context) ([]VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", p.apiKey)

	body, resp, err := httpclient.DoAndRead(httpclient.GetDefaultClient(), req)
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	if err := classifyPremiumStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var parsed premiumVoicesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.Validation(fmt.Errorf("decode voices response: %w", err))
	}
	voices := make([]VoiceProfile, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		voices = append(voices, VoiceProfile{
			VoiceID:     v.VoiceID,
			DisplayName: v.Name,
			Provider:    ProviderPremium,
			Premium:     true,
			Category:    v.Category,
			PreviewURL:  v.PreviewURL,
			Labels:      v.Labels,
		})
	}
	return voices, nil
}

func (p *PremiumProvider) ValidateVoiceID(ctx context.Context, voiceID string) (bool, error) {
	voices, err := p.ListVoices(ctx)
	if err != nil {
		return false, err
	}
	for _, v := range voices {
		if v.VoiceID == voiceID {
			return true, nil
		}
	}
	return false, nil
}

func (p *PremiumProvider) Probe(ctx context.Context) error {
	_, err := p.ListVoices(ctx)
	return err
}

type premiumSynthesizeRequest struct {
	Text          string               `json:"text"`
	ModelID       string               `json:"model_id"`
	VoiceSettings premiumVoiceSettings `json:"voice_settings"`
}

type premiumVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func (p *PremiumProvider) Synthesize(ctx context.Context, sreq SynthesizeRequest) (SynthesizeResult, error) {
	ok, err := p.ValidateVoiceID(ctx, sreq.VoiceID)
	if err != nil {
		return SynthesizeResult{}, err
	}
	if !ok {
		return SynthesizeResult{}, apperrors.NewJobError(apperrors.VoiceNotFound, "", fmt.Sprintf("voice %q is not known to the premium provider", sreq.VoiceID), nil)
	}

	payload := premiumSynthesizeRequest{
		Text:    sreq.Text,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: premiumVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SynthesizeResult{}, err
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", p.baseURL, sreq.VoiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SynthesizeResult{}, err
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, resp, err := httpclient.DoAndRead(httpclient.GetDefaultClient(), httpReq)
	if err != nil {
		return SynthesizeResult{}, apperrors.Transient(err)
	}
	if err := classifyPremiumStatus(resp.StatusCode, respBody); err != nil {
		return SynthesizeResult{}, err
	}

	enc := p.EncodingFor(sreq.Quality)
	return SynthesizeResult{
		Audio:      bytes.NewReader(respBody),
		Format:     enc.Container,
		SampleRate: enc.SampleRate,
	}, nil
}

func classifyPremiumStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	cause := fmt.Errorf("premium provider status=%d body=%s", status, truncate(string(body), 300))
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.Auth(cause)
	case http.StatusNotFound:
		return apperrors.BadRequest(cause)
	case http.StatusTooManyRequests:
		if strings.Contains(string(body), "quota") {
			return apperrors.NewJobError(apperrors.BudgetExceeded, "", "premium provider quota exceeded", cause)
		}
		return apperrors.RateLimit(cause)
	default:
		if status >= 500 {
			return apperrors.Transient(cause)
		}
		return apperrors.BadRequest(cause)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
