package translator

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/kovacsmedia/dubctl/internal/apperrors"
	"github.com/kovacsmedia/dubctl/internal/httpclient"
	"github.com/kovacsmedia/dubctl/internal/openai"
)

// Quality hints the generation configuration used for a translation request.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// GenConfig is the generation configuration derived from a Quality hint.
type GenConfig struct {
	Temperature     float32
	TopP            float32
	MaxOutputTokens int
}

func genConfigForQuality(q Quality) GenConfig {
	switch q {
	case QualityLow:
		return GenConfig{Temperature: 0.2, TopP: 0.8, MaxOutputTokens: 2048}
	case QualityHigh:
		return GenConfig{Temperature: 0.6, TopP: 0.97, MaxOutputTokens: 8192}
	default:
		return GenConfig{Temperature: 0.4, TopP: 0.92, MaxOutputTokens: 4096}
	}
}

// TextGenerator is the minimal capability a remote text-generation provider
// must offer to participate in the region x model fallback sequence: a
// single prompt in, a single text response out.
type TextGenerator interface {
	GenerateText(ctx context.Context, model, systemPrompt, userPrompt string, cfg GenConfig) (string, error)
}

// RegionModel is one entry of the fixed-priority region x model fallback
// sequence: a remote provider bound to a specific region label and model
// identifier.
type RegionModel struct {
	Region   string
	Model    string
	Provider TextGenerator
}

func (rm RegionModel) String() string {
	if rm.Region == "" {
		return rm.Model
	}
	return fmt.Sprintf("%s/%s", rm.Region, rm.Model)
}

// defaultRegions is the fixed region list crossed with the model priority
// order for the Gemini leg of the fallback sequence. A short, documented,
// fixed list keeps the fallback order deterministic.
var defaultRegions = []string{"us-central1", "us-east4", "europe-west4"}

// defaultGeminiModels is the model priority order for the Gemini leg:
// current fast models first, older generations as the tail.
var defaultGeminiModels = []string{"gemini-2.0-flash", "gemini-2.5-flash", "gemini-1.5-pro", "gemini-1.5-flash", "gemini-pro"}

// defaultOpenAIModels is the model-only (no region dimension) fallback leg
// used once every Gemini region/model combination has been exhausted.
var defaultOpenAIModels = []string{"gpt-4o-mini", "gpt-4o"}

// DefaultFallbackSequence builds the deterministic default region x model
// priority order: every (region, model) pair for the Gemini provider, in
// region-major order, followed by the OpenAI provider's model-only list.
// Either generator may be nil, in which case its leg is omitted.
func DefaultFallbackSequence(gemini, openaiGen TextGenerator) []RegionModel {
	var seq []RegionModel
	if gemini != nil {
		for _, region := range defaultRegions {
			for _, model := range defaultGeminiModels {
				seq = append(seq, RegionModel{Region: region, Model: model, Provider: gemini})
			}
		}
	}
	if openaiGen != nil {
		for _, model := range defaultOpenAIModels {
			seq = append(seq, RegionModel{Model: model, Provider: openaiGen})
		}
	}
	return seq
}

// GeminiTextGenerator adapts a Gemini client to the plain-prompt
// TextGenerator capability used by the translator.
type GeminiTextGenerator struct {
	client *genai.Client
}

// NewGeminiTextGenerator wraps an already-authenticated genai client. The
// Generative Language API this client speaks is global; a RegionModel's
// region is not passed to the client and only affects which log line a call
// is attributed to.
func NewGeminiTextGenerator(client *genai.Client) *GeminiTextGenerator {
	return &GeminiTextGenerator{client: client}
}

func (g *GeminiTextGenerator) GenerateText(ctx context.Context, model, systemPrompt, userPrompt string, cfg GenConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, httpclient.DefaultTimeout)
	defer cancel()

	m := g.client.GenerativeModel(model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	m.Temperature = &cfg.Temperature
	m.TopP = &cfg.TopP
	maxTokens := int32(cfg.MaxOutputTokens)
	m.MaxOutputTokens = &maxTokens

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", classifyGeminiTextError(err)
	}
	text, err := extractGeminiText(resp)
	if err != nil {
		return "", apperrors.Validation(err)
	}
	return text, nil
}

func extractGeminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	var combined string
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				combined += string(text)
			}
		}
		if combined != "" {
			return combined, nil
		}
	}
	return "", fmt.Errorf("no text parts found in Gemini response")
}

// OpenAITextGenerator adapts an OpenAI Responses-API client to the plain
// prompt TextGenerator capability.
type OpenAITextGenerator struct {
	client *openai.Client
}

func NewOpenAITextGenerator(client *openai.Client) *OpenAITextGenerator {
	return &OpenAITextGenerator{client: client}
}

func (o *OpenAITextGenerator) GenerateText(ctx context.Context, model, systemPrompt, userPrompt string, cfg GenConfig) (string, error) {
	req := openai.RequestData{
		Input: []openai.InputItem{
			{Type: "message", Role: "system", Content: systemPrompt},
			{Type: "message", Role: "user", Content: userPrompt},
		},
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
	resp, err := o.client.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	var combined string
	for _, item := range resp.Output {
		for _, c := range item.Content {
			combined += c.Text
		}
	}
	if combined == "" {
		return "", apperrors.Validation(fmt.Errorf("empty OpenAI response"))
	}
	return combined, nil
}
