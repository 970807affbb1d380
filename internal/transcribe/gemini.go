package transcribe

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/kovacsmedia/dubctl/internal/apperrors"
	"github.com/kovacsmedia/dubctl/internal/translator"
)

const systemInstruction = `You are a precise audio transcription engine. Given an audio clip, produce a
timed script: one line per spoken thought or sentence, each beginning with a
"[HH:MM:SS]" timestamp marking where that line starts in the source audio.
Insert a standalone line reading exactly "[breath]", "[short pause]", or
"[long pause]" wherever the speaker pauses noticeably, each on its own
timestamped line. Output only the timed script, no commentary.`

const noBreathInstruction = `You are a precise audio transcription engine. Given an audio clip, produce a
timed script: one line per spoken thought or sentence, each beginning with a
"[HH:MM:SS]" timestamp marking where that line starts in the source audio.
Output only the timed script, no commentary.`

// transcribeAudio sends audioBytes to the configured Gemini model and
// returns the raw timed script.
func (t *Transcriber) transcribeAudio(ctx context.Context, audioBytes []byte, breathDetection bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	instruction := noBreathInstruction
	if breathDetection {
		instruction = systemInstruction
	}

	m := t.client.GenerativeModel(t.model)
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(instruction)}}

	resp, err := m.GenerateContent(ctx, genai.Blob{MIMEType: "audio/mpeg", Data: audioBytes})
	if err != nil {
		return "", classifyGeminiError(err)
	}
	text, err := extractResponseText(resp)
	if err != nil {
		return "", apperrors.Validation(err)
	}
	return text, nil
}

// postprocess runs a second text-only pass over script via the configured
// fallback sequence, asking the model to clean up disfluencies while
// preserving every timestamp exactly. model selects a specific
// entry by its Model field; "auto-detect" (or empty) uses the sequence in
// priority order, falling back on failure exactly like translation does.
func (t *Transcriber) postprocess(ctx context.Context, script, model string) (string, error) {
	sequence := t.Postprocess
	if model != "" && model != "auto-detect" {
		var filtered []translator.RegionModel
		for _, rm := range sequence {
			if rm.Model == model {
				filtered = append(filtered, rm)
			}
		}
		if len(filtered) > 0 {
			sequence = filtered
		}
	}
	if len(sequence) == 0 {
		return script, fmt.Errorf("no postprocess model configured")
	}

	const sysPrompt = `Clean up this timed transcript: fix obvious transcription errors and remove
filler disfluencies, but keep every "[HH:MM:SS]" timestamp line exactly as
given, in the same order, with the same count. Do not add, remove, or
reorder timestamp lines. Output only the cleaned transcript.`

	var lastErr error
	for _, rm := range sequence {
		out, err := rm.Provider.GenerateText(ctx, rm.Model, sysPrompt, script, translator.GenConfig{Temperature: 0.2, TopP: 0.9, MaxOutputTokens: 8192})
		if err != nil {
			lastErr = err
			continue
		}
		return out, nil
	}
	return script, fmt.Errorf("every postprocess model failed: %w", lastErr)
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		var combined string
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

// classifyGeminiError wraps a raw genai error as a plain error; the
// orchestrator's stage-failure path already tags an unwrapped error with
// the correct JobKind (apperrors.TranscriptionFailed) for this stage, so no
// further classification is needed here beyond surfacing the cause.
func classifyGeminiError(err error) error {
	return fmt.Errorf("gemini transcription call failed: %w", err)
}
