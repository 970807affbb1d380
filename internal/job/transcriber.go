package job

import "context"

// TranscribeRequest is the narrow contract the orchestrator exposes to the
// transcription stage's external collaborator: remote speech-to-text is an
// opaque capability consumed through this interface only.
type TranscribeRequest struct {
	VideoSource      string
	TestMode         bool
	BreathDetection  bool
	UsePostprocess   bool
	PostprocessModel string
}

// TranscribeOutput is what a Transcriber hands back: the produced timed
// script and the source clip's duration (used for cost/speaking-rate
// derivation).
type TranscribeOutput struct {
	VideoTitle      string
	Script          string
	DurationSeconds float64
}

// Transcriber is the stage-1 capability a caller injects into Orchestrator.
// Concrete implementations (remote speech API client, download+convert
// pipeline) are external collaborators; this package depends only on the
// interface, never on a concrete client.
type Transcriber interface {
	Transcribe(ctx context.Context, req TranscribeRequest, onProgress func(pct int)) (TranscribeOutput, error)
}
