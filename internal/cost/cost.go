// Package cost implements the cost estimator: a priori USD
// estimates per pipeline stage, summed for the job orchestrator's budget
// gate.
package cost

// Fixed per-job costs.
const (
	transcriptionRatePerMinute = 0.016
	translationRatePerMillion  = 20.0
	muxingFixedCost            = 0.05
	storageFixedCost           = 0.10
)

// EstimateParams is the input to Estimate: the quantities known before any
// stage runs.
type EstimateParams struct {
	TranscriptionEnabled bool
	DurationMinutes      float64

	TranslationEnabled bool
	CharacterCount     int

	SynthesisEnabled       bool
	SynthesisCharCount     int
	ProviderRatePer1kChars float64

	MuxingEnabled bool
}

// Breakdown is a per-stage cost estimate in USD.
type Breakdown struct {
	Transcription float64
	Translation   float64
	Synthesis     float64
	Muxing        float64
	Storage       float64
}

// Total returns the sum of every stage's cost, rounded to the cent.
func (b Breakdown) Total() float64 {
	sum := b.Transcription + b.Translation + b.Synthesis + b.Muxing + b.Storage
	return roundCents(sum)
}

// Estimate computes a per-stage cost breakdown from params. Disabled stages
// and the storage/muxing fixed costs for stages never reached contribute
// zero (muxing's fixed cost is charged only when muxing is enabled; storage
// is always charged since every job persists at least one output file).
func Estimate(params EstimateParams) Breakdown {
	var b Breakdown

	if params.TranscriptionEnabled {
		b.Transcription = roundCents(params.DurationMinutes * transcriptionRatePerMinute)
	}
	if params.TranslationEnabled {
		b.Translation = roundCents(float64(params.CharacterCount) / 1_000_000 * translationRatePerMillion)
	}
	if params.SynthesisEnabled {
		rate := params.ProviderRatePer1kChars
		b.Synthesis = roundCents(float64(params.SynthesisCharCount) / 1000 * rate)
	}
	if params.MuxingEnabled {
		b.Muxing = muxingFixedCost
	}
	b.Storage = storageFixedCost

	return b
}

func roundCents(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
