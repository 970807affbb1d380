package translator

// ContextProfile is one of the seven fixed translation context profiles
//. Each contributes an instruction, a terminology guideline, and
// a tone descriptor woven into the prompt sent to the remote model.
type ContextProfile string

const (
	ContextCasual      ContextProfile = "casual"
	ContextLegal       ContextProfile = "legal"
	ContextSpiritual   ContextProfile = "spiritual"
	ContextMarketing   ContextProfile = "marketing"
	ContextScientific  ContextProfile = "scientific"
	ContextEducational ContextProfile = "educational"
	ContextNews        ContextProfile = "news"
)

type contextDirective struct {
	Instruction string
	Terminology string
	Tone        string
}

// contextInstructions holds the static per-profile prompt copy.
var contextInstructions = map[ContextProfile]contextDirective{
	ContextCasual: {
		Instruction: "Translate this as natural, conversational speech between people who know each other well.",
		Terminology: "Use everyday vocabulary; contractions and colloquialisms are welcome.",
		Tone:        "warm, relaxed, informal",
	},
	ContextLegal: {
		Instruction: "Translate this with the precision required of a legal or contractual document.",
		Terminology: "Preserve defined terms exactly; do not paraphrase obligations, conditions, or numeric figures.",
		Tone:        "formal, precise, unambiguous",
	},
	ContextSpiritual: {
		Instruction: "Translate this as a spiritual or religious teaching meant to be spoken aloud to a congregation.",
		Terminology: "Preserve scriptural references, proper names, and honorifics exactly as given.",
		Tone:        "reverent, measured, sincere",
	},
	ContextMarketing: {
		Instruction: "Translate this as persuasive marketing copy intended to motivate action.",
		Terminology: "Prefer idiomatic, market-appropriate phrasing over literal translation of slogans.",
		Tone:        "energetic, confident, persuasive",
	},
	ContextScientific: {
		Instruction: "Translate this as a technical or scientific explanation aimed at an informed audience.",
		Terminology: "Preserve technical terms, units, and figures exactly; do not simplify away precision.",
		Tone:        "clear, exact, measured",
	},
	ContextEducational: {
		Instruction: "Translate this as instructional content meant to teach a concept step by step.",
		Terminology: "Favor clarity and consistent terminology over stylistic variation.",
		Tone:        "patient, clear, encouraging",
	},
	ContextNews: {
		Instruction: "Translate this as a news report intended for broadcast.",
		Terminology: "Preserve names, titles, dates, and figures exactly; avoid editorializing.",
		Tone:        "neutral, direct, authoritative",
	},
}

// directiveFor returns the directive for profile, defaulting to casual for an
// unrecognized or empty profile rather than failing: the translation context
// is advisory, not a hard precondition.
func directiveFor(profile ContextProfile) contextDirective {
	if d, ok := contextInstructions[profile]; ok {
		return d
	}
	return contextInstructions[ContextCasual]
}
