package ttsprovider

// staticVoiceEquivalences is the cross-provider voice mapping table: pairs of (premium voice id, cloud voice id) considered equivalent
// identities. It is symmetric by construction, so MapVoice round-trips:
// MapVoice(a, b, MapVoice(b, a, v)) == v for every v in the table.
var staticVoiceEquivalences = []struct {
	premiumID string
	cloudID   string
}{
	{"21m00Tcm4TlvDq8ikWAM", "en-US-Neural2-F"}, // Rachel <-> Neural2 F (en-US, female)
	{"29vD33N1CtxCmqQRPOHJ", "en-US-Neural2-D"}, // Drew <-> Neural2 D (en-US, male)
	{"2EiwWnXFnvU5JabPnv8n", "en-GB-Neural2-B"}, // Clyde <-> Neural2 B (en-GB, male)
	{"AZnzlk1XvdvUeBnXmlld", "en-US-Neural2-C"}, // Domi <-> Neural2 C (en-US, female)
	{"D38z5RcWu1voky8WS1ja", "es-ES-Neural2-B"}, // Fin <-> Neural2 B (es-ES, male)
	{"EXAVITQu4vr4xnSDxMaL", "en-US-Neural2-G"}, // Bella <-> Neural2 G (en-US, female)
	{"ErXwobaYiN019PkySvjV", "en-US-Neural2-A"}, // Antoni <-> Neural2 A (en-US, male)
	{"MF3mGyEYCl7XYWbV9V6O", "fr-FR-Neural2-B"}, // Elli <-> Neural2 B (fr-FR, female... provider's closest match)
	{"TxGEqnHWrfWFTfGW9XjX", "de-DE-Neural2-B"}, // Josh <-> Neural2 B (de-DE, male)
	{"VR6AewLTigWG4xSOukaG", "en-US-Neural2-J"}, // Arnold <-> Neural2 J (en-US, male)
}

// seedVoiceMap populates the symmetric lookup table from the equivalence
// pairs above under both directions, keyed by (from-provider, to-provider,
// voiceID).
func (r *Registry) seedVoiceMap() {
	r.voiceMap = make(map[voiceMapKey]string, len(staticVoiceEquivalences)*2)
	for _, pair := range staticVoiceEquivalences {
		r.voiceMap[voiceMapKey{from: ProviderPremium, to: ProviderCloud, voiceID: pair.premiumID}] = pair.cloudID
		r.voiceMap[voiceMapKey{from: ProviderCloud, to: ProviderPremium, voiceID: pair.cloudID}] = pair.premiumID
	}
}
