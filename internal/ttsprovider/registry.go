package ttsprovider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kovacsmedia/dubctl/internal/apperrors"
)

// probeCacheTTL is how long an availability probe result is trusted before
// the registry probes again.
const probeCacheTTL = 60 * time.Second

// Preference selects how Registry.Select chooses a provider.
type Preference struct {
	Auto       bool
	ProviderID string // meaningful only when Auto is false
}

// AutoPreference requests the cheapest available provider.
func AutoPreference() Preference { return Preference{Auto: true} }

// ExplicitPreference requests a specific provider by id.
func ExplicitPreference(id string) Preference { return Preference{ProviderID: id} }

// ProviderInfo is the enumerable summary of one registered provider,
// including its cached availability.
type ProviderInfo struct {
	ID             string
	DisplayName    string
	Available      bool
	CostPer1kChars float64
	VoiceCount     int
	LastError      error
}

type probeCacheEntry struct {
	at        time.Time
	available bool
	err       error
	voiceCount int
}

// Registry enumerates registered TTS providers, probes and caches their
// availability, and selects a Provider for a caller's Preference.
type Registry struct {
	mu        sync.Mutex
	providers []Provider
	probes    map[string]probeCacheEntry
	voiceMap  map[voiceMapKey]string
	now       func() time.Time
}

type voiceMapKey struct {
	from, to, voiceID string
}

// NewRegistry constructs a registry over the given providers, registered in
// the priority order used to tie-break AUTO selection cost ties.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{
		providers: providers,
		probes:    make(map[string]probeCacheEntry),
		now:       time.Now,
	}
	r.seedVoiceMap()
	return r
}

// Enumerate returns availability/cost/voice-count info for every registered
// provider, probing (or reusing a cached probe) for each.
func (r *Registry) Enumerate(ctx context.Context) []ProviderInfo {
	out := make([]ProviderInfo, 0, len(r.providers))
	for _, p := range r.providers {
		entry := r.probeCached(ctx, p)
		out = append(out, ProviderInfo{
			ID:             p.ID(),
			DisplayName:    p.DisplayName(),
			Available:      entry.available,
			CostPer1kChars: p.RatePer1kChars(),
			VoiceCount:     entry.voiceCount,
			LastError:      entry.err,
		})
	}
	return out
}

// Rates returns each registered provider's advertised per-1k-character rate
// without probing availability, so a caller can compute an a-priori cost
// estimate before issuing any external call: the budget gate must precede
// every remote call, including a TTS availability probe.
func (r *Registry) Rates() map[string]float64 {
	out := make(map[string]float64, len(r.providers))
	for _, p := range r.providers {
		out[p.ID()] = p.RatePer1kChars()
	}
	return out
}

// probeCached returns the provider's cached probe result, refreshing it if
// the cache has expired or has never been populated.
func (r *Registry) probeCached(ctx context.Context, p Provider) probeCacheEntry {
	r.mu.Lock()
	entry, ok := r.probes[p.ID()]
	fresh := ok && r.now().Sub(entry.at) < probeCacheTTL
	r.mu.Unlock()
	if fresh {
		return entry
	}

	err := p.Probe(ctx)
	voiceCount := 0
	if err == nil {
		if voices, verr := p.ListVoices(ctx); verr == nil {
			voiceCount = len(voices)
		} else {
			err = verr
		}
	}
	entry = probeCacheEntry{at: r.now(), available: err == nil, err: err, voiceCount: voiceCount}

	r.mu.Lock()
	r.probes[p.ID()] = entry
	r.mu.Unlock()
	return entry
}

// Select returns a Provider satisfying pref. AUTO picks the cheapest
// available provider, tie-broken by registration order; on a cost tie the
// first-registered provider wins. EXPLICIT returns ProviderNotAvailable if
// that provider's probe fails; AUTO never falls back to EXPLICIT's target,
// only EXPLICIT fails outright without trying other providers.
func (r *Registry) Select(ctx context.Context, pref Preference) (Provider, error) {
	if !pref.Auto {
		p, err := r.byID(pref.ProviderID)
		if err != nil {
			return nil, err
		}
		entry := r.probeCached(ctx, p)
		if !entry.available {
			return nil, apperrors.NewJobError(apperrors.ProviderNotAvailable, "", fmt.Sprintf("provider %q is not available", pref.ProviderID), entry.err)
		}
		return p, nil
	}

	type candidate struct {
		p    Provider
		rate float64
	}
	var candidates []candidate
	for _, p := range r.providers {
		entry := r.probeCached(ctx, p)
		if entry.available {
			candidates = append(candidates, candidate{p: p, rate: p.RatePer1kChars()})
		}
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewJobError(apperrors.ProviderNotAvailable, "", "no TTS provider is currently available", nil)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].rate < candidates[j].rate
	})
	return candidates[0].p, nil
}

func (r *Registry) byID(id string) (Provider, error) {
	for _, p := range r.providers {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, apperrors.NewJobError(apperrors.ProviderNotAvailable, "", fmt.Sprintf("unknown TTS provider %q", id), nil)
}

// MapVoice looks up the static cross-provider voice equivalence table,
// returning ("", false) if no mapping is known for the given triple.
func (r *Registry) MapVoice(from, to, voiceID string) (string, bool) {
	v, ok := r.voiceMap[voiceMapKey{from: from, to: to, voiceID: voiceID}]
	return v, ok
}

// MapVoiceTo scans the table for an equivalence that maps voiceID, from
// whichever provider's namespace it belongs to, into to's. This is the AUTO
// path's helper: selection may have changed the provider underneath a caller
// who named a voice from the provider they originally had in mind.
func (r *Registry) MapVoiceTo(to, voiceID string) (string, bool) {
	for key, mapped := range r.voiceMap {
		if key.to == to && key.voiceID == voiceID {
			return mapped, true
		}
	}
	return "", false
}
