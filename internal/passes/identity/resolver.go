package identity

import (
	"strings"

	"github.com/iceymoss/discovery-engine/internal/conf"

	"golang.org/x/net/publicsuffix"
)

// FieldScores are the per-field similarities in [0,1] for a candidate pair.
type FieldScores struct {
	Name        float64
	Affiliation float64
	Domain      float64
	Accounts    float64
}

// Resolver computes the weighted identity similarity and the merge decision.
type Resolver struct {
	cfg conf.ResolutionConfig
}

func NewResolver(cfg conf.ResolutionConfig) (*Resolver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{cfg: cfg}, nil
}

// Score blends the field similarities by the configured weights.
func (r *Resolver) Score(fields FieldScores) float64 {
	w := r.cfg.Weights
	return fields.Name*w.Name +
		fields.Affiliation*w.Affiliation +
		fields.Domain*w.Domain +
		fields.Accounts*w.Accounts
}

// ShouldMerge reports whether the score clears the merge threshold. With
// confirmation required the pair is only ever a candidate; below threshold it
// is never merged regardless of confirmation outcome.
func (r *Resolver) ShouldMerge(score float64) (merge bool, candidate bool) {
	if score < r.cfg.MergeThreshold {
		return false, false
	}
	if r.cfg.RequireConfirmation {
		return false, true
	}
	return true, false
}

func (r *Resolver) Threshold() float64 { return r.cfg.MergeThreshold }

// NormalizeName canonicalizes a person name before embedding: lowercase,
// punctuation stripped, and "Last, First" inverted to "first last" so
// reorderings compare equal.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if comma := strings.Index(name, ","); comma >= 0 {
		last := strings.TrimSpace(name[:comma])
		first := strings.TrimSpace(name[comma+1:])
		name = first + " " + last
	}
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ', r > 127:
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '\'':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// DomainSimilarity grades homepage domain overlap: exact host 1.0, same
// registrable domain with different subdomains 0.6, otherwise 0.
func DomainSimilarity(a, b string) float64 {
	a = normalizeDomain(a)
	b = normalizeDomain(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	regA, errA := publicsuffix.EffectiveTLDPlusOne(a)
	regB, errB := publicsuffix.EffectiveTLDPlusOne(b)
	if errA == nil && errB == nil && regA == regB {
		return 0.6
	}
	return 0
}

func normalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	if slash := strings.Index(domain, "/"); slash >= 0 {
		domain = domain[:slash]
	}
	return strings.TrimPrefix(domain, "www.")
}

// AccountOverlap is the Jaccard overlap of linked social handles, 0 when
// neither side has any.
func AccountOverlap(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, acc := range a {
		setA[strings.ToLower(strings.TrimSpace(acc))] = true
	}
	setB := make(map[string]bool, len(b))
	for _, acc := range b {
		setB[strings.ToLower(strings.TrimSpace(acc))] = true
	}
	union := make(map[string]bool, len(setA)+len(setB))
	var shared int
	for acc := range setA {
		union[acc] = true
	}
	for acc := range setB {
		if setA[acc] {
			shared++
		}
		union[acc] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(shared) / float64(len(union))
}
