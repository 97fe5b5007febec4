// Package participants finds or creates contact cards for manifest parties.
package participants

import (
	"strings"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"
	"matter_intake_backend/platform/phone"

	"golang.org/x/text/unicode/norm"
)

// Match is the outcome of matching a descriptor against search results.
// Count is the number of candidates that satisfied the predicate; Candidate
// is the most recently modified of them.
type Match struct {
	Count     int
	Candidate matter.Participant
}

// Ambiguous reports whether more than one candidate matched.
func (m Match) Ambiguous() bool {
	return m.Count > 1
}

// Matcher compares descriptors to contact cards.
type Matcher struct {
	region string
}

// NewMatcher creates a matcher normalising phones for region.
func NewMatcher(region string) *Matcher {
	return &Matcher{region: region}
}

// Match returns the latest candidate satisfying the descriptor's predicate,
// or false when none does.
func (m *Matcher) Match(candidates []matter.Participant, d manifest.ParticipantDescriptor) (Match, bool) {
	matches := m.predicate(d)

	var result Match
	for _, c := range candidates {
		if !matches(c) {
			continue
		}
		if result.Count == 0 || c.ModifiedAt.After(result.Candidate.ModifiedAt) {
			result.Candidate = c
		}
		result.Count++
	}
	return result, result.Count > 0
}

func (m *Matcher) predicate(d manifest.ParticipantDescriptor) func(matter.Participant) bool {
	email := normalizeText(d.Email)
	phones := make(map[string]struct{}, len(d.Phones))
	for _, p := range d.Phones {
		if n := phone.NormalizeE164(p.Number, m.region); n != "" {
			phones[n] = struct{}{}
		}
	}

	hasEmail := email != ""
	hasPhone := len(phones) > 0

	contactMatches := func(c matter.Participant) bool {
		if hasEmail && normalizeText(c.Email) != email {
			return false
		}
		if hasPhone && !m.sharesPhone(c, phones) {
			return false
		}
		return true
	}

	if d.IsCompany {
		company := normalizeText(d.CompanyName)
		if company == "" {
			return never
		}
		return func(c matter.Participant) bool {
			return normalizeText(c.CompanyName) == company && contactMatches(c)
		}
	}

	if !hasEmail && !hasPhone {
		return never
	}
	return contactMatches
}

func (m *Matcher) sharesPhone(c matter.Participant, phones map[string]struct{}) bool {
	for _, raw := range []string{c.Phone1, c.Phone2, c.Phone3, c.Phone4} {
		if raw == "" {
			continue
		}
		if _, ok := phones[phone.NormalizeE164(raw, m.region)]; ok {
			return true
		}
	}
	return false
}

func never(matter.Participant) bool { return false }

// normalizeText folds to NFKC, trims and lowercases.
func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}
