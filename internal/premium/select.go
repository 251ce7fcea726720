package premium

import "github.com/minkyu-kim/kimpbot/internal/domain"

// SelectTarget picks the highest-premium eligible candidate from a ranking
// produced by Rank. The cycle buys this currency overseas and sells it
// domestically, so a larger premium means a larger gross edge.
func SelectTarget(candidates []domain.Candidate, eligible func(currency string) bool) (domain.Candidate, error) {
	best := domain.Candidate{}
	found := false
	for _, c := range candidates {
		if !eligible(c.Currency) {
			continue
		}
		if !found || c.PremiumPercent > best.PremiumPercent {
			best = c
			found = true
		}
	}
	if !found {
		return domain.Candidate{}, domain.ErrNoEligibleTarget
	}
	return best, nil
}

// SelectMedium picks the lowest-premium eligible candidate. The medium
// currency carries quote funds back from the domestic exchange, so moving
// through the smallest premium minimizes the round-trip loss. exclude names
// a currency that must not be chosen, normally the cycle's target.
func SelectMedium(candidates []domain.Candidate, eligible func(currency string) bool, exclude string) (domain.Candidate, error) {
	best := domain.Candidate{}
	found := false
	for _, c := range candidates {
		if c.Currency == exclude || !eligible(c.Currency) {
			continue
		}
		if !found || c.PremiumPercent < best.PremiumPercent {
			best = c
			found = true
		}
	}
	if !found {
		return domain.Candidate{}, domain.ErrNoEligibleTarget
	}
	return best, nil
}
