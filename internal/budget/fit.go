package budget

import (
	"sort"

	"repobrief/internal/apperr"
	"repobrief/internal/types"
)

// Fit is the outcome of packing documents under the context ceiling.
type Fit struct {
	Included []types.ChunkedDocument
	Dropped  []string
	// Tokens counts the included documents only, excluding the reserve.
	Tokens int
}

// FitBudget orders docs NORMAL before DEPRIORITIZED (rank order within a
// tier) and admits them while docs plus reserved stay within ceiling. The
// first document that would overflow is dropped together with every
// document after it. If the NORMAL documents alone cannot fit, FitBudget
// fails with TOKEN_OVERFLOW.
func FitBudget(docs []types.ChunkedDocument, reserved, ceiling int) (Fit, error) {
	ordered := make([]types.ChunkedDocument, len(docs))
	copy(ordered, docs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Tier != ordered[j].Tier {
			return ordered[i].Tier < ordered[j].Tier
		}
		return ordered[i].Rank < ordered[j].Rank
	})

	normal := 0
	for _, d := range ordered {
		if d.Tier == types.TierNormal {
			normal += d.Tokens()
		}
	}
	if normal+reserved > ceiling {
		return Fit{}, apperr.New(apperr.TokenOverflow, "selected files exceed the context budget").
			WithDetail("required_tokens", normal+reserved).
			WithDetail("limit_tokens", ceiling)
	}

	var fit Fit
	total := reserved
	for i, d := range ordered {
		if total+d.Tokens() > ceiling {
			for _, rest := range ordered[i:] {
				fit.Dropped = append(fit.Dropped, rest.Path)
			}
			break
		}
		total += d.Tokens()
		fit.Included = append(fit.Included, d)
	}
	fit.Tokens = total - reserved
	return fit, nil
}
